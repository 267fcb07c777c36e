package translate

import "strings"

// metaPatterns mark aggregate questions about the whole collection. They are answered
// from every document instead of a filter.
var metaPatterns = []string{
	"how many colors", "how many foods", "what colors", "what foods",
	"list all colors", "list all foods", "show all colors", "show all foods",
	"colors are mentioned", "foods are mentioned", "colors mentioned", "foods mentioned",
	"distinct colors", "distinct foods", "unique colors", "unique foods",
	"different colors", "different foods",
	"list all people", "show all people", "list everyone", "show everyone",
	"list all records", "show all records",
}

// IsMeta reports whether the question asks about the collection as a whole.
func IsMeta(question string) bool {
	q := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	for _, p := range metaPatterns {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}
