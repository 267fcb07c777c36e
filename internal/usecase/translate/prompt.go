package translate

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

const systemPrompt = `You are a query translator. Convert natural language questions into search filters.
Return ONLY valid JSON, no explanation or markdown.`

const examples = `EXAMPLES:
Query: "how many boys like blue color"
{"q": "*", "filter_by": "gender:=boy && likes_color:=blue"}

Query: "girls who like biryani"
{"q": "*", "filter_by": "gender:=girl && likes_food:biryani"}

Query: "who likes red color"
{"q": "*", "filter_by": "likes_color:=red"}

Query: "find people who like curd rice"
{"q": "*", "filter_by": "likes_food:curd rice"}

Query: "boys who like red or blue"
{"q": "*", "filter_by": "gender:=boy && (likes_color:=red || likes_color:=blue)"}

Query: "list all boys"
{"q": "*", "filter_by": "gender:=boy"}`

func buildPrompt(s schema.Schema, question string) domain.Prompt {
	var b strings.Builder
	b.WriteString("AVAILABLE FIELDS (use exactly these names):\n")
	for _, f := range s.Facetable() {
		fmt.Fprintf(&b, "- %s (%s)", f.Name(), f.Type())
		if vals := f.Values(); len(vals) > 0 {
			quoted := make([]string, len(vals))
			for i, v := range vals {
				quoted[i] = fmt.Sprintf("%q", v)
			}
			fmt.Fprintf(&b, ": one of %s", strings.Join(quoted, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString(`
RULES:
1. Use exact field names from above
2. Use := for exact match, :!= for not equal, : for contains
3. Use :>, :>=, :<, :<= only on int and float fields
4. Combine filters with && (and) or || (or); group with parentheses
5. Use only the allowed values listed for a field

Return JSON in this form:
{"q": "*", "filter_by": "field_name:=value && field_name:value"}

`)
	b.WriteString(examples)
	fmt.Fprintf(&b, "\n\nNow process: %q\nReturn JSON only:", question)
	return domain.Prompt{System: systemPrompt, User: b.String()}
}
