// Package text tokenizes questions and documents for free-text search.
package text

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Common English stop words plus question filler that never identifies a record.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "they": true, "have": true,
	"had": true, "what": true, "when": true, "where": true, "who": true, "which": true,
	"why": true, "how": true, "all": true, "any": true, "both": true, "each": true,
	"few": true, "more": true, "most": true, "other": true, "some": true, "such": true,
	"no": true, "nor": true, "not": true, "only": true, "own": true, "same": true,
	"so": true, "than": true, "too": true, "very": true, "can": true, "did": true,
	"do": true, "does": true, "doing": true, "done": true, "down": true, "up": true,
	"she": true, "her": true, "his": true, "him": true, "i": true, "me": true,
	"many": true, "much": true, "there": true, "their": true, "them": true,
	"like": true, "likes": true, "people": true, "person": true, "anyone": true,
	"list": true, "show": true, "find": true, "tell": true, "give": true,
}

// Terms returns the distinct lower-cased search terms of s in order of first appearance.
func Terms(s string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(s), -1)
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Score returns the fraction of terms present in the tokenized document.
func Score(terms []string, doc string) float64 {
	if len(terms) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(doc), -1) {
		present[tok] = true
	}
	matched := 0
	for _, t := range terms {
		if present[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
