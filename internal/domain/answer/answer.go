// Package answer holds grounded answers synthesized from search results.
package answer

// NoResults is the fixed answer returned when nothing matched the question.
const NoResults = "No results found for your query."

// Answer is a natural-language answer with the ids of the records it cites.
type Answer struct {
	text     string
	citedIDs []string
	fallback bool
}

// New creates an answer citing the given record ids.
func New(text string, citedIDs []string) Answer {
	return Answer{text: text, citedIDs: citedIDs}
}

// NewFallback creates a deterministic answer built without the generative service.
func NewFallback(text string, citedIDs []string) Answer {
	return Answer{text: text, citedIDs: citedIDs, fallback: true}
}

// Empty returns the fixed no-results answer.
func Empty() Answer { return Answer{text: NoResults, fallback: true} }

// Text returns the answer prose.
func (a Answer) Text() string { return a.text }

// CitedIDs returns the ids of the records the answer is based on.
func (a Answer) CitedIDs() []string { return a.citedIDs }

// SupportCount returns the number of cited records.
func (a Answer) SupportCount() int { return len(a.citedIDs) }

// IsFallback reports whether the answer was built without a model call.
func (a Answer) IsFallback() bool { return a.fallback }
