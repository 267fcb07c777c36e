package result

import (
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
)

// Hit is a single search hit: a stored flat document and its relevance score.
type Hit struct {
	id     string
	score  float64
	fields map[string]any
}

// NewHit creates a search hit.
func NewHit(id string, score float64, fields map[string]any) Hit {
	return Hit{id: id, score: score, fields: fields}
}

// ID returns the document identifier.
func (h Hit) ID() string { return h.id }

// Score returns the relevance score. Filter-only searches report 0.
func (h Hit) Score() float64 { return h.score }

// Fields returns the flat document fields.
func (h Hit) Fields() map[string]any { return h.fields }

// String returns a field rendered as a string, or "" when absent.
func (h Hit) String(key string) string {
	switch v := h.fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return stringify(v)
	}
}

// Source returns the provenance text.
func (h Hit) Source() string { return h.String(schema.SourceField) }

// Set is a ranked, one-shot result sequence.
type Set struct {
	hits  []Hit
	total int
}

// NewSet creates a result set. Total is the number of matches in the store,
// which may exceed len(hits) when the search was limited.
func NewSet(hits []Hit, total int) Set {
	if total < len(hits) {
		total = len(hits)
	}
	return Set{hits: hits, total: total}
}

// Hits returns the ranked hits.
func (s Set) Hits() []Hit { return s.hits }

// Total returns the number of matching documents.
func (s Set) Total() int { return s.total }

// Len returns the number of returned hits.
func (s Set) Len() int { return len(s.hits) }

// IsEmpty reports whether nothing matched.
func (s Set) IsEmpty() bool { return len(s.hits) == 0 }

// Top returns at most k leading hits.
func (s Set) Top(k int) []Hit {
	if k <= 0 || k >= len(s.hits) {
		return s.hits
	}
	return s.hits[:k]
}

// IDs returns the hit ids in rank order.
func (s Set) IDs() []string {
	ids := make([]string, len(s.hits))
	for i, h := range s.hits {
		ids[i] = h.id
	}
	return ids
}
