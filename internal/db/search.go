package db

import "github.com/kailas-cloud/nlquery/internal/domain/search/filter"

// FilterQuery is the input for a filtered listing. An empty filter matches every document.
type FilterQuery struct {
	IndexName     string
	Filters       filter.Expression
	NumericFields map[string]bool
	Offset        int
	Limit         int
	ReturnFields  []string
}

// TextQuery is the input for full-text search. Terms are OR-ed together.
type TextQuery struct {
	IndexName     string
	Attribute     string
	// Field is the hash field behind Attribute, for backends that score in process.
	Field         string
	Terms         []string
	Filters       filter.Expression
	NumericFields map[string]bool
	Limit         int
	ReturnFields  []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
