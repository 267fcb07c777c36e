package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/nlquery/internal/db"
	domcol "github.com/kailas-cloud/nlquery/internal/domain/collection"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/repository/layout"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}

// Repo runs filtered and full-text searches over a collection's index.
type Repo struct {
	store store
	keys  layout.Keys
}

// New creates a search repository.
func New(s store, keys layout.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// Filter lists documents matching filters, ordered by the store. An empty filter lists all.
func (r *Repo) Filter(
	ctx context.Context, col domcol.Collection,
	filters filter.Expression, offset, limit int,
) (result.Set, error) {
	q := &db.FilterQuery{
		IndexName:     r.keys.Index(col.Name()),
		Filters:       filters,
		NumericFields: layout.NumericFields(col.Schema()),
		Offset:        offset,
		Limit:         limit,
	}

	sr, err := r.store.SearchFilter(ctx, q)
	if err != nil {
		return result.Set{}, fmt.Errorf("search filter %s: %w", col.Name(), err)
	}

	return r.toSet(sr, col), nil
}

// Text ranks documents whose _source contains any of the terms, optionally pre-filtered.
func (r *Repo) Text(
	ctx context.Context, col domcol.Collection,
	terms []string, filters filter.Expression, limit int,
) (result.Set, error) {
	q := &db.TextQuery{
		IndexName:     r.keys.Index(col.Name()),
		Attribute:     layout.SourceAttribute,
		Field:         schema.SourceField,
		Terms:         terms,
		Filters:       filters,
		NumericFields: layout.NumericFields(col.Schema()),
		Limit:         limit,
	}

	sr, err := r.store.SearchText(ctx, q)
	if err != nil {
		return result.Set{}, fmt.Errorf("search text %s: %w", col.Name(), err)
	}

	return r.toSet(sr, col), nil
}

// Count returns the number of documents in the collection.
func (r *Repo) Count(ctx context.Context, collectionName string) (int, error) {
	n, err := r.store.SearchCount(ctx, r.keys.Index(collectionName))
	if err != nil {
		return 0, fmt.Errorf("search count %s: %w", collectionName, err)
	}
	return n, nil
}

// toSet converts db.SearchResult into a result.Set.
func (r *Repo) toSet(sr *db.SearchResult, col domcol.Collection) result.Set {
	if sr == nil || len(sr.Entries) == 0 {
		total := 0
		if sr != nil {
			total = sr.Total
		}
		return result.NewSet(nil, total)
	}

	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := entry.Fields[schema.IDField]
		if id == "" {
			id = r.keys.DocID(col.Name(), entry.Key)
		}
		hits = append(hits, result.NewHit(id, entry.Score, decodeFields(entry.Fields, col.Schema())))
	}
	return result.NewSet(hits, sr.Total)
}

// decodeFields restores typed values for numeric schema fields. Everything else stays a string.
func decodeFields(raw map[string]string, s schema.Schema) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		f, ok := s.Field(k)
		if !ok {
			out[k] = v
			continue
		}
		switch f.Type() {
		case schema.Int:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				out[k] = n
				continue
			}
		case schema.Float:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = n
				continue
			}
		}
		out[k] = v
	}
	return out
}
