// Package valkey adapts the Redis driver to valkey-search, which indexes TAG and
// NUMERIC fields only and rejects bare "*" queries. Listing, counting, contains
// filters and full-text ranking fall back to SCAN + HGETALL evaluated in process.
package valkey

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/db/match"
	dbredis "github.com/kailas-cloud/nlquery/internal/db/redis"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store reuses the Redis driver for hashes, values and index lifecycle.
type Store struct {
	*dbredis.Store
}

// NewStore connects to Valkey with the same options as the Redis store.
func NewStore(cfg dbredis.Config) (*Store, error) {
	client, err := dbredis.Dial(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Store: dbredis.FromClient(client)}, nil
}

// CreateIndex creates the index without TEXT fields, which valkey-search does not support.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	cp := *def
	cp.Fields = make([]db.IndexField, 0, len(def.Fields))
	for _, f := range def.Fields {
		if f.Type != db.IndexFieldText {
			cp.Fields = append(cp.Fields, f)
		}
	}
	if len(cp.Fields) == 0 {
		return fmt.Errorf("index %s has no TAG or NUMERIC fields", def.Name)
	}
	return s.Store.CreateIndex(ctx, &cp)
}

// SearchFilter uses FT.SEARCH for TAG and NUMERIC filters and scans otherwise.
func (s *Store) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if !q.Filters.IsEmpty() && !hasContains(q.Filters) {
		return s.Store.SearchFilter(ctx, q)
	}

	candidates, err := s.load(ctx, q.IndexName)
	if err != nil {
		return nil, err
	}
	entries := make([]db.SearchEntry, 0, len(candidates))
	for _, c := range candidates {
		if match.Filter(q.Filters, c.Fields, q.NumericFields) {
			entries = append(entries, db.SearchEntry{Key: c.Key, Fields: match.Project(c.Fields, q.ReturnFields)})
		}
	}
	return &db.SearchResult{Total: len(entries), Entries: match.Page(entries, q.Offset, q.Limit)}, nil
}

// SearchText ranks scanned documents by the fraction of terms found in q.Field.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Attribute == "" {
		return nil, fmt.Errorf("attribute is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if len(q.Terms) == 0 {
		return &db.SearchResult{}, nil
	}

	field := q.Field
	if field == "" {
		field = q.Attribute
	}

	candidates, err := s.load(ctx, q.IndexName)
	if err != nil {
		return nil, err
	}
	filtered := candidates[:0]
	for _, c := range candidates {
		if match.Filter(q.Filters, c.Fields, q.NumericFields) {
			filtered = append(filtered, c)
		}
	}

	ranked := match.Rank(filtered, field, q.Terms)
	page := match.Page(ranked, 0, q.Limit)
	for i := range page {
		page[i].Fields = match.Project(page[i].Fields, q.ReturnFields)
	}
	return &db.SearchResult{Total: len(ranked), Entries: page}, nil
}

// SearchCount counts documents by scanning the index key prefix.
func (s *Store) SearchCount(ctx context.Context, index string) (int, error) {
	keys, err := s.Scan(ctx, indexToKeyPrefix(index)+"*")
	if err != nil {
		return 0, fmt.Errorf("scan for count: %w", err)
	}
	return len(keys), nil
}

// load fetches every document under the index prefix, sorted by key.
func (s *Store) load(ctx context.Context, index string) ([]match.Candidate, error) {
	keys, err := s.Scan(ctx, indexToKeyPrefix(index)+"*")
	if err != nil {
		return nil, fmt.Errorf("scan for search: %w", err)
	}
	sort.Strings(keys) // deterministic ordering

	out := make([]match.Candidate, 0, len(keys))
	for _, key := range keys {
		fields, err := s.HGetAll(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		out = append(out, match.Candidate{Key: key, Fields: fields})
	}
	return out, nil
}

func hasContains(expr filter.Expression) bool {
	found := false
	expr.Walk(func(c filter.Clause) {
		if c.Op() == filter.Contains {
			found = true
		}
	})
	return found
}

// indexToKeyPrefix converts index name to a SCAN prefix.
// "nlq:people:idx" -> "nlq:people:"
func indexToKeyPrefix(index string) string {
	if strings.HasSuffix(index, ":idx") {
		return index[:len(index)-3]
	}
	return index + ":"
}
