package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/nlquery/internal/db"
	domcol "github.com/kailas-cloud/nlquery/internal/domain/collection"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/repository/layout"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFilterFn func(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
	searchTextFn   func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchCountFn  func(ctx context.Context, index string) (int, error)
}

func (m *mockStore) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if m.searchFilterFn != nil {
		return m.searchFilterFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, layout.Keys{Prefix: "nlq:"}), ms
}

func testCollection(t *testing.T) domcol.Collection {
	t.Helper()
	age, err := schema.NewField("age", schema.Int, schema.Facetable())
	if err != nil {
		t.Fatal(err)
	}
	height, err := schema.NewField("height", schema.Float, schema.Optional())
	if err != nil {
		t.Fatal(err)
	}
	gender, err := schema.NewField("gender", schema.String, schema.Facetable())
	if err != nil {
		t.Fatal(err)
	}
	s, err := schema.New(gender, age, height)
	if err != nil {
		t.Fatal(err)
	}
	return domcol.Reconstruct("kids", s, 1)
}
