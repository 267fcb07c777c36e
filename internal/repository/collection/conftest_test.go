package collection

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
	hsetFn        func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn     func(ctx context.Context, key string) (map[string]string, error)
	delFn         func(ctx context.Context, key string) error
	existsFn      func(ctx context.Context, key string) (bool, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string, deleteDocs bool) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, deleteDocs)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, layout.Keys{Prefix: "nlq:"})
	return repo, ms
}

func testCollection(t *testing.T) domcol.Collection {
	t.Helper()
	return domcol.Reconstruct("people", schema.Default(), 1700000000000)
}
