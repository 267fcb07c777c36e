package document

import (
	"context"
	"testing"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/repository/layout"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	existsMultiFn  func(ctx context.Context, keys []string) ([]bool, error)
	replaceMultiFn func(ctx context.Context, items []db.HashSetItem) error
}

func (m *mockStore) ExistsMulti(ctx context.Context, keys []string) ([]bool, error) {
	if m.existsMultiFn != nil {
		return m.existsMultiFn(ctx, keys)
	}
	return make([]bool, len(keys)), nil
}

func (m *mockStore) ReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.replaceMultiFn != nil {
		return m.replaceMultiFn(ctx, items)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, layout.Keys{Prefix: "nlq:"}), ms
}

func testDocuments(t *testing.T) []record.Flattened {
	t.Helper()
	return []record.Flattened{
		record.NewFlattened("doc-1", map[string]any{
			"name": "Balu", "gender": "boy", "likes_color": "blue",
			"text": "Balu likes blue", "_source": "Balu likes blue",
		}),
		record.NewFlattened("doc-2", map[string]any{
			"gender": "girl", "likes_color": "", "age": int64(9),
			"text": "a girl of nine", "_source": "a girl of nine",
		}),
	}
}
