package document

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain/batch"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/repository/layout"
)

// store is the consumer interface for documents (ISP).
type store interface {
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	ReplaceMulti(ctx context.Context, items []db.HashSetItem) error
}

// Repo writes flattened records as hashes under the collection prefix.
type Repo struct {
	store store
	keys  layout.Keys
}

// New creates a document repository.
func New(s store, keys layout.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// Upsert replaces every document in one transaction and reports per id
// whether it was inserted or updated. A failed transaction writes nothing.
// An id repeated within docs is written once more and counts as updated.
func (r *Repo) Upsert(ctx context.Context, collectionName string, docs []record.Flattened) ([]batch.Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(docs))
	items := make([]db.HashSetItem, len(docs))
	for i, d := range docs {
		keys[i] = r.keys.Doc(collectionName, d.ID())
		items[i] = db.HashSetItem{Key: keys[i], Fields: buildHashFields(d)}
	}

	existed, err := r.store.ExistsMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("check exists %s: %w", collectionName, err)
	}

	if err := r.store.ReplaceMulti(ctx, items); err != nil {
		return nil, fmt.Errorf("replace %d documents in %s: %w", len(items), collectionName, err)
	}

	results := make([]batch.Result, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		_, dup := seen[keys[i]]
		seen[keys[i]] = struct{}{}
		if existed[i] || dup {
			results[i] = batch.NewUpdated(d.ID())
		} else {
			results[i] = batch.NewInserted(d.ID())
		}
	}
	return results, nil
}
