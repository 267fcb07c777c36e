package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain"
	domcol "github.com/kailas-cloud/nlquery/internal/domain/collection"
	"github.com/kailas-cloud/nlquery/internal/repository/layout"
)

// store is the consumer interface for collections (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo persists collection metadata next to the FT index it describes.
type Repo struct {
	store store
	keys  layout.Keys
}

// New creates a collection repository.
func New(s store, keys layout.Keys) *Repo {
	return &Repo{store: s, keys: keys}
}

// Create stores a collection: HSET metadata then FT.CREATE index.
// On FT.CREATE failure, rolls back the HSET via DEL.
func (r *Repo) Create(ctx context.Context, col domcol.Collection) error {
	name := col.Name()

	metaKey := r.keys.Meta(name)
	exists, err := r.store.Exists(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return domain.ErrCollectionExists
	}

	// Prepare index definition and hash data before writes
	indexDef, err := buildIndex(r.keys, col)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	hashData, err := collectionToHash(col)
	if err != nil {
		return err
	}

	// Metadata is written before the index.
	if err := r.store.HSet(ctx, metaKey, hashData); err != nil {
		return fmt.Errorf("hset collection %s: %w", name, err)
	}

	// Rolls back the metadata when FT.CREATE fails.
	if err := r.store.CreateIndex(ctx, indexDef); err != nil {
		cleanupErr := r.store.Del(ctx, metaKey)
		return errors.Join(fmt.Errorf("create index %s: %w", indexDef.Name, err), cleanupErr)
	}

	return nil
}

// Get retrieves a collection by name.
func (r *Repo) Get(ctx context.Context, name string) (domcol.Collection, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Meta(name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("hgetall collection %s: %w", name, err)
	}
	if len(m) == 0 {
		return domcol.Collection{}, domain.ErrCollectionNotFound
	}

	return collectionFromHash(m)
}

// Delete removes a collection with its documents: DEL metadata, then FT.DROPINDEX DD.
// The metadata is restored when the drop fails.
func (r *Repo) Delete(ctx context.Context, name string) error {
	metaKey := r.keys.Meta(name)

	metaBackup, err := r.store.HGetAll(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("hgetall collection %s: %w", name, err)
	}
	if len(metaBackup) == 0 {
		return domain.ErrCollectionNotFound
	}

	if err := r.store.Del(ctx, metaKey); err != nil {
		return fmt.Errorf("del collection %s: %w", name, err)
	}

		idxName := r.keys.Index(name)
	if err := r.store.DropIndex(ctx, idxName, true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		cleanupErr := r.store.HSet(ctx, metaKey, metaBackup)
		return errors.Join(fmt.Errorf("drop index %s: %w", idxName, err), cleanupErr)
	}

	return nil
}

// IndexExists reports whether the FT index of the collection is present.
func (r *Repo) IndexExists(ctx context.Context, name string) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.keys.Index(name))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	return ok, nil
}
