package store

import (
	"context"

	"github.com/kailas-cloud/nlquery/internal/domain/batch"
	domcol "github.com/kailas-cloud/nlquery/internal/domain/collection"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
)

// CollectionRepository persists collection metadata and the FT index.
type CollectionRepository interface {
	Create(ctx context.Context, col domcol.Collection) error
	Get(ctx context.Context, name string) (domcol.Collection, error)
	Delete(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// DocumentRepository writes flattened records.
type DocumentRepository interface {
	Upsert(ctx context.Context, collectionName string, docs []record.Flattened) ([]batch.Result, error)
}

// SearchRepository runs searches over a collection's index.
type SearchRepository interface {
	Filter(ctx context.Context, col domcol.Collection, filters filter.Expression, offset, limit int) (result.Set, error)
	Text(ctx context.Context, col domcol.Collection, terms []string, filters filter.Expression, limit int) (result.Set, error)
	Count(ctx context.Context, collectionName string) (int, error)
}
