package retrieve

import (
	"context"

	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/usecase/translate"
)

// Translator turns a question into a filter.
type Translator interface {
	Translate(ctx context.Context, question string, sch schema.Schema, model string) (translate.Translation, error)
}

// Searcher runs searches over the collection.
type Searcher interface {
	Search(ctx context.Context, filters filter.Expression, freeText string, limit int) (result.Set, error)
	List(ctx context.Context, limit int) (result.Set, error)
}
