package pipeline

import (
	"context"

	domanswer "github.com/kailas-cloud/nlquery/internal/domain/answer"
	domcol "github.com/kailas-cloud/nlquery/internal/domain/collection"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/usecase/health"
	"github.com/kailas-cloud/nlquery/internal/usecase/retrieve"
	"github.com/kailas-cloud/nlquery/internal/usecase/store"
	"github.com/kailas-cloud/nlquery/internal/usecase/structure"
)

// Structurer converts lines into records.
type Structurer interface {
	Structure(ctx context.Context, lines []string, model string) []structure.Outcome
}

// Flattener converts records into flat documents.
type Flattener interface {
	Flatten(r record.Record) record.Flattened
	FlattenMap(m map[string]any) (record.Flattened, []string)
	Unflatten(flat record.Flattened) record.Record
}

// Store manages the collection.
type Store interface {
	EnsureCollection(ctx context.Context, sch schema.Schema, recreate bool) (domcol.Collection, error)
	Upsert(ctx context.Context, docs []record.Flattened) (store.UpsertReport, error)
	Schema(ctx context.Context) (schema.Schema, error)
}

// Retriever finds the records answering a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, sch schema.Schema, model string, limit int) (retrieve.Retrieval, error)
}

// Synthesizer writes grounded answers.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, results result.Set, model string) (domanswer.Answer, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
