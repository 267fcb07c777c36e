package pipeline

import (
	domanswer "github.com/kailas-cloud/nlquery/internal/domain/answer"
	"github.com/kailas-cloud/nlquery/internal/domain/batch"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/usecase/translate"
)

// Structured is one structured line with the id it was stored under.
type Structured struct {
	ID     string
	Line   string
	Record record.Record
}

// Failure is one line or document that produced nothing.
type Failure struct {
	Line   string
	ID     string
	Reason string
}

// IngestReport distinguishes succeeded and failed lines of one ingestion batch.
type IngestReport struct {
	Model      string
	Structured []Structured
	Failed     []Failure
	Stored     batch.Counts
}

// StructureReport is the result of structuring without storing.
type StructureReport struct {
	Model      string
	Structured []Structured
	Failed     []Failure
}

// StoreReport is the result of storing caller-supplied documents.
type StoreReport struct {
	Stored  batch.Counts
	Results []batch.Result
	// Dropped maps document ids to the keys removed because the schema does not declare them.
	Dropped map[string][]string
}

// QueryReport is everything a query produced.
type QueryReport struct {
	Question     string
	Model        string
	Filter       filter.Expression
	FallbackUsed bool
	MatchAll     bool
	Dropped      []translate.Dropped
	Results      result.Set
	// Records holds the nested form of each hit, in hit order.
	Records      []record.Record
	Answer       *domanswer.Answer
}

// HealthReport is the pipeline-facing health summary.
type HealthReport struct {
	StoreUp bool
	ModelUp bool
}
