package nlquery

import (
	domanswer "github.com/kailas-cloud/nlquery/internal/domain/answer"
	"github.com/kailas-cloud/nlquery/internal/domain/batch"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/usecase/pipeline"
)

// Structured is one line turned into a record.
// ID is empty when the record was structured but not stored.
type Structured struct {
	ID     string
	Line   string
	Record map[string]any
}

// Failure is one line or document that produced nothing.
type Failure struct {
	Line   string
	ID     string
	Reason string
}

// IngestRequest is one ingestion batch.
type IngestRequest struct {
	Lines    []string
	Model    string // empty = default model
	Recreate bool   // drop the collection and its documents first
}

// IngestResult separates stored and failed lines.
type IngestResult struct {
	Model      string
	Structured []Structured
	Failed     []Failure
	Inserted   int
	Updated    int
}

// StructureResult is the outcome of structuring without storing.
type StructureResult struct {
	Model      string
	Structured []Structured
	Failed     []Failure
}

// ItemStatus is the per-document outcome of Store.
type ItemStatus string

const (
	ItemInserted ItemStatus = "inserted"
	ItemUpdated  ItemStatus = "updated"
	ItemError    ItemStatus = "error"
)

// ItemResult is the outcome of storing one document.
type ItemResult struct {
	ID     string
	Status ItemStatus
	Err    error
}

// StoreResult is the outcome of storing caller-supplied documents.
type StoreResult struct {
	Inserted int
	Updated  int
	Failed   int
	Items    []ItemResult
	// Dropped maps document ids to keys the schema does not declare.
	Dropped map[string][]string
}

// QueryRequest is one natural-language question.
type QueryRequest struct {
	Question   string
	Model      string // empty = default model
	SkipAnswer bool   // return hits only
}

// DroppedClause is a filter clause removed because the schema rejects it.
type DroppedClause struct {
	Clause string
	Reason string
}

// Hit is one matching document.
type Hit struct {
	ID     string
	Score  float64
	Source string
	Fields map[string]any
	// Record is the nested form of Fields, e.g. {"likes": {"color": "blue"}}.
	Record map[string]any
}

// Answer is the grounded reply to a question.
type Answer struct {
	Text     string
	CitedIDs []string
	// Fallback is set when the reply was produced without the model.
	Fallback bool
}

// QueryResult is everything one question produced.
type QueryResult struct {
	Question     string
	Model        string
	Filter       string // empty when no clause survived
	FallbackUsed bool
	MatchAll     bool
	Dropped      []DroppedClause
	Total        int
	Hits         []Hit
	Answer       *Answer // nil when SkipAnswer is set
}

func structuredFromReport(in []pipeline.Structured) []Structured {
	if len(in) == 0 {
		return nil
	}
	out := make([]Structured, len(in))
	for i, s := range in {
		out[i] = Structured{ID: s.ID, Line: s.Line, Record: s.Record.Map()}
	}
	return out
}

func failuresFromReport(in []pipeline.Failure) []Failure {
	if len(in) == 0 {
		return nil
	}
	out := make([]Failure, len(in))
	for i, f := range in {
		out[i] = Failure{Line: f.Line, ID: f.ID, Reason: f.Reason}
	}
	return out
}

func itemsFromResults(in []batch.Result) []ItemResult {
	out := make([]ItemResult, len(in))
	for i, r := range in {
		out[i] = ItemResult{ID: r.ID(), Status: ItemStatus(r.Status()), Err: r.Err()}
	}
	return out
}

func hitsFromSet(set result.Set, records []record.Record) []Hit {
	hits := set.Hits()
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{ID: h.ID(), Score: h.Score(), Source: h.Source(), Fields: h.Fields()}
		if i < len(records) {
			out[i].Record = records[i].Map()
		}
	}
	return out
}

func answerFromDomain(a *domanswer.Answer) *Answer {
	if a == nil {
		return nil
	}
	return &Answer{Text: a.Text(), CitedIDs: a.CitedIDs(), Fallback: a.IsFallback()}
}

func queryFromReport(rep pipeline.QueryReport) QueryResult {
	out := QueryResult{
		Question:     rep.Question,
		Model:        rep.Model,
		FallbackUsed: rep.FallbackUsed,
		MatchAll:     rep.MatchAll,
		Total:        rep.Results.Total(),
		Hits:         hitsFromSet(rep.Results, rep.Records),
		Answer:       answerFromDomain(rep.Answer),
	}
	if !rep.Filter.IsEmpty() {
		out.Filter = rep.Filter.String()
	}
	for _, d := range rep.Dropped {
		out.Dropped = append(out.Dropped, DroppedClause{Clause: d.Clause, Reason: d.Reason})
	}
	return out
}
