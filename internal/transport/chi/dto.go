package chi

import (
	"strings"
	"time"

	domanswer "github.com/kailas-cloud/nlquery/internal/domain/answer"
	"github.com/kailas-cloud/nlquery/internal/domain/batch"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/usecase/pipeline"
	"github.com/kailas-cloud/nlquery/internal/usecase/translate"
)

// LinesRequest is the body of POST /api/ingest and POST /api/structure.
// Lines and Text are merged; Text is split on newlines.
type LinesRequest struct {
	Lines    []string `json:"lines,omitempty"`
	Text     string   `json:"text,omitempty"`
	Model    string   `json:"model,omitempty"`
	Recreate bool     `json:"recreate,omitempty"`
}

func (r LinesRequest) all() []string {
	out := make([]string, 0, len(r.Lines))
	out = append(out, r.Lines...)
	if r.Text != "" {
		out = append(out, strings.Split(r.Text, "\n")...)
	}
	return out
}

// StoreRequest is the body of POST /api/store.
type StoreRequest struct {
	Documents []map[string]any `json:"documents"`
}

// QueryRequest is the body of POST /api/query. Generative defaults to true.
type QueryRequest struct {
	Question   string `json:"question"`
	Model      string `json:"model,omitempty"`
	Generative *bool  `json:"generative,omitempty"`
}

// StructuredItem is one line that produced a record.
type StructuredItem struct {
	ID     string         `json:"id,omitempty"`
	Line   string         `json:"line"`
	Record map[string]any `json:"record"`
}

// FailedItem is one line or document that produced nothing.
type FailedItem struct {
	Line   string `json:"line,omitempty"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// IngestResponse is the body returned by POST /api/ingest.
type IngestResponse struct {
	Model      string           `json:"model"`
	Structured []StructuredItem `json:"structured"`
	Failed     []FailedItem     `json:"failed"`
	Stored     batch.Counts     `json:"stored"`
}

// StructureResponse is the body returned by POST /api/structure.
type StructureResponse struct {
	Model      string           `json:"model"`
	Structured []StructuredItem `json:"structured"`
	Failed     []FailedItem     `json:"failed"`
}

// StoreItem is the outcome of one stored document.
type StoreItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// StoreResponse is the body returned by POST /api/store.
type StoreResponse struct {
	Stored  batch.Counts        `json:"stored"`
	Items   []StoreItem         `json:"items"`
	Dropped map[string][]string `json:"dropped,omitempty"`
}

// HitResponse is one retrieved document. Record is the nested form of Fields.
type HitResponse struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Source string         `json:"source,omitempty"`
	Fields map[string]any `json:"fields"`
	Record map[string]any `json:"record,omitempty"`
}

// AnswerResponse is the synthesized answer.
type AnswerResponse struct {
	Text         string   `json:"text"`
	CitedIDs     []string `json:"cited_ids"`
	SupportCount int      `json:"support_count"`
	Fallback     bool     `json:"fallback"`
}

// QueryResponse is the body returned by POST /api/query.
type QueryResponse struct {
	Question     string              `json:"question"`
	Model        string              `json:"model"`
	Filter       string              `json:"filter,omitempty"`
	FallbackUsed bool                `json:"fallback_used"`
	MatchAll     bool                `json:"match_all"`
	Dropped      []translate.Dropped `json:"dropped"`
	Total        int                 `json:"total"`
	Results      []HitResponse       `json:"results"`
	Answer       *AnswerResponse     `json:"answer,omitempty"`
}

// HealthResponse is the body returned by GET /api/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	StoreUp bool              `json:"store_up"`
	ModelUp bool              `json:"model_up"`
}

// ModelsResponse is the body returned by GET /api/models.
type ModelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

// UsageResponse is the body returned by GET /api/usage.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStartAt   time.Time `json:"period_start_at"`
	PeriodEndAt     time.Time `json:"period_end_at"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// CollectionResponse is the body returned by GET /api/collection.
type CollectionResponse struct {
	Name        string        `json:"name"`
	Fingerprint string        `json:"fingerprint"`
	CreatedAt   time.Time     `json:"created_at"`
	Documents   int           `json:"documents"`
	Fields      []schema.Spec `json:"fields"`
}

func structuredToResp(items []pipeline.Structured) []StructuredItem {
	out := make([]StructuredItem, len(items))
	for i, it := range items {
		out[i] = StructuredItem{ID: it.ID, Line: it.Line, Record: it.Record.Map()}
	}
	return out
}

func failedToResp(items []pipeline.Failure) []FailedItem {
	out := make([]FailedItem, len(items))
	for i, f := range items {
		out[i] = FailedItem{Line: f.Line, ID: f.ID, Reason: f.Reason}
	}
	return out
}

func storeItemsToResp(results []batch.Result) []StoreItem {
	out := make([]StoreItem, len(results))
	for i, r := range results {
		out[i] = StoreItem{ID: r.ID(), Status: string(r.Status())}
		if r.Err() != nil {
			out[i].Error = &ErrorResponse{Code: itemErrorCode(r.Err()), Message: r.Err().Error()}
		}
	}
	return out
}

func hitsToResp(set result.Set, records []record.Record) []HitResponse {
	out := make([]HitResponse, set.Len())
	for i, h := range set.Hits() {
		fields := make(map[string]any, len(h.Fields()))
		for k, v := range h.Fields() {
			if k != schema.SourceField {
				fields[k] = v
			}
		}
		out[i] = HitResponse{ID: h.ID(), Score: h.Score(), Source: h.Source(), Fields: fields}
		if i < len(records) {
			out[i].Record = records[i].Map()
		}
	}
	return out
}

func answerToResp(a *domanswer.Answer) *AnswerResponse {
	if a == nil {
		return nil
	}
	cited := a.CitedIDs()
	if cited == nil {
		cited = []string{}
	}
	return &AnswerResponse{
		Text:         a.Text(),
		CitedIDs:     cited,
		SupportCount: a.SupportCount(),
		Fallback:     a.IsFallback(),
	}
}

func queryToResp(rep pipeline.QueryReport) QueryResponse {
	dropped := rep.Dropped
	if dropped == nil {
		dropped = []translate.Dropped{}
	}
	resp := QueryResponse{
		Question:     rep.Question,
		Model:        rep.Model,
		FallbackUsed: rep.FallbackUsed,
		MatchAll:     rep.MatchAll,
		Dropped:      dropped,
		Total:        rep.Results.Total(),
		Results:      hitsToResp(rep.Results, rep.Records),
		Answer:       answerToResp(rep.Answer),
	}
	if !rep.Filter.IsEmpty() {
		resp.Filter = rep.Filter.String()
	}
	return resp
}
