package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/nlquery/internal/domain"
	domanswer "github.com/kailas-cloud/nlquery/internal/domain/answer"
	"github.com/kailas-cloud/nlquery/internal/domain/batch"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/nlquery/internal/usecase/health"
	"github.com/kailas-cloud/nlquery/internal/usecase/pipeline"
	storeuc "github.com/kailas-cloud/nlquery/internal/usecase/store"
	"github.com/kailas-cloud/nlquery/internal/usecase/translate"
	usageuc "github.com/kailas-cloud/nlquery/internal/usecase/usage"
)

// --- Mocks ---

type mockPipeline struct {
	ingestFn    func(ctx context.Context, lines []string, model string, recreate bool) (pipeline.IngestReport, error)
	structureFn func(ctx context.Context, lines []string, model string) (pipeline.StructureReport, error)
	storeFn     func(ctx context.Context, docs []map[string]any) (pipeline.StoreReport, error)
	queryFn     func(ctx context.Context, question, model string, generative bool) (pipeline.QueryReport, error)
}

func (m *mockPipeline) Ingest(ctx context.Context, lines []string, model string, recreate bool) (pipeline.IngestReport, error) {
	return m.ingestFn(ctx, lines, model, recreate)
}

func (m *mockPipeline) Structure(ctx context.Context, lines []string, model string) (pipeline.StructureReport, error) {
	return m.structureFn(ctx, lines, model)
}

func (m *mockPipeline) StoreDocuments(ctx context.Context, docs []map[string]any) (pipeline.StoreReport, error) {
	return m.storeFn(ctx, docs)
}

func (m *mockPipeline) Query(ctx context.Context, question, model string, generative bool) (pipeline.QueryReport, error) {
	return m.queryFn(ctx, question, model, generative)
}

func (m *mockPipeline) Models() []string { return []string{"gemma3:1b", "gemma3:4b"} }

func (m *mockPipeline) DefaultModel() string { return "gemma3:1b" }

type mockUsage struct {
	lastPeriod usageuc.Period
}

func (m *mockUsage) GetReport(_ context.Context, period usageuc.Period) usageuc.Report {
	m.lastPeriod = period
	return usageuc.Report{Period: period, PeriodStart: 1_000, PeriodEnd: 2_000, Limit: 100, Used: 40, Remaining: 60}
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type mockCollection struct {
	info storeuc.Info
	err  error
}

func (m *mockCollection) Info(context.Context) (storeuc.Info, error) { return m.info, m.err }

// --- Helpers ---

func newTestRouter(p *mockPipeline, h *mockHealth, c *mockCollection) (http.Handler, *mockUsage) {
	if h == nil {
		h = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{
			healthuc.ComponentStore: healthuc.CheckOK,
			healthuc.ComponentModel: healthuc.CheckOK,
		}}}
	}
	if c == nil {
		c = &mockCollection{}
	}
	u := &mockUsage{}
	return NewRouter(NewServer(p, u, h, c, nil), nil, zapNop()), u
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// --- Tests ---

func TestIngest_OK(t *testing.T) {
	var gotLines []string
	p := &mockPipeline{
		ingestFn: func(ctx context.Context, lines []string, model string, recreate bool) (pipeline.IngestReport, error) {
			gotLines = lines
			if !recreate {
				t.Error("expected recreate to be passed through")
			}
			domain.UsageFromContext(ctx).AddCall(42)
			return pipeline.IngestReport{
				Model: "gemma3:1b",
				Structured: []pipeline.Structured{{
					ID:     "abc",
					Line:   "Balu is a boy.",
					Record: record.Record{Name: "Balu", Gender: record.Boy, Text: "Balu is a boy."},
				}},
				Failed: []pipeline.Failure{{Line: "It rained.", Reason: "no person"}},
				Stored: batch.Counts{Inserted: 1},
			}, nil
		},
	}
	h, _ := newTestRouter(p, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/ingest", LinesRequest{
		Lines: []string{"Balu is a boy."}, Text: "It rained.", Recreate: true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(gotLines) != 2 || gotLines[1] != "It rained." {
		t.Errorf("expected lines and text merged, got %v", gotLines)
	}
	if rr.Header().Get("X-Generation-Tokens") != "42" {
		t.Errorf("expected X-Generation-Tokens 42, got %q", rr.Header().Get("X-Generation-Tokens"))
	}

	resp := decodeBody[IngestResponse](t, rr)
	if len(resp.Structured) != 1 || resp.Structured[0].Record["name"] != "Balu" {
		t.Errorf("unexpected structured: %+v", resp.Structured)
	}
	if len(resp.Failed) != 1 || resp.Stored.Inserted != 1 {
		t.Errorf("unexpected report: %+v", resp)
	}
}

func TestIngest_Validation(t *testing.T) {
	h, _ := newTestRouter(&mockPipeline{}, nil, nil)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"malformed", "{", codeBadRequest},
		{"empty", LinesRequest{}, codeValidationFailed},
		{"too many", LinesRequest{Lines: make([]string, maxLines+1)}, codeValidationFailed},
	}
	for _, tt := range tests {
		rr := do(t, h, http.MethodPost, "/api/ingest", tt.body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, rr.Code)
			continue
		}
		if got := decodeBody[ErrorResponse](t, rr); got.Code != tt.code {
			t.Errorf("%s: expected code %s, got %s", tt.name, tt.code, got.Code)
		}
	}
}

func TestStructure_OK(t *testing.T) {
	p := &mockPipeline{
		structureFn: func(_ context.Context, lines []string, model string) (pipeline.StructureReport, error) {
			if model != "gemma3:4b" {
				t.Errorf("expected requested model, got %q", model)
			}
			return pipeline.StructureReport{Model: model, Structured: []pipeline.Structured{{
				Line:   lines[0],
				Record: record.Record{Gender: record.Girl, Likes: record.Likes{Color: "orange"}, Text: lines[0]},
			}}}, nil
		},
	}
	h, _ := newTestRouter(p, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/structure", LinesRequest{Text: "Sheela likes orange.", Model: "gemma3:4b"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody[StructureResponse](t, rr)
	likes, _ := resp.Structured[0].Record["likes"].(map[string]any)
	if likes["color"] != "orange" {
		t.Errorf("expected nested likes, got %v", resp.Structured[0].Record)
	}
}

func TestStore_PartialFailure(t *testing.T) {
	p := &mockPipeline{
		storeFn: func(_ context.Context, docs []map[string]any) (pipeline.StoreReport, error) {
			results := []batch.Result{
				batch.NewInserted("p1"),
				batch.NewError("p2", fmt.Errorf("required field %q is missing: %w", "gender", domain.ErrSchema)),
			}
			return pipeline.StoreReport{Stored: batch.Tally(results), Results: results}, nil
		},
	}
	h, _ := newTestRouter(p, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/store", StoreRequest{Documents: []map[string]any{{"id": "p1"}, {"id": "p2"}}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody[StoreResponse](t, rr)
	if resp.Stored.Inserted != 1 || resp.Stored.Failed != 1 {
		t.Errorf("unexpected counts: %+v", resp.Stored)
	}
	if resp.Items[1].Error == nil || resp.Items[1].Error.Code != codeSchemaError {
		t.Errorf("expected schema_error on second item, got %+v", resp.Items[1])
	}
}

func TestStore_Empty(t *testing.T) {
	h, _ := newTestRouter(&mockPipeline{}, nil, nil)
	rr := do(t, h, http.MethodPost, "/api/store", StoreRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestQuery_OK(t *testing.T) {
	boy, _ := filter.NewClause("gender", filter.Eq, "boy")
	blue, _ := filter.NewClause("likes_color", filter.Eq, "blue")
	p := &mockPipeline{
		queryFn: func(_ context.Context, question, model string, generative bool) (pipeline.QueryReport, error) {
			if !generative {
				t.Error("generative must default to true")
			}
			a := domanswer.New("One boy likes blue: Balu.", []string{"b1"})
			return pipeline.QueryReport{
				Question: question,
				Model:    "gemma3:1b",
				Filter:   filter.All(boy, blue),
				Results: result.NewSet([]result.Hit{
					result.NewHit("b1", 1, map[string]any{"name": "Balu", schema.SourceField: "Balu is a boy."}),
				}, 1),
				Records: []record.Record{{Name: "Balu", Gender: record.Boy, Likes: record.Likes{Color: "blue"}}},
				Answer:  &a,
			}, nil
		},
	}
	h, _ := newTestRouter(p, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/query", QueryRequest{Question: "how many boys like blue color"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody[QueryResponse](t, rr)
	if resp.Filter != `gender eq "boy" AND likes_color eq "blue"` {
		t.Errorf("unexpected filter: %s", resp.Filter)
	}
	if resp.Total != 1 || resp.Results[0].Source != "Balu is a boy." {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
	if _, ok := resp.Results[0].Fields[schema.SourceField]; ok {
		t.Error("source must not be repeated in fields")
	}
	likes, _ := resp.Results[0].Record["likes"].(map[string]any)
	if resp.Results[0].Record["gender"] != "boy" || likes["color"] != "blue" {
		t.Errorf("unexpected nested record: %+v", resp.Results[0].Record)
	}
	if resp.Answer == nil || resp.Answer.SupportCount != 1 || resp.Answer.CitedIDs[0] != "b1" {
		t.Errorf("unexpected answer: %+v", resp.Answer)
	}
	if resp.Dropped == nil {
		t.Error("dropped must encode as an empty list")
	}
}

func TestQuery_FallbackNoAnswer(t *testing.T) {
	p := &mockPipeline{
		queryFn: func(_ context.Context, question, _ string, generative bool) (pipeline.QueryReport, error) {
			if generative {
				t.Error("expected generative=false")
			}
			return pipeline.QueryReport{
				Question:     question,
				FallbackUsed: true,
				Dropped:      []translate.Dropped{{Clause: `likes_dish eq "biryani"`, Reason: "unknown field"}},
				Results:      result.NewSet(nil, 0),
			}, nil
		},
	}
	h, _ := newTestRouter(p, nil, nil)

	rr := do(t, h, http.MethodPost, "/api/query", `{"question":"who eats biryani","generative":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody[QueryResponse](t, rr)
	if !resp.FallbackUsed || resp.Answer != nil || resp.Filter != "" || len(resp.Dropped) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestQuery_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("question is required: %w", domain.ErrInvalidQuery), http.StatusBadRequest, codeValidationFailed},
		{fmt.Errorf("model %q: %w", "x", domain.ErrInvalidModel), http.StatusBadRequest, codeInvalidModel},
		{fmt.Errorf("ensure: %w", domain.ErrSchema), http.StatusBadRequest, codeSchemaError},
		{domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound},
		{fmt.Errorf("gen: %w", domain.ErrRateLimited), http.StatusTooManyRequests, codeRateLimited},
		{fmt.Errorf("gen: %w", domain.ErrBudgetExceeded), http.StatusTooManyRequests, codeBudgetExceeded},
		{fmt.Errorf("gen: %w: %w", domain.ErrModelUnavailable, errors.New("dial tcp")), http.StatusBadGateway, codeModelUnavailable},
		{fmt.Errorf("search: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, codeStoreUnavailable},
		{fmt.Errorf("gen: %w", domain.ErrTimeout), http.StatusGatewayTimeout, codeTimeout},
		{errors.New("boom"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tt := range tests {
		p := &mockPipeline{
			queryFn: func(context.Context, string, string, bool) (pipeline.QueryReport, error) {
				return pipeline.QueryReport{}, tt.err
			},
		}
		h, _ := newTestRouter(p, nil, nil)
		rr := do(t, h, http.MethodPost, "/api/query", QueryRequest{Question: "q"})
		if rr.Code != tt.status {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.status, rr.Code)
			continue
		}
		resp := decodeBody[ErrorResponse](t, rr)
		if resp.Code != tt.code {
			t.Errorf("%v: expected code %s, got %s", tt.err, tt.code, resp.Code)
		}
	}
}

func TestSafeDomainMessage_HidesInternals(t *testing.T) {
	err := fmt.Errorf("search: %w: %w", domain.ErrStoreUnavailable, errors.New("dial tcp 10.0.0.1:6379"))
	if got := safeDomainMessage(err); got != domain.ErrStoreUnavailable.Error() {
		t.Errorf("expected sentinel message, got %q", got)
	}
	if got := safeDomainMessage(errors.New("secret")); got != "internal error" {
		t.Errorf("expected internal error, got %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	degraded := &mockHealth{report: healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{
		healthuc.ComponentStore: healthuc.CheckOK,
		healthuc.ComponentModel: healthuc.CheckError,
	}}}
	h, _ := newTestRouter(&mockPipeline{}, degraded, nil)

	rr := do(t, h, http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	resp := decodeBody[HealthResponse](t, rr)
	if !resp.StoreUp || resp.ModelUp || resp.Status != "degraded" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestModels(t *testing.T) {
	h, _ := newTestRouter(&mockPipeline{}, nil, nil)
	rr := do(t, h, http.MethodGet, "/api/models", nil)
	resp := decodeBody[ModelsResponse](t, rr)
	if len(resp.Models) != 2 || resp.Default != "gemma3:1b" {
		t.Errorf("unexpected models: %+v", resp)
	}
}

func TestGetUsage(t *testing.T) {
	h, u := newTestRouter(&mockPipeline{}, nil, nil)

	rr := do(t, h, http.MethodGet, "/api/usage?period=month", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if u.lastPeriod != usageuc.PeriodMonth {
		t.Errorf("expected month, got %s", u.lastPeriod)
	}
	resp := decodeBody[UsageResponse](t, rr)
	if resp.TokensRemaining != 60 || resp.PeriodStartAt.UnixMilli() != 1_000 {
		t.Errorf("unexpected usage: %+v", resp)
	}

	rr = do(t, h, http.MethodGet, "/api/usage?period=year", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown period, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/usage?period=day&period=month", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for repeated period, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/usage", nil)
	if rr.Code != http.StatusOK || u.lastPeriod != usageuc.PeriodDay {
		t.Errorf("expected day by default, got %d %s", rr.Code, u.lastPeriod)
	}
}

func TestGetCollection(t *testing.T) {
	c := &mockCollection{info: storeuc.Info{
		Name: "people", Fingerprint: "f00d", CreatedAt: 1_700_000_000_000, Documents: 3, Schema: schema.Default(),
	}}
	h, _ := newTestRouter(&mockPipeline{}, nil, c)

	rr := do(t, h, http.MethodGet, "/api/collection", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody[CollectionResponse](t, rr)
	if resp.Name != "people" || resp.Documents != 3 || len(resp.Fields) != len(schema.Default().Fields()) {
		t.Errorf("unexpected collection: %+v", resp)
	}

	missing := &mockCollection{err: fmt.Errorf("get: %w", domain.ErrCollectionNotFound)}
	h, _ = newTestRouter(&mockPipeline{}, nil, missing)
	if rr := do(t, h, http.MethodGet, "/api/collection", nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	h, _ := newTestRouter(&mockPipeline{}, nil, nil)
	rr := do(t, h, http.MethodGet, "/api/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON error, got %q", rr.Header().Get("Content-Type"))
	}
}

func TestRouter_RequestID(t *testing.T) {
	h, _ := newTestRouter(&mockPipeline{}, nil, nil)
	rr := do(t, h, http.MethodGet, "/api/models", nil)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}
