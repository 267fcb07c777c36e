// Package chi exposes the pipeline over HTTP with a chi router.
package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain"
	healthuc "github.com/kailas-cloud/nlquery/internal/usecase/health"
	"github.com/kailas-cloud/nlquery/internal/usecase/pipeline"
	storeuc "github.com/kailas-cloud/nlquery/internal/usecase/store"
	usageuc "github.com/kailas-cloud/nlquery/internal/usecase/usage"
)

const (
	maxLines     = 500
	maxDocuments = 100
	maxBodyBytes = 1 << 20
)

// Pipeline is the subset of the pipeline service used by the handlers (ISP).
type Pipeline interface {
	Ingest(ctx context.Context, lines []string, model string, recreate bool) (pipeline.IngestReport, error)
	Structure(ctx context.Context, lines []string, model string) (pipeline.StructureReport, error)
	StoreDocuments(ctx context.Context, docs []map[string]any) (pipeline.StoreReport, error)
	Query(ctx context.Context, question, model string, generative bool) (pipeline.QueryReport, error)
	Models() []string
	DefaultModel() string
}

// UsageReporter reports generation token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period usageuc.Period) usageuc.Report
}

// HealthChecker probes dependencies.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// CollectionReader describes the served collection.
type CollectionReader interface {
	Info(ctx context.Context) (storeuc.Info, error)
}

// Server holds the HTTP handlers.
type Server struct {
	pipeline      Pipeline
	usage         UsageReporter
	health        HealthChecker
	collection    CollectionReader
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	p Pipeline,
	usage UsageReporter,
	health HealthChecker,
	collection CollectionReader,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline:      p,
		usage:         usage,
		health:        health,
		collection:    collection,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Mount registers the API routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.Ingest)
		r.Post("/structure", s.Structure)
		r.Post("/store", s.Store)
		r.Post("/query", s.Query)
		r.Get("/health", s.HealthCheck)
		r.Get("/models", s.Models)
		r.Get("/usage", s.GetUsage)
		r.Get("/collection", s.GetCollection)
	})
	r.Get("/metrics", s.Metrics)
}

// Ingest handles POST /api/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var req LinesRequest
	if !decode(w, r, &req) {
		return
	}
	lines, ok := checkLines(w, req.all())
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rep, err := s.pipeline.Ingest(ctx, lines, req.Model, req.Recreate)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setGenerationHeaders(w, usage)
	writeJSON(w, http.StatusOK, IngestResponse{
		Model:      rep.Model,
		Structured: structuredToResp(rep.Structured),
		Failed:     failedToResp(rep.Failed),
		Stored:     rep.Stored,
	})
}

// Structure handles POST /api/structure.
func (s *Server) Structure(w http.ResponseWriter, r *http.Request) {
	var req LinesRequest
	if !decode(w, r, &req) {
		return
	}
	lines, ok := checkLines(w, req.all())
	if !ok {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rep, err := s.pipeline.Structure(ctx, lines, req.Model)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setGenerationHeaders(w, usage)
	writeJSON(w, http.StatusOK, StructureResponse{
		Model:      rep.Model,
		Structured: structuredToResp(rep.Structured),
		Failed:     failedToResp(rep.Failed),
	})
}

// Store handles POST /api/store.
func (s *Server) Store(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 || len(req.Documents) > maxDocuments {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", maxDocuments))
		return
	}

	rep, err := s.pipeline.StoreDocuments(r.Context(), req.Documents)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StoreResponse{
		Stored:  rep.Stored,
		Items:   storeItemsToResp(rep.Results),
		Dropped: rep.Dropped,
	})
}

// Query handles POST /api/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decode(w, r, &req) {
		return
	}
	generative := req.Generative == nil || *req.Generative

	ctx, usage := domain.NewContextWithUsage(r.Context())
	rep, err := s.pipeline.Query(ctx, req.Question, req.Model, generative)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setGenerationHeaders(w, usage)
	writeJSON(w, http.StatusOK, queryToResp(rep))
}

// HealthCheck handles GET /api/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		StoreUp: report.StoreUp(),
		ModelUp: report.ModelUp(),
	})
}

// Models handles GET /api/models.
func (s *Server) Models(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ModelsResponse{
		Models:  s.pipeline.Models(),
		Default: s.pipeline.DefaultModel(),
	})
}

// GetUsage handles GET /api/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var raw string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &raw); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	period, err := usageuc.ParsePeriod(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, UsageResponse{
		Period:          string(report.Period),
		PeriodStartAt:   time.UnixMilli(report.PeriodStart).UTC(),
		PeriodEndAt:     time.UnixMilli(report.PeriodEnd).UTC(),
		TokensLimit:     report.Limit,
		TokensUsed:      report.Used,
		TokensRemaining: report.Remaining,
		IsExhausted:     report.Exhausted,
	})
}

// GetCollection handles GET /api/collection.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	info, err := s.collection.Info(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CollectionResponse{
		Name:        info.Name,
		Fingerprint: info.Fingerprint,
		CreatedAt:   time.UnixMilli(info.CreatedAt).UTC(),
		Documents:   info.Documents,
		Fields:      info.Schema.Specs(),
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func checkLines(w http.ResponseWriter, lines []string) ([]string, bool) {
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "lines or text is required")
		return nil, false
	}
	if len(lines) > maxLines {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("at most %d lines per request", maxLines))
		return nil, false
	}
	return lines, true
}

func setGenerationHeaders(w http.ResponseWriter, usage *domain.GenerationUsage) {
	calls, hits, tokens := usage.Snapshot()
	if calls == 0 && hits == 0 {
		return
	}
	w.Header().Set("X-Generation-Calls", strconv.Itoa(calls))
	w.Header().Set("X-Generation-Cache-Hits", strconv.Itoa(hits))
	w.Header().Set("X-Generation-Tokens", strconv.Itoa(tokens))
}
