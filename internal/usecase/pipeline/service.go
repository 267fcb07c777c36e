// Package pipeline exposes ingestion and question answering over one collection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain"
	domanswer "github.com/kailas-cloud/nlquery/internal/domain/answer"
	"github.com/kailas-cloud/nlquery/internal/domain/batch"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/logger"
)

const defaultQueryLimit = 10

// Service wires the pipeline stages.
type Service struct {
	structurer  Structurer
	flattener   Flattener
	store       Store
	retriever   Retriever
	synthesizer Synthesizer
	health      HealthChecker

	schema       schema.Schema
	models       []string
	defaultModel string
	queryLimit   int
}

// Config holds the model allow-list and query defaults.
type Config struct {
	Schema       schema.Schema
	Models       []string
	DefaultModel string
	QueryLimit   int
}

// New creates the pipeline. The default model must be in the allow-list.
func New(
	cfg Config,
	structurer Structurer, flattener Flattener, st Store,
	retriever Retriever, synthesizer Synthesizer, hc HealthChecker,
) (*Service, error) {
	if cfg.Schema.IsZero() {
		return nil, fmt.Errorf("schema is required: %w", domain.ErrSchema)
	}
	if len(cfg.Models) == 0 {
		return nil, errors.New("at least one model is required")
	}
	def := cfg.DefaultModel
	if def == "" {
		def = cfg.Models[0]
	}
	if !slices.Contains(cfg.Models, def) {
		return nil, fmt.Errorf("default model %q not in models: %w", def, domain.ErrInvalidModel)
	}
	limit := cfg.QueryLimit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	return &Service{
		structurer:   structurer,
		flattener:    flattener,
		store:        st,
		retriever:    retriever,
		synthesizer:  synthesizer,
		health:       hc,
		schema:       cfg.Schema,
		models:       slices.Clone(cfg.Models),
		defaultModel: def,
		queryLimit:   limit,
	}, nil
}

// Models returns the configured model ids.
func (s *Service) Models() []string { return slices.Clone(s.models) }

// DefaultModel returns the model used when a request names none.
func (s *Service) DefaultModel() string { return s.defaultModel }

// ResolveModel returns model, or the default when empty. Unknown ids fail with domain.ErrInvalidModel.
func (s *Service) ResolveModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return s.defaultModel, nil
	}
	if !slices.Contains(s.models, model) {
		return "", fmt.Errorf("model %q: %w", model, domain.ErrInvalidModel)
	}
	return model, nil
}

// Structure converts lines into records without storing them. Blank lines are skipped.
func (s *Service) Structure(ctx context.Context, lines []string, model string) (StructureReport, error) {
	model, err := s.ResolveModel(model)
	if err != nil {
		return StructureReport{}, err
	}
	structured, failed := s.structure(ctx, nonBlank(lines), model)
	return StructureReport{Model: model, Structured: structured, Failed: failed}, nil
}

// Ingest structures, flattens and stores lines. Per-line failures are reported;
// schema and store failures abort the call.
func (s *Service) Ingest(ctx context.Context, lines []string, model string, recreate bool) (IngestReport, error) {
	model, err := s.ResolveModel(model)
	if err != nil {
		return IngestReport{}, err
	}
	ctx = logger.With(ctx, zap.String("model", model))
	if _, err := s.store.EnsureCollection(ctx, s.schema, recreate); err != nil {
		return IngestReport{}, fmt.Errorf("ensure collection: %w", err)
	}

	structured, failed := s.structure(ctx, nonBlank(lines), model)
	rep := IngestReport{Model: model, Failed: failed}
	if len(structured) == 0 {
		return rep, nil
	}

	docs := make([]record.Flattened, len(structured))
	for i, st := range structured {
		docs[i] = s.flattener.Flatten(st.Record)
		structured[i].ID = docs[i].ID()
	}

	up, err := s.store.Upsert(ctx, docs)
	if err != nil {
		return IngestReport{}, fmt.Errorf("store records: %w", err)
	}

	for i, r := range up.Results {
		if r.Status() == batch.StatusError {
			rep.Failed = append(rep.Failed, Failure{Line: structured[i].Line, ID: r.ID(), Reason: r.Err().Error()})
			continue
		}
		rep.Structured = append(rep.Structured, structured[i])
	}
	rep.Stored = up.Counts

	logger.FromContext(ctx).Info("ingested lines",
		zap.Int("lines", len(lines)),
		zap.Int("structured", len(rep.Structured)),
		zap.Int("failed", len(rep.Failed)),
		zap.Int("inserted", rep.Stored.Inserted),
		zap.Int("updated", rep.Stored.Updated))
	return rep, nil
}

// StoreDocuments flattens and stores caller-supplied nested documents.
func (s *Service) StoreDocuments(ctx context.Context, docs []map[string]any) (StoreReport, error) {
	if len(docs) == 0 {
		return StoreReport{}, fmt.Errorf("documents are required: %w", domain.ErrInvalidQuery)
	}
	if _, err := s.store.EnsureCollection(ctx, s.schema, false); err != nil {
		return StoreReport{}, fmt.Errorf("ensure collection: %w", err)
	}

	flat := make([]record.Flattened, len(docs))
	dropped := make(map[string][]string)
	for i, d := range docs {
		f, keys := s.flattener.FlattenMap(d)
		flat[i] = f
		if len(keys) > 0 {
			dropped[f.ID()] = keys
		}
	}

	up, err := s.store.Upsert(ctx, flat)
	if err != nil {
		return StoreReport{}, fmt.Errorf("store documents: %w", err)
	}
	return StoreReport{Stored: up.Counts, Results: up.Results, Dropped: dropped}, nil
}

// Query answers question. Ambiguous questions degrade to free-text search; an answer is
// synthesized only when generative is set.
func (s *Service) Query(ctx context.Context, question, model string, generative bool) (QueryReport, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return QueryReport{}, fmt.Errorf("question is required: %w", domain.ErrInvalidQuery)
	}
	model, err := s.ResolveModel(model)
	if err != nil {
		return QueryReport{}, err
	}
	ctx = logger.With(ctx, zap.String("model", model))
	rep := QueryReport{Question: question, Model: model}

	sch, err := s.store.Schema(ctx)
	switch {
	case errors.Is(err, domain.ErrCollectionNotFound):
		logger.FromContext(ctx).Info("query on missing collection", zap.String("question", question))
		rep.Results = result.NewSet(nil, 0)
		if generative {
			a := domanswer.Empty()
			rep.Answer = &a
		}
		return rep, nil
	case err != nil:
		return QueryReport{}, fmt.Errorf("load schema: %w", err)
	}

	r, err := s.retriever.Retrieve(ctx, question, sch, model, s.queryLimit)
	if err != nil {
		return QueryReport{}, fmt.Errorf("retrieve: %w", err)
	}
	rep.Filter = r.Filter
	rep.FallbackUsed = r.FallbackUsed
	rep.MatchAll = r.MatchAll
	rep.Dropped = r.Dropped
	rep.Results = r.Results
	rep.Records = s.records(r.Results)

	if generative {
		a, err := s.synthesizer.Synthesize(ctx, question, r.Results, model)
		if err != nil {
			return QueryReport{}, fmt.Errorf("synthesize answer: %w", err)
		}
		rep.Answer = &a
	}
	return rep, nil
}

func (s *Service) records(set result.Set) []record.Record {
	out := make([]record.Record, set.Len())
	for i, h := range set.Hits() {
		out[i] = s.flattener.Unflatten(record.NewFlattened(h.ID(), h.Fields()))
	}
	return out
}

// Health reports whether the store and model answer.
func (s *Service) Health(ctx context.Context) HealthReport {
	r := s.health.Check(ctx)
	return HealthReport{StoreUp: r.StoreUp(), ModelUp: r.ModelUp()}
}

func (s *Service) structure(ctx context.Context, lines []string, model string) ([]Structured, []Failure) {
	var structured []Structured
	var failed []Failure
	for _, o := range s.structurer.Structure(ctx, lines, model) {
		if !o.OK() {
			failed = append(failed, Failure{Line: o.Line, Reason: o.Reason()})
			continue
		}
		structured = append(structured, Structured{Line: o.Line, Record: o.Record})
	}
	return structured, failed
}

func nonBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
