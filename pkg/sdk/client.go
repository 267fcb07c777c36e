package nlquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/db/memory"
	dbRedis "github.com/kailas-cloud/nlquery/internal/db/redis"
	dbValkey "github.com/kailas-cloud/nlquery/internal/db/valkey"
	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	collectionrepo "github.com/kailas-cloud/nlquery/internal/repository/collection"
	documentrepo "github.com/kailas-cloud/nlquery/internal/repository/document"
	"github.com/kailas-cloud/nlquery/internal/repository/layout"
	searchrepo "github.com/kailas-cloud/nlquery/internal/repository/search"
	openaiGen "github.com/kailas-cloud/nlquery/internal/transport/openai"
	answeruc "github.com/kailas-cloud/nlquery/internal/usecase/answer"
	flattenuc "github.com/kailas-cloud/nlquery/internal/usecase/flatten"
	generationuc "github.com/kailas-cloud/nlquery/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/nlquery/internal/usecase/health"
	"github.com/kailas-cloud/nlquery/internal/usecase/pipeline"
	retrieveuc "github.com/kailas-cloud/nlquery/internal/usecase/retrieve"
	storeuc "github.com/kailas-cloud/nlquery/internal/usecase/store"
	structureuc "github.com/kailas-cloud/nlquery/internal/usecase/structure"
	translateuc "github.com/kailas-cloud/nlquery/internal/usecase/translate"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultGenerateTimeout  = 60 * time.Second
	defaultCollection       = "people"
	defaultKeyPrefix        = "nlq:"
	defaultMatchAllLimit    = 100
)

// Внутренний интерфейс для подмены в тестах.
type pipelineUseCase interface {
	Ingest(ctx context.Context, lines []string, model string, recreate bool) (pipeline.IngestReport, error)
	Structure(ctx context.Context, lines []string, model string) (pipeline.StructureReport, error)
	StoreDocuments(ctx context.Context, docs []map[string]any) (pipeline.StoreReport, error)
	Query(ctx context.Context, question, model string, generative bool) (pipeline.QueryReport, error)
	Models() []string
	DefaultModel() string
}

// Client is the nlquery SDK entry point. It runs the whole pipeline in process.
type Client struct {
	store     db.Store
	pipe      pipelineUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, connects to the database and prepares the collection.
// The provided context is used for the readiness check and collection setup.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		collection:    defaultCollection,
		keyPrefix:     defaultKeyPrefix,
		matchAllLimit: defaultMatchAllLimit,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("nlquery: database required (use WithValkey, WithRedis or WithMemory)")
	}
	if cfg.driver != "memory" && len(cfg.addrs) == 0 {
		return nil, errors.New("nlquery: database address required")
	}
	if cfg.generator == nil && cfg.baseURL == "" {
		return nil, errors.New("nlquery: generator required (use WithGenerator or WithOpenAI)")
	}
	if len(cfg.models) == 0 {
		return nil, errors.New("nlquery: at least one model required (use WithModels)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("nlquery: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, createGenerator(cfg), cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	rc := dbRedis.Config{
		Addrs:      cfg.addrs,
		Password:   cfg.password,
		ClientName: "nlquery-sdk",
	}
	switch cfg.driver {
	case "valkey":
		s, err := dbValkey.NewStore(rc)
		if err != nil {
			return nil, fmt.Errorf("nlquery: create valkey store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(rc)
		if err != nil {
			return nil, fmt.Errorf("nlquery: create redis store: %w", err)
		}
		return s, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("nlquery: unknown driver %q", cfg.driver)
	}
}

// generatorWithHealth is what wireClient needs from the model provider.
type generatorWithHealth interface {
	domain.Generator
	domain.HealthChecker
}

func createGenerator(cfg *clientConfig) generatorWithHealth {
	if cfg.generator != nil {
		return &generatorAdapter{inner: cfg.generator}
	}
	return openaiGen.NewGenerator(&openaiGen.Config{
		APIKey:  cfg.apiKey,
		BaseURL: cfg.baseURL,
	})
}

func wireClient(
	ctx context.Context, store db.Store, base generatorWithHealth, cfg *clientConfig, obs *observer,
) (*Client, error) {
	keys := layout.Keys{Prefix: cfg.keyPrefix}
	sch := schema.Default()

	// Без бюджета и кэша: SDK считает токены только в метриках.
	gen := generationuc.NewInstrumented(base, zap.NewNop(), generationuc.WithTimeout(defaultGenerateTimeout))

	storeSvc := storeuc.New(cfg.collection,
		collectionrepo.New(store, keys), documentrepo.New(store, keys), searchrepo.New(store, keys), nil)
	if _, err := storeSvc.EnsureCollection(ctx, sch, false); err != nil {
		return nil, fmt.Errorf("nlquery: prepare collection %q: %w", cfg.collection, err)
	}

	healthSvc := healthuc.New(store, base)
	pipe, err := pipeline.New(pipeline.Config{
		Schema:       sch,
		Models:       cfg.models,
		DefaultModel: cfg.defaultModel,
		QueryLimit:   cfg.queryLimit,
	},
		structureuc.New(gen, sch, nil),
		flattenuc.New(sch, nil, flattenuc.WithDeterministicIDs(cfg.deterministicIDs)),
		storeSvc,
		retrieveuc.New(translateuc.New(gen, 0), storeSvc, cfg.matchAllLimit),
		answeruc.New(gen, 0, 0),
		healthSvc,
	)
	if err != nil {
		return nil, fmt.Errorf("nlquery: %w", err)
	}

	return &Client{
		store:     store,
		pipe:      pipe,
		healthSvc: healthSvc,
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Models returns the model allow-list.
func (c *Client) Models() []string { return c.pipe.Models() }

// DefaultModel returns the model used when a call names none.
func (c *Client) DefaultModel() string { return c.pipe.DefaultModel() }

// Ingest structures and stores lines. Per-line failures are reported in the
// result; schema, model and store failures abort the call.
func (c *Client) Ingest(ctx context.Context, req IngestRequest) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err, "lines", len(req.Lines)) }()

	rep, err := c.pipe.Ingest(ctx, req.Lines, req.Model, req.Recreate)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: %w", err)
	}
	return IngestResult{
		Model:      rep.Model,
		Structured: structuredFromReport(rep.Structured),
		Failed:     failuresFromReport(rep.Failed),
		Inserted:   rep.Stored.Inserted,
		Updated:    rep.Stored.Updated,
	}, nil
}

// Structure converts lines into records without storing them.
func (c *Client) Structure(ctx context.Context, lines []string, model string) (res StructureResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("structure", start, err, "lines", len(lines)) }()

	rep, err := c.pipe.Structure(ctx, lines, model)
	if err != nil {
		return StructureResult{}, fmt.Errorf("structure: %w", err)
	}
	return StructureResult{
		Model:      rep.Model,
		Structured: structuredFromReport(rep.Structured),
		Failed:     failuresFromReport(rep.Failed),
	}, nil
}

// Store flattens and stores already structured nested documents.
// Keys the schema does not declare are dropped and reported.
func (c *Client) Store(ctx context.Context, docs []map[string]any) (res StoreResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("store", start, err, "documents", len(docs)) }()

	rep, err := c.pipe.StoreDocuments(ctx, docs)
	if err != nil {
		return StoreResult{}, fmt.Errorf("store: %w", err)
	}
	return StoreResult{
		Inserted: rep.Stored.Inserted,
		Updated:  rep.Stored.Updated,
		Failed:   rep.Stored.Failed,
		Items:    itemsFromResults(rep.Results),
		Dropped:  rep.Dropped,
	}, nil
}

// Query answers a natural-language question from the stored documents.
func (c *Client) Query(ctx context.Context, req QueryRequest) (res QueryResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err, "fallback", res.FallbackUsed) }()

	rep, err := c.pipe.Query(ctx, req.Question, req.Model, !req.SkipAnswer)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}
	return queryFromReport(rep), nil
}
