package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/config"
	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/db/memory"
	dbRedis "github.com/kailas-cloud/nlquery/internal/db/redis"
	dbValkey "github.com/kailas-cloud/nlquery/internal/db/valkey"
	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/lock"
	lockRedis "github.com/kailas-cloud/nlquery/internal/lock/redis"
	logpkg "github.com/kailas-cloud/nlquery/internal/logger"
	"github.com/kailas-cloud/nlquery/internal/metrics"
	budgetrepo "github.com/kailas-cloud/nlquery/internal/repository/budget"
	collectionrepo "github.com/kailas-cloud/nlquery/internal/repository/collection"
	documentrepo "github.com/kailas-cloud/nlquery/internal/repository/document"
	"github.com/kailas-cloud/nlquery/internal/repository/gencache"
	"github.com/kailas-cloud/nlquery/internal/repository/layout"
	searchrepo "github.com/kailas-cloud/nlquery/internal/repository/search"
	chiTransport "github.com/kailas-cloud/nlquery/internal/transport/chi"
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
	usageuc "github.com/kailas-cloud/nlquery/internal/usecase/usage"
	"github.com/kailas-cloud/nlquery/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// .env is optional
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting nlquery API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Strings("models", cfg.Generation.Models),
	)

	store, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register generation metrics explicitly (no init())
	metrics.RegisterGenerationMetrics()

	genTimeout := time.Duration(cfg.Generation.TimeoutSec) * time.Second
	base := openaiGen.NewGenerator(&openaiGen.Config{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Logger:      logger,
	})

	// Single BudgetTracker shared by the generation chain and the usage service.
	var budget *generationuc.BudgetTracker
	budgetCfg := cfg.Generation.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := generationuc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = generationuc.BudgetActionReject
		}
		budget = generationuc.NewBudgetTracker(budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger).
			WithStore(ctx, budgetrepo.New(store, cfg.Database.KeyPrefix, 48*time.Hour, 62*24*time.Hour))
	}

	gen := buildGenerator(base, store, budget, cfg.Generation, cfg.Database.KeyPrefix, logger)

	// Repositories and use cases
	keys := layout.Keys{Prefix: cfg.Database.KeyPrefix}
	sch := schema.Default()

	var dist lock.Distributed = lock.Noop{}
	if cfg.Lock.Driver == "redis" {
		rc := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		defer func() { _ = rc.Close() }()
		dist = lockRedis.NewLock(rc, cfg.Database.KeyPrefix)
	}

	storeSvc := storeuc.New(cfg.Collection.Name,
		collectionrepo.New(store, keys), documentrepo.New(store, keys), searchrepo.New(store, keys), logger,
		storeuc.WithDistributedLock(dist, time.Duration(cfg.Lock.TTLSec)*time.Second),
	)
	if _, err := storeSvc.EnsureCollection(ctx, sch, cfg.Collection.RecreateOnStart); err != nil {
		logger.Fatal("Failed to prepare collection", zap.String("collection", cfg.Collection.Name), zap.Error(err))
	}

	structureSvc := structureuc.New(gen, sch, logger,
		structureuc.WithMaxRetries(cfg.Structure.MaxRetries),
		structureuc.WithConcurrency(cfg.Structure.Concurrency),
		structureuc.WithTimeout(genTimeout),
	)
	flattener := flattenuc.New(sch, logger, flattenuc.WithDeterministicIDs(cfg.Ingest.DeterministicIDs))
	retrieveSvc := retrieveuc.New(translateuc.New(gen, genTimeout), storeSvc, cfg.Retrieve.MatchAllLimit)
	answerSvc := answeruc.New(gen, cfg.Retrieve.AnswerTopK, genTimeout)
	healthSvc := healthuc.New(store, base)

	pipe, err := pipeline.New(pipeline.Config{
		Schema:       sch,
		Models:       cfg.Generation.Models,
		DefaultModel: cfg.Generation.DefaultModel,
		QueryLimit:   cfg.Retrieve.Limit,
	}, structureSvc, flattener, storeSvc, retrieveSvc, answerSvc, healthSvc)
	if err != nil {
		logger.Fatal("Failed to create pipeline", zap.Error(err))
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	server := chiTransport.NewServer(pipe, usageSvc, healthSvc, storeSvc, logger)
	router := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	rc := dbRedis.Config{
		Addrs:       cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: time.Duration(cfg.DialTimeoutMs) * time.Millisecond,
		ClientName:  "nlquery-" + version.Version,
	}
	switch cfg.Driver {
	case "valkey":
		return dbValkey.NewStore(rc)
	case "redis":
		return dbRedis.NewStore(rc)
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildGenerator assembles the decorator chain: OpenAI -> Instrumented -> Cached.
// The cache is outermost so hits skip the rate limiter and the budget.
func buildGenerator(
	base domain.Generator,
	store db.Store,
	budget *generationuc.BudgetTracker,
	cfg config.GenerationConfig,
	prefix string,
	logger *zap.Logger,
) domain.Generator {
	opts := []generationuc.Option{
		generationuc.WithTimeout(time.Duration(cfg.TimeoutSec) * time.Second),
	}
	if budget != nil {
		opts = append(opts, generationuc.WithBudget(budget))
	}
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, generationuc.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst))
	}

	var gen domain.Generator = generationuc.NewInstrumented(base, logger, opts...)
	if cfg.CacheDisabled {
		return gen
	}
	ttl := time.Duration(cfg.CacheTTLSec) * time.Second
	return gencache.New(gen, store, prefix, ttl, metrics.GenerationCacheTotal, logger)
}
