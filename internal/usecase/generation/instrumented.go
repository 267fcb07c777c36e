// Package generation decorates the generative provider with rate limiting,
// token budgeting, deadlines and logging.
package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// Instrumented wraps a Generator with rate limiting, budget enforcement, a per-call deadline and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type Instrumented struct {
	inner   domain.Generator
	budget  BudgetChecker
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures Instrumented.
type Option func(*Instrumented)

// WithBudget enforces a token budget before every call.
func WithBudget(b BudgetChecker) Option {
	return func(g *Instrumented) { g.budget = b }
}

// WithRateLimit allows rps calls per second with the given burst. Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(g *Instrumented) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout bounds each call. Zero keeps the caller's deadline only.
func WithTimeout(d time.Duration) Option {
	return func(g *Instrumented) { g.timeout = d }
}

// NewInstrumented wraps a generator with the given options.
func NewInstrumented(inner domain.Generator, logger *zap.Logger, opts ...Option) *Instrumented {
	g := &Instrumented{inner: inner, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate waits for the rate limiter, checks the budget, delegates and records usage.
func (g *Instrumented) Generate(ctx context.Context, model string, prompt domain.Prompt) (domain.Generation, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return domain.Generation{}, fmt.Errorf("wait for rate limit: %w: %w", domain.ErrRateLimited, err)
		}
	}

	if g.budget != nil {
		if err := g.budget.Check(ctx); err != nil {
			g.logger.Error("Budget exceeded", zap.String("model", model), zap.Error(err))
			return domain.Generation{}, fmt.Errorf("budget check: %w", err)
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()

	out, err := g.inner.Generate(ctx, model, prompt)

	duration := time.Since(start)

	if err != nil {
		g.logger.Error("Generation request failed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Generation{}, fmt.Errorf("generate: %w", err)
	}

	tokens := int64(out.PromptTokens + out.CompletionTokens)
	domain.UsageFromContext(ctx).AddCall(int(tokens))

	// Record token usage in budget
	if g.budget != nil && tokens > 0 {
		g.budget.Record(tokens)
		remaining := metrics.GenerationBudgetTokensRemaining
		remaining.WithLabelValues("daily").Set(float64(g.budget.RemainingDaily()))
		remaining.WithLabelValues("monthly").Set(float64(g.budget.RemainingMonthly()))
	}

	g.logger.Debug("Generation request completed",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("completion_tokens", out.CompletionTokens),
		zap.Int("output_bytes", len(out.Text)),
	)

	return out, nil
}
