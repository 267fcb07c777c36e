package nlquery

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/nlquery/internal/domain"
)

// Generator produces a chat completion for one system and user message.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, model, system, user string) (Completion, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, model, system, user string) (Completion, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, model, system, user string) (Completion, error) {
	return f(ctx, model, system, user)
}

// Completion is the raw model reply and its token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// generatorAdapter wraps public Generator to satisfy internal domain.Generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, model string, p domain.Prompt) (domain.Generation, error) {
	c, err := a.inner.Generate(ctx, model, p.System, p.User)
	if err != nil {
		return domain.Generation{}, classify(err)
	}
	return domain.Generation{
		Text:             c.Text,
		PromptTokens:     c.PromptTokens,
		CompletionTokens: c.CompletionTokens,
	}, nil
}

// HealthCheck delegates to the inner generator when it can report its own health.
func (a *generatorAdapter) HealthCheck(ctx context.Context) error {
	hc, ok := a.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	return nil
}

// classify attaches a domain sentinel unless the caller already returned one.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrModelUnavailable),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrBudgetExceeded):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
}
