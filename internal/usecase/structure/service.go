// Package structure converts free-text lines into validated records with a generative model.
package structure

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/record"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/metrics"
)

const (
	defaultMaxRetries  = 2
	defaultConcurrency = 4
	defaultTimeout     = 30 * time.Second
)

// Outcome is the structuring result of one input line.
type Outcome struct {
	Line   string
	Record record.Record
	// Err is a *domain.StructuringFailure when the line produced no record.
	Err error
}

// OK reports whether the line produced a record.
func (o Outcome) OK() bool { return o.Err == nil }

// Reason returns the failure reason, or "" for structured lines.
func (o Outcome) Reason() string {
	var f *domain.StructuringFailure
	if errors.As(o.Err, &f) {
		return f.Reason
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return ""
}

// Service structures lines with a bounded number of concurrent model calls.
type Service struct {
	gen         domain.Generator
	schema      schema.Schema
	logger      *zap.Logger
	maxRetries  int
	concurrency int
	timeout     time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithMaxRetries sets how many times an invalid answer is retried.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithConcurrency bounds the number of lines structured at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTimeout sets the deadline of a single model call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a structuring service.
func New(gen domain.Generator, s schema.Schema, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		gen:         gen,
		schema:      s,
		logger:      logger,
		maxRetries:  defaultMaxRetries,
		concurrency: defaultConcurrency,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Structure returns one outcome per line, in input order. A failing line never aborts the batch.
func (s *Service) Structure(ctx context.Context, lines []string, model string) []Outcome {
	out := make([]Outcome, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, line := range lines {
		g.Go(func() error {
			out[i] = s.structureLine(gctx, line, model)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return out
}

func (s *Service) structureLine(ctx context.Context, line, model string) Outcome {
	ctx = domain.WithReplyCheck(ctx, func(text string) bool {
		return record.Parse(text, line, s.schema).OK()
	})
	reason := ""
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		gen, err := s.generate(ctx, model, buildPrompt(s.schema, line, reason))
		if err != nil {
			s.logger.Warn("structuring call failed",
				zap.String("line", line), zap.Int("attempt", attempt), zap.Error(err))
			return s.fail(line, err.Error(), err, "model_error")
		}

		res := record.Parse(gen.Text, line, s.schema)
		if r, ok := res.Record(); ok {
			metrics.StructureOutcomesTotal.WithLabelValues("ok").Inc()
			return Outcome{Line: line, Record: r}
		}

		reason = res.Reason()
		s.logger.Debug("invalid structuring answer",
			zap.String("line", line), zap.Int("attempt", attempt), zap.String("reason", reason))
	}
	return s.fail(line, reason, nil, "invalid")
}

func (s *Service) generate(ctx context.Context, model string, p domain.Prompt) (domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gen.Generate(ctx, model, p)
}

func (s *Service) fail(line, reason string, cause error, outcome string) Outcome {
	metrics.StructureOutcomesTotal.WithLabelValues(outcome).Inc()
	return Outcome{Line: line, Err: domain.NewStructuringFailure(line, reason, cause)}
}
