// Package translate turns natural-language questions into schema-checked filter expressions.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/logger"
	"github.com/kailas-cloud/nlquery/internal/metrics"
)

const defaultTimeout = 20 * time.Second

// Translation is the validated filter for one question.
type Translation struct {
	Filter filter.Expression
	// Dropped lists clauses removed because they were unreadable or invalid for the schema.
	Dropped []Dropped
	// MatchAll is set for questions about the whole collection.
	MatchAll bool
	// Raw is the model output, kept for logging.
	Raw string
}

// Service translates questions with a generative model.
type Service struct {
	gen     domain.Generator
	timeout time.Duration
}

// New creates a translation service. timeout bounds one model call; zero keeps the default.
func New(gen domain.Generator, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{gen: gen, timeout: timeout}
}

// Translate builds a filter for question. When no valid clause survives, or the model
// cannot be reached, it returns the partial translation with an error wrapping
// domain.ErrTranslationDegraded.
func (s *Service) Translate(ctx context.Context, question string, sch schema.Schema, model string) (Translation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Translation{}, fmt.Errorf("question is required: %w", domain.ErrInvalidQuery)
	}
	log := logger.FromContext(ctx)

	if IsMeta(question) {
		metrics.TranslationOutcomesTotal.WithLabelValues("match_all").Inc()
		log.Debug("meta question, matching all documents", zap.String("question", question))
		return Translation{MatchAll: true}, nil
	}

	ctx = domain.WithReplyCheck(ctx, func(text string) bool { return usable(text, sch) })
	gen, err := s.generate(ctx, model, buildPrompt(sch, question))
	if err != nil {
		return s.degraded(ctx, Translation{}, fmt.Errorf("generate: %w", err))
	}
	t := Translation{Raw: gen.Text}

	p, err := parseAnswer(gen.Text)
	if err != nil {
		return s.degraded(ctx, t, fmt.Errorf("parse answer: %w", err))
	}
	if p.matchAll {
		metrics.TranslationOutcomesTotal.WithLabelValues("match_all").Inc()
		t.MatchAll = true
		return t, nil
	}

	pruned, rejected := sch.PruneFilter(p.expr)
	t.Filter = pruned
	t.Dropped = p.dropped
	for _, r := range rejected {
		t.Dropped = append(t.Dropped, Dropped{Clause: r.Clause.String(), Reason: r.Reason})
	}

	if pruned.IsEmpty() {
		return s.degraded(ctx, t, fmt.Errorf("no valid clause in %q", gen.Text))
	}

	metrics.TranslationOutcomesTotal.WithLabelValues("ok").Inc()
	log.Debug("translated question",
		zap.String("question", question),
		zap.String("filter", pruned.String()),
		zap.Int("dropped", len(t.Dropped)))
	return t, nil
}

// usable reports whether a reply yields match-all or at least one valid clause.
func usable(text string, sch schema.Schema) bool {
	p, err := parseAnswer(text)
	if err != nil {
		return false
	}
	if p.matchAll {
		return true
	}
	pruned, _ := sch.PruneFilter(p.expr)
	return !pruned.IsEmpty()
}

func (s *Service) generate(ctx context.Context, model string, p domain.Prompt) (domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gen.Generate(ctx, model, p)
}

func (s *Service) degraded(ctx context.Context, t Translation, cause error) (Translation, error) {
	metrics.TranslationOutcomesTotal.WithLabelValues("degraded").Inc()
	logger.FromContext(ctx).Info("translation degraded",
		zap.Int("dropped", len(t.Dropped)), zap.Error(cause))
	return t, fmt.Errorf("%w: %w", domain.ErrTranslationDegraded, cause)
}
