// Package retrieve answers a question with matching records: filtered search first,
// free-text search over the provenance text when translation degrades.
package retrieve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/domain/schema"
	"github.com/kailas-cloud/nlquery/internal/domain/search/filter"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/logger"
	"github.com/kailas-cloud/nlquery/internal/usecase/translate"
)

const defaultMatchAllLimit = 100

// Retrieval is the retrieved result set and how it was obtained.
type Retrieval struct {
	Results      result.Set
	Filter       filter.Expression
	Dropped      []translate.Dropped
	FallbackUsed bool
	MatchAll     bool
}

// Service orchestrates translation and search.
type Service struct {
	translator    Translator
	searcher      Searcher
	matchAllLimit int
}

// New creates a retriever. matchAllLimit caps whole-collection listings; zero keeps the default.
func New(t Translator, s Searcher, matchAllLimit int) *Service {
	if matchAllLimit <= 0 {
		matchAllLimit = defaultMatchAllLimit
	}
	return &Service{translator: t, searcher: s, matchAllLimit: matchAllLimit}
}

// Retrieve returns up to limit records for question. A degraded translation falls back to
// free-text search with the raw question and is not an error; store errors are returned.
func (s *Service) Retrieve(ctx context.Context, question string, sch schema.Schema, model string, limit int) (Retrieval, error) {
	log := logger.FromContext(ctx)

	tr, err := s.translator.Translate(ctx, question, sch, model)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTranslationDegraded):
		log.Info("falling back to free-text search", zap.String("question", question), zap.Error(err))
		set, serr := s.searcher.Search(ctx, filter.Expression{}, question, limit)
		if serr != nil {
			return Retrieval{}, fmt.Errorf("free-text search: %w", serr)
		}
		return Retrieval{Results: set, Dropped: tr.Dropped, FallbackUsed: true}, nil
	default:
		return Retrieval{}, fmt.Errorf("translate question: %w", err)
	}

	if tr.MatchAll {
		set, err := s.searcher.List(ctx, s.matchAllLimit)
		if err != nil {
			return Retrieval{}, fmt.Errorf("list documents: %w", err)
		}
		return Retrieval{Results: set, MatchAll: true}, nil
	}

	set, err := s.searcher.Search(ctx, tr.Filter, "", limit)
	if err != nil {
		return Retrieval{}, fmt.Errorf("filtered search: %w", err)
	}
	return Retrieval{Results: set, Filter: tr.Filter, Dropped: tr.Dropped}, nil
}
