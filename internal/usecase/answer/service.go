// Package answer synthesizes a grounded natural-language answer from search results.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain"
	domanswer "github.com/kailas-cloud/nlquery/internal/domain/answer"
	"github.com/kailas-cloud/nlquery/internal/domain/search/result"
	"github.com/kailas-cloud/nlquery/internal/logger"
)

const (
	defaultTopK    = 5
	defaultTimeout = 20 * time.Second
)

var citedLine = regexp.MustCompile(`(?im)^[ \t*_]*cited[ \t*_]*:(.*)$`)

// Service turns result sets into answers.
type Service struct {
	gen     domain.Generator
	topK    int
	timeout time.Duration
}

// New creates an answer synthesizer. Zero topK or timeout keep the defaults.
func New(gen domain.Generator, topK int, timeout time.Duration) *Service {
	if topK <= 0 {
		topK = defaultTopK
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{gen: gen, topK: topK, timeout: timeout}
}

// Synthesize answers question from the top results. An empty set yields the fixed
// no-results answer without a model call; a model failure yields a deterministic
// summary citing every shown record.
func (s *Service) Synthesize(ctx context.Context, question string, results result.Set, model string) (domanswer.Answer, error) {
	if results.IsEmpty() {
		return domanswer.Empty(), nil
	}
	top := results.Top(s.topK)
	ids := make([]string, len(top))
	for i, h := range top {
		ids[i] = h.ID()
	}

	gen, err := s.generate(ctx, model, buildPrompt(question, top, results.Total()))
	if err != nil {
		logger.FromContext(ctx).Warn("answer generation failed, using fallback", zap.Error(err))
		return domanswer.NewFallback(Fallback(results.Total(), top), ids), nil
	}

	text, cited := splitCitations(gen.Text, ids)
	if text == "" {
		return domanswer.NewFallback(Fallback(results.Total(), top), ids), nil
	}
	return domanswer.New(text, cited), nil
}

func (s *Service) generate(ctx context.Context, model string, p domain.Prompt) (domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.gen.Generate(ctx, model, p)
}

// splitCitations removes CITED lines from raw and returns the cited ids that are among shown,
// in order of first citation. No usable citation cites every shown id.
func splitCitations(raw string, shown []string) (string, []string) {
	allowed := make(map[string]bool, len(shown))
	for _, id := range shown {
		allowed[id] = true
	}

	var cited []string
	seen := make(map[string]bool)
	for _, m := range citedLine.FindAllStringSubmatch(raw, -1) {
		for _, tok := range strings.FieldsFunc(m[1], func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		}) {
			id := strings.Trim(tok, "[]\"'`*_.")
			if allowed[id] && !seen[id] {
				seen[id] = true
				cited = append(cited, id)
			}
		}
	}

	text := strings.TrimSpace(citedLine.ReplaceAllString(raw, ""))
	if len(cited) == 0 {
		cited = append([]string(nil), shown...)
	}
	return text, cited
}

// Fallback summarises the results without a model: "Found N result(s): names".
func Fallback(total int, hits []result.Hit) string {
	var names []string
	for _, h := range hits {
		if n := h.String("name"); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Found %d matching documents", total)
	}
	return fmt.Sprintf("Found %d result(s): %s", total, strings.Join(names, ", "))
}
