// Package generationtest provides a scripted domain.Generator for tests.
package generationtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kailas-cloud/nlquery/internal/domain"
)

type rule struct {
	contains string
	replies  []string
	err      error
	served   int
}

// Call is one recorded Generate invocation.
type Call struct {
	Model  string
	Prompt domain.Prompt
}

// Stub answers prompts from rules matched against the user message, first match wins.
// Unmatched prompts fail with domain.ErrModelUnavailable.
type Stub struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call
}

// New creates an empty stub.
func New() *Stub { return &Stub{} }

// On replies with reply whenever the user message contains substr.
func (s *Stub) On(substr, reply string) *Stub {
	return s.OnSequence(substr, reply)
}

// OnSequence serves replies in order for matching prompts; the last one repeats.
func (s *Stub) OnSequence(substr string, replies ...string) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule{contains: substr, replies: replies})
	return s
}

// Fail returns err whenever the user message contains substr.
func (s *Stub) Fail(substr string, err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule{contains: substr, err: err})
	return s
}

// Generate implements domain.Generator.
func (s *Stub) Generate(ctx context.Context, model string, prompt domain.Prompt) (domain.Generation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Generation{}, fmt.Errorf("stub: %w", domain.ErrTimeout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Model: model, Prompt: prompt})

	for _, r := range s.rules {
		if !strings.Contains(prompt.User, r.contains) {
			continue
		}
		if r.err != nil {
			return domain.Generation{}, r.err
		}
		i := r.served
		if i >= len(r.replies) {
			i = len(r.replies) - 1
		}
		r.served++
		return domain.Generation{
			Text:             r.replies[i],
			PromptTokens:     len(strings.Fields(prompt.System + " " + prompt.User)),
			CompletionTokens: len(strings.Fields(r.replies[i])),
		}, nil
	}
	return domain.Generation{}, fmt.Errorf("stub: no rule for prompt: %w", domain.ErrModelUnavailable)
}

// Calls returns the recorded invocations in order.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns the number of Generate invocations.
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
