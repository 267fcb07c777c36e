package domain

import "context"

// Prompt is a single request to the generative service.
type Prompt struct {
	System string
	User   string
}

// Generation carries the raw model output and token usage through the decorator chain.
// Text is untrusted and must be parsed and validated by the caller.
type Generation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Cached           bool
}

// Generator is the shared generative-service contract between layers.
type Generator interface {
	Generate(ctx context.Context, model string, prompt Prompt) (Generation, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type replyCheckKey struct{}

// WithReplyCheck attaches a validator for model replies. Caching layers store and
// serve only replies the validator accepts.
func WithReplyCheck(ctx context.Context, accept func(text string) bool) context.Context {
	return context.WithValue(ctx, replyCheckKey{}, accept)
}

// AcceptsReply reports whether the context's validator accepts text. Without a
// validator every reply is accepted.
func AcceptsReply(ctx context.Context, text string) bool {
	accept, ok := ctx.Value(replyCheckKey{}).(func(string) bool)
	if !ok || accept == nil {
		return true
	}
	return accept(text)
}
