package domain

import (
	"context"
	"sync"
)

type generationUsageKey struct{}

// GenerationUsage collects generative calls and token usage for a single request.
// The handler puts it into the context, the generation chain writes to it
// (possibly from several goroutines) and the handler reads it for the response.
type GenerationUsage struct {
	mu        sync.Mutex
	calls     int
	cacheHits int
	tokens    int
}

// NewContextWithUsage returns a context with a usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *GenerationUsage) {
	u := &GenerationUsage{}
	return context.WithValue(ctx, generationUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *GenerationUsage {
	u, _ := ctx.Value(generationUsageKey{}).(*GenerationUsage)
	return u
}

// AddCall records one provider call and the tokens it consumed.
func (u *GenerationUsage) AddCall(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.calls++
	u.tokens += tokens
	u.mu.Unlock()
}

// AddCacheHit records a completion served from the cache.
func (u *GenerationUsage) AddCacheHit() {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.cacheHits++
	u.mu.Unlock()
}

// Snapshot returns provider calls, cache hits and tokens recorded so far.
func (u *GenerationUsage) Snapshot() (calls, cacheHits, tokens int) {
	if u == nil {
		return 0, 0, 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, u.cacheHits, u.tokens
}
