// Package gencache caches generative model output in the key-value store.
package gencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain"
)

// store is the consumer interface for the generation cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedGenerator caches completions keyed by model and prompt.
type CachedGenerator struct {
	inner      domain.Generator
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. Keys live under prefix+"gen_cache:"; zero ttl never expires.
// cacheTotal is a counter vec with label "result" ("hit", "miss" or "rejected"), passed explicitly.
func New(
	inner domain.Generator,
	s store,
	prefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedGenerator {
	return &CachedGenerator{
		inner:      inner,
		store:      s,
		prefix:     prefix + "gen_cache:",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Generate returns a cached completion or calls the inner generator.
// Cache hit: zero token usage and Cached=true. Replies rejected by the context's
// reply check (domain.WithReplyCheck) are neither stored nor served.
func (c *CachedGenerator) Generate(ctx context.Context, model string, prompt domain.Prompt) (domain.Generation, error) {
	key := c.cacheKey(model, prompt)

	if text, ok := c.getFromCache(ctx, key); ok {
		if domain.AcceptsReply(ctx, text) {
			c.incCache("hit")
			domain.UsageFromContext(ctx).AddCacheHit()
			return domain.Generation{Text: text, Cached: true}, nil
		}
		c.incCache("rejected")
	} else {
		c.incCache("miss")
	}

	out, err := c.inner.Generate(ctx, model, prompt)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("generate: %w", err)
	}

	if domain.AcceptsReply(ctx, out.Text) {
		c.putToCache(ctx, key, out.Text)
	}
	return out, nil
}

func (c *CachedGenerator) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedGenerator) cacheKey(model string, prompt domain.Prompt) string {
	h := sha256.New()
	for _, part := range []string{model, prompt.System, prompt.User} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedGenerator) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached generation", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *CachedGenerator) putToCache(ctx context.Context, key, text string) {
	if text == "" {
		return
	}
	var err error
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, []byte(text), c.ttl)
	} else {
		err = c.store.Set(ctx, key, []byte(text))
	}
	if err != nil {
		c.logger.Warn("Failed to cache generation", zap.String("key", key), zap.Error(err))
	}
}
