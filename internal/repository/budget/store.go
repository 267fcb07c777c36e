// Package budget persists generation token counters with day and month expiry.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/domain"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps token counters as plain integer keys (INCRBY + EXPIRE NX).
type Store struct {
	store    store
	prefix   string
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. Keys live under prefix+"budget:".
// dailyTTL is the TTL for daily keys (recommended: 48h).
// monthTTL is the TTL for monthly keys (recommended: 62 days).
func New(s store, prefix string, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		store:    s,
		prefix:   prefix,
		dailyTTL: dailyTTL,
		monthTTL: monthTTL,
	}
}

// Key returns the counter key of the window containing t,
// e.g. "nlq:budget:generation:daily:2026-10-14".
func (s *Store) Key(scope string, p domain.BudgetPeriod, t time.Time) string {
	stamp := t.UTC().Format("2006-01")
	if p == domain.BudgetDaily {
		stamp = t.UTC().Format("2006-01-02")
	}
	return fmt.Sprintf("%sbudget:%s:%s:%s", s.prefix, scope, p, stamp)
}

// Add increments the counter of the window containing t and sets its TTL once.
func (s *Store) Add(ctx context.Context, scope string, p domain.BudgetPeriod, t time.Time, tokens int64) error {
	key := s.Key(scope, p, t)
	if err := s.store.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}

	// Set TTL only if the key has no expiry yet (NX, not reset on repeat).
	if err := s.store.Expire(ctx, key, s.ttl(p), true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Load returns the counter of the window containing t. Returns 0 if the key does not exist.
func (s *Store) Load(ctx context.Context, scope string, p domain.BudgetPeriod, t time.Time) (int64, error) {
	key := s.Key(scope, p, t)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) ttl(p domain.BudgetPeriod) time.Duration {
	if p == domain.BudgetDaily {
		return s.dailyTTL
	}
	return s.monthTTL
}
