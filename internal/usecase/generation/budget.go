package generation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain"
)

// BudgetAction defines behavior when the token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// budgetScope names the counters in the store.
const budgetScope = "generation"

// BudgetStore is the persistence interface for budget counters.
type BudgetStore interface {
	Add(ctx context.Context, scope string, p domain.BudgetPeriod, t time.Time, tokens int64) error
	Load(ctx context.Context, scope string, p domain.BudgetPeriod, t time.Time) (int64, error)
}

// BudgetTracker is an in-memory token budget tracker with optional persistence.
// Check never leaves the process. Record updates memory first, then writes behind to the store.
type BudgetTracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	dailyLimit     int64
	monthlyLimit   int64
	action         BudgetAction
	lastDayReset   time.Time
	lastMonthReset time.Time
	store          BudgetStore
	now            func() time.Time
	logger         *zap.Logger
}

// NewBudgetTracker creates a budget tracker. A zero limit is unlimited.
func NewBudgetTracker(dailyLimit, monthlyLimit int64, action BudgetAction, logger *zap.Logger) *BudgetTracker {
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	now := b.now()
	b.lastDayReset = truncateToDay(now)
	b.lastMonthReset = truncateToMonth(now)
	return b
}

// WithStore attaches a persistence store and loads current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.store = store
	b.loadFromStore(ctx)
	return b
}

func (b *BudgetTracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if val, err := b.store.Load(ctx, budgetScope, domain.BudgetDaily, now); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}

	if val, err := b.store.Load(ctx, budgetScope, domain.BudgetMonthly, now); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}

	b.logger.Info("Budget loaded from store",
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
}

// Check verifies the budget allows a new request.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit

	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrBudgetExceeded
	}

	// action=warn: log but allow the request through
	b.logger.Warn("Token budget exceeded",
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers consumed tokens after a request.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Persisted outside the request context.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.Add(ctx, budgetScope, domain.BudgetDaily, now, tokens); err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.Error(err))
	}
	if err := store.Add(ctx, budgetScope, domain.BudgetMonthly, now, tokens); err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.Error(err))
	}
}

// RemainingDaily returns tokens left in the daily budget (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.dailyUsed)
}

// RemainingMonthly returns tokens left in the monthly budget (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthlyUsed)
}

// Window returns limit, usage and remaining tokens for one budget period.
func (b *BudgetTracker) Window(period domain.BudgetPeriod) domain.BudgetWindow {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()
	if period == domain.BudgetMonthly {
		return domain.BudgetWindow{
			Limit:     b.monthlyLimit,
			Used:      b.monthlyUsed,
			Remaining: remaining(b.monthlyLimit, b.monthlyUsed),
		}
	}
	return domain.BudgetWindow{
		Limit:     b.dailyLimit,
		Used:      b.dailyUsed,
		Remaining: remaining(b.dailyLimit, b.dailyUsed),
	}
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1 // unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *BudgetTracker) resetIfNeeded() {
	now := b.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
