package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/nlquery/internal/db"
	"github.com/kailas-cloud/nlquery/internal/db/memory"
	"github.com/kailas-cloud/nlquery/internal/domain"
)

var day = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func TestKey(t *testing.T) {
	s := New(nil, "nlq:", time.Hour, time.Hour)
	if got := s.Key("generation", domain.BudgetDaily, day); got != "nlq:budget:generation:daily:2026-10-14" {
		t.Errorf("daily key = %q", got)
	}
	if got := s.Key("generation", domain.BudgetMonthly, day); got != "nlq:budget:generation:monthly:2026-10" {
		t.Errorf("monthly key = %q", got)
	}
}

func TestAddLoad(t *testing.T) {
	s := New(memory.NewStore(), "nlq:", 48*time.Hour, 62*24*time.Hour)
	ctx := context.Background()

	got, err := s.Load(ctx, "generation", domain.BudgetDaily, day)
	if err != nil || got != 0 {
		t.Fatalf("empty counter: got %d, %v", got, err)
	}

	for _, n := range []int64{100, 250} {
		if err := s.Add(ctx, "generation", domain.BudgetDaily, day, n); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	got, err = s.Load(ctx, "generation", domain.BudgetDaily, day)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != 350 {
		t.Errorf("expected 350, got %d", got)
	}

	next, err := s.Load(ctx, "generation", domain.BudgetDaily, day.Add(24*time.Hour))
	if err != nil || next != 0 {
		t.Errorf("next day must start at zero, got %d, %v", next, err)
	}
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) IncrBy(context.Context, string, int64) error { return f.err }
func (f failingStore) Expire(context.Context, string, time.Duration, bool) error { return f.err }

func TestErrorsWrapped(t *testing.T) {
	s := New(failingStore{err: db.ErrUnavailable}, "nlq:", time.Hour, time.Hour)
	ctx := context.Background()

	if err := s.Add(ctx, "generation", domain.BudgetMonthly, day, 1); !errors.Is(err, db.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if _, err := s.Load(ctx, "generation", domain.BudgetMonthly, day); !errors.Is(err, db.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
