package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/nlquery/internal/domain"
)

// Period selects the reporting window.
type Period string

// Reporting windows.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "day" and "month". Empty selects the day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q (want day or month)", s)
	}
}

// Report describes generation token usage for one window. Limit 0 and Remaining -1 mean unlimited.
type Report struct {
	Period      Period
	PeriodStart int64 // unix millis
	PeriodEnd   int64 // unix millis
	Limit       int64
	Used        int64
	Remaining   int64
	Exhausted   bool
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := s.now().UTC()
	r := Report{Period: period, Remaining: -1}

	switch period {
	case PeriodMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodStart = start.UnixMilli()
		r.PeriodEnd = start.AddDate(0, 1, 0).UnixMilli()
		s.fill(&r, domain.BudgetMonthly)
	default:
		r.Period = PeriodDay
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodStart = start.UnixMilli()
		r.PeriodEnd = start.Add(24 * time.Hour).UnixMilli()
		s.fill(&r, domain.BudgetDaily)
	}

	r.Exhausted = r.Limit > 0 && r.Remaining == 0
	return r
}

func (s *Service) fill(r *Report, period domain.BudgetPeriod) {
	if s.br == nil {
		return
	}
	w := s.br.Window(period)
	r.Limit, r.Used, r.Remaining = w.Limit, w.Used, w.Remaining
}
