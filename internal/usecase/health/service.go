package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentStore = "store"
	ComponentModel = "model"
)

const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// StoreUp reports whether the index service answered.
func (r Report) StoreUp() bool { return r.Checks[ComponentStore] == CheckOK }

// ModelUp reports whether the generative service answered.
func (r Report) ModelUp() bool { return r.Checks[ComponentModel] == CheckOK }

// Service coordinates health checks.
type Service struct {
	store StorePinger
	model ModelChecker
}

// New creates a Service. model can be nil.
func New(store StorePinger, model ModelChecker) *Service {
	return &Service{store: store, model: model}
}

// Check runs health checks against all components, each under its own deadline.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[ComponentStore] = probe(ctx, s.store.Ping)
	if s.model != nil {
		checks[ComponentModel] = probe(ctx, s.model.HealthCheck)
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func probe(ctx context.Context, fn func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
