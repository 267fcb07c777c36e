package nlquery

import (
	"context"

	healthuc "github.com/kailas-cloud/nlquery/internal/usecase/health"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status  string            // "ok", "degraded", "error"
	Checks  map[string]string // component → "ok"/"error"
	StoreUp bool
	ModelUp bool
}

// Health checks the database and the model provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:  string(report.Status),
		Checks:  checks,
		StoreUp: report.StoreUp(),
		ModelUp: report.ModelUp(),
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
