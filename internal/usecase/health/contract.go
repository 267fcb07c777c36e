package health

import "context"

// StorePinger checks index service availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ModelChecker checks generative service availability.
type ModelChecker interface {
	HealthCheck(ctx context.Context) error
}
