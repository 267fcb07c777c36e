package nlquery

import "github.com/kailas-cloud/nlquery/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery       = domain.ErrInvalidQuery
	ErrInvalidModel       = domain.ErrInvalidModel
	ErrSchema             = domain.ErrSchema
	ErrCollectionNotFound = domain.ErrCollectionNotFound
	ErrStructuringFailed  = domain.ErrStructuringFailed
	ErrStoreUnavailable   = domain.ErrStoreUnavailable
	ErrModelUnavailable   = domain.ErrModelUnavailable
	ErrTimeout            = domain.ErrTimeout
	ErrRateLimited        = domain.ErrRateLimited
	ErrBudgetExceeded     = domain.ErrBudgetExceeded
)
