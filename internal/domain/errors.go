package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStructuringFailed signals that a single input line could not be structured.
	ErrStructuringFailed = errors.New("structuring failed")
	// ErrSchema signals a schema mismatch or malformed schema. Not retryable.
	ErrSchema = errors.New("schema error")
	// ErrStoreUnavailable signals a connectivity or timeout failure of the index service. Retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrTranslationDegraded signals that no valid filter clause survived translation.
	ErrTranslationDegraded = errors.New("translation degraded")
	// ErrModelUnavailable signals a generative service failure.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrTimeout signals that a remote call exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrCollectionNotFound signals a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists signals a create race on the same collection name.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrInvalidQuery signals a malformed search or query request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidModel signals a model id outside the configured allow-list.
	ErrInvalidModel = errors.New("invalid model")
	// ErrRateLimited signals that a local rate limit was hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrBudgetExceeded signals that the generation token budget is spent.
	ErrBudgetExceeded = errors.New("generation budget exceeded")
)

// StructuringFailure reports why one input line produced no record.
// It matches both ErrStructuringFailed and the underlying cause via errors.Is.
type StructuringFailure struct {
	Line   string
	Reason string
	Err    error
}

func (e *StructuringFailure) Error() string {
	return fmt.Sprintf("%s: %s", ErrStructuringFailed.Error(), e.Reason)
}

func (e *StructuringFailure) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStructuringFailed}
	}
	return []error{ErrStructuringFailed, e.Err}
}

// NewStructuringFailure creates a per-line structuring failure.
func NewStructuringFailure(line, reason string, cause error) error {
	return &StructuringFailure{Line: line, Reason: reason, Err: cause}
}

// SchemaMismatchError wraps ErrSchema with the stored and requested schema fingerprints.
type SchemaMismatchError struct {
	Collection string
	Stored     string
	Requested  string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: collection %q has schema %s, requested %s",
		ErrSchema.Error(), e.Collection, e.Stored, e.Requested)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchema }

// NewSchemaMismatch creates a schema mismatch error.
func NewSchemaMismatch(collection, stored, requested string) error {
	return &SchemaMismatchError{Collection: collection, Stored: stored, Requested: requested}
}
