package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain"
)

// Error codes returned in the "code" field of error responses.
const (
	codeBadRequest         = "bad_request"
	codeUnauthorized       = "unauthorized"
	codeValidationFailed   = "validation_failed"
	codeInvalidModel       = "invalid_model"
	codeSchemaError        = "schema_error"
	codeCollectionNotFound = "collection_not_found"
	codeRateLimited        = "rate_limited"
	codeBudgetExceeded     = "budget_exceeded"
	codeModelUnavailable   = "model_unavailable"
	codeStoreUnavailable   = "store_unavailable"
	codeTimeout            = "timeout"
	codeInternalError      = "internal_error"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers maps sentinels to statuses. Order matters: the first match wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidModel, http.StatusBadRequest, codeInvalidModel),
		sentinelHandler(domain.ErrSchema, http.StatusBadRequest, codeSchemaError),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		sentinelHandler(domain.ErrBudgetExceeded, http.StatusTooManyRequests, codeBudgetExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeTimeout),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusBadGateway, codeModelUnavailable),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
	}
}

// clientSentinels are the errors whose messages may be shown to clients.
var clientSentinels = []error{
	domain.ErrInvalidQuery,
	domain.ErrInvalidModel,
	domain.ErrSchema,
	domain.ErrCollectionNotFound,
	domain.ErrBudgetExceeded,
	domain.ErrRateLimited,
	domain.ErrTimeout,
	domain.ErrModelUnavailable,
	domain.ErrStoreUnavailable,
	domain.ErrStructuringFailed,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Validation errors keep their full text since they only describe the request.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidQuery) || errors.Is(err, domain.ErrInvalidModel) || errors.Is(err, domain.ErrSchema) {
		return err.Error()
	}
	for _, s := range clientSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// itemErrorCode classifies a per-item failure for batch responses.
func itemErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrSchema):
		return codeSchemaError
	case errors.Is(err, domain.ErrStoreUnavailable):
		return codeStoreUnavailable
	default:
		return codeInternalError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
