package httpapi

import (
	"encoding/json"
	"net/http"

	"trast/internal/codec"
	"trast/internal/executor"
	"trast/internal/model"

	"trast/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// mapError turns a typed service error into an HTTP status, a stable kind
// string and the retry hint. The kind is what callers key retry logic on.
func mapError(err error) (status int, kind string, retryable bool) {
	switch {
	case codec.IsMalformed(err):
		return http.StatusBadRequest, codec.ErrorKind(err), false
	case codec.IsSchemaMismatch(err), codec.IsOutOfRange(err):
		return http.StatusUnprocessableEntity, codec.ErrorKind(err), false
	case model.IsShapeMismatch(err):
		return http.StatusUnprocessableEntity, model.ErrorKind(err), false
	case model.IsNumericOverflow(err):
		return http.StatusInternalServerError, model.ErrorKind(err), false
	case model.IsBackendFatal(err):
		return http.StatusServiceUnavailable, "backend_unavailable", true
	case model.IsBackendFailure(err):
		return http.StatusInternalServerError, model.ErrorKind(err), false
	case executor.IsOverloaded(err):
		return http.StatusTooManyRequests, executor.ErrorKind(err), true
	case executor.IsDeadlineExceeded(err):
		return http.StatusGatewayTimeout, executor.ErrorKind(err), true
	case executor.IsUnavailable(err), executor.IsBackendUnavailable(err):
		return http.StatusServiceUnavailable, executor.ErrorKind(err), true
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode(), "internal", false
	}
	return http.StatusInternalServerError, "internal", false
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, kind string, retryable bool, msg, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error:         msg,
		Kind:          kind,
		Code:          status,
		Retryable:     retryable,
		CorrelationID: correlationID,
	})
}
