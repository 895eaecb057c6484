// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/dalemusser/divehub/internal/app/system/apperr"
)

// Body is the JSON error envelope every feature returns.
type Body struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	Field             string `json:"field,omitempty"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// WriteJSON writes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an apperr kind to its HTTP status code.
func StatusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindDenied:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// bodyFor builds the response for a classified error. Internal messages are
// replaced with a generic one.
func bodyFor(e *apperr.Error) Body {
	b := Body{Error: e.Kind.String(), Message: e.Message, Field: e.Field}
	switch e.Kind {
	case apperr.KindDenied:
		n := e.AttemptsRemaining
		b.AttemptsRemaining = &n
	case apperr.KindRateLimited:
		b.RetryAfterSeconds = retrySeconds(e)
	case apperr.KindInternal:
		if b.Message == "" {
			b.Message = "Something went wrong. Please try again."
		}
	}
	return b
}

func retrySeconds(e *apperr.Error) int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

func setRetryAfter(w http.ResponseWriter, e *apperr.Error) {
	if e.Kind == apperr.KindRateLimited && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(e)))
	}
}
