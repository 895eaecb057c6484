// internal/app/features/errors/logger.go
package errors

import (
	"net/http"

	"github.com/dalemusser/divehub/internal/app/system/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorLogger logs handler failures and writes the JSON response for them.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

// Write renders err. Classified errors map to their status; anything else
// is a 500. Server-side kinds are logged at error level, the rest at debug.
func (el *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, op string, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal("", err)
	}
	status := StatusFor(e.Kind)

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("kind", e.Kind.String()),
		zap.Int("status", status),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	}
	if status >= http.StatusInternalServerError {
		el.log.Error("request failed", append(fields, zap.Error(err))...)
	} else {
		el.log.Debug("request refused", fields...)
	}

	setRetryAfter(w, e)
	WriteJSON(w, status, bodyFor(e))
}

// LogBadRequest logs and renders a malformed request.
func (el *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	el.log.Warn(msg, zap.Error(err), zap.String("path", r.URL.Path))
	WriteJSON(w, http.StatusBadRequest, Body{Error: "bad_request", Message: userMsg})
}

// LogServerError logs and renders an unexpected failure.
func (el *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	el.log.Error(msg, zap.Error(err), zap.String("path", r.URL.Path))
	WriteJSON(w, http.StatusInternalServerError, Body{Error: "internal", Message: userMsg})
}
