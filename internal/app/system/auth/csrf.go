package auth

import (
	"crypto/sha256"
	"encoding/json"
	"net/http"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

const (
	// CSRFCookieName holds the masked token secret.
	CSRFCookieName = "divehub-csrf"
	// CSRFHeader carries the token on JSON and HTMX requests. Form posts may
	// use the gorilla.csrf.Token field instead.
	CSRFHeader = "X-CSRF-Token"
)

// CSRF returns middleware that rejects unsafe requests without a valid
// token. Pages and scripts fetch the token from GET /api/me (csrf_token).
//
// With secure=false requests are treated as plain HTTP, which skips the
// Referer check gorilla/csrf applies to HTTPS. Origin is checked either way.
func CSRF(key string, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	sum := sha256.Sum256([]byte(key))

	protect := csrf.Protect(sum[:],
		csrf.CookieName(CSRFCookieName),
		csrf.RequestHeader(CSRFHeader),
		csrf.Path("/"),
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(csrfFailure(logger)),
	)

	return func(next http.Handler) http.Handler {
		h := protect(next)
		if secure {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// CSRFToken returns the token for the current request, or "" when the
// request did not pass through CSRF.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}

func csrfFailure(logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Warn("csrf check failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(csrf.FailureReason(r)))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "csrf",
			"message": "This request could not be verified. Reload the page and try again.",
		})
	})
}
