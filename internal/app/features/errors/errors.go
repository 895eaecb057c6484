// internal/app/features/errors/errors.go
package errors

import (
	"net/http"
)

// Handler serves the targets RequireRole and RequireSignedIn redirect
// browsers to. No store needed.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden handles GET /forbidden.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusForbidden, Body{
		Error:   "forbidden",
		Message: "You don't have permission to view this page.",
	})
}

// Unauthorized handles GET /unauthorized.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusUnauthorized, Body{
		Error:   "unauthorized",
		Message: "Please sign in to continue.",
	})
}
