// internal/app/features/userinfo/handler.go
package userinfo

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/divehub/internal/app/system/auth"
)

// Handler serves the identity behind the current session.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

// ServeUserInfo handles GET /api/me.
//
// Response format:
//
//	{ "isAuthenticated": bool, "id": "...", "name": "...", "email": "...", "role": "...", "csrf_token": "..." }
//
// csrf_token is present when the route is mounted behind auth.CSRF; send it
// back in the X-CSRF-Token header on logout and admin actions.
//
// The session user has already been re-read from the store by
// LoadSessionUser, so a revoked account reports unauthenticated.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	out := map[string]any{"isAuthenticated": false}
	if tok := auth.CSRFToken(r); tok != "" {
		out["csrf_token"] = tok
	}

	if user, ok := auth.CurrentUser(r); ok {
		out["isAuthenticated"] = true
		out["id"] = user.ID
		out["name"] = user.Name
		out["email"] = user.Email
		out["role"] = user.Role
	}
	_ = json.NewEncoder(w).Encode(out)
}
