// internal/app/features/login/routes.go
package login

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the PIN login endpoint. throttle may be nil.
func Routes(h *Handler, throttle func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		if throttle != nil {
			pr.Use(throttle)
		}
		pr.Post("/pin", h.HandlePinLogin)
	})
	return r
}
