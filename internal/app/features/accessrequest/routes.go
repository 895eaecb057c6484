// internal/app/features/accessrequest/routes.go
package accessrequest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the public intake endpoint. throttle may be nil.
func Routes(h *Handler, throttle func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	if throttle != nil {
		r.Use(throttle)
	}
	r.Post("/", h.HandleSubmit)
	return r
}
