// internal/app/features/members/routes.go
package members

import (
	"github.com/dalemusser/divehub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts member administration. Typically:
// r.Mount("/admin/accounts", members.Routes(handler, sm))
//
// The role check here only gates the route; the service re-validates the
// actor against the store on every call.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("admin"))

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeAccount)

		pr.Post("/{id}/approve", h.HandleApprove)
		pr.Post("/{id}/reject", h.HandleReject)
		pr.Post("/{id}/revoke", h.HandleRevoke)
		pr.Post("/{id}/reopen", h.HandleReopen)
		pr.Post("/{id}/regenerate-pin", h.HandleRegeneratePin)
	})

	return r
}
