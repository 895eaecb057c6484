// internal/app/features/members/list.go
package members

import (
	"net/http"

	uierrors "github.com/dalemusser/divehub/internal/app/features/errors"
	"github.com/dalemusser/divehub/internal/app/system/auth"
	"github.com/dalemusser/divehub/internal/app/system/normalize"
	"github.com/dalemusser/divehub/internal/app/system/paging"
	"github.com/dalemusser/divehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// ServeList handles GET /admin/accounts?status=&limit=&offset=.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	q := r.URL.Query()

	page := paging.Parse(r, paging.PageSize, 0)
	f := models.AccountFilter{
		Status: normalize.QueryParam(q.Get("status")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}

	list, err := h.Svc.ListAccounts(r.Context(), u.ID, f)
	if err != nil {
		h.ErrLog.Write(w, r, "list accounts", err)
		return
	}

	out := listResponse{Accounts: make([]accountView, 0, len(list)), Limit: f.Limit, Offset: f.Offset}
	for i := range list {
		out.Accounts = append(out.Accounts, toView(&list[i]))
	}
	uierrors.WriteJSON(w, http.StatusOK, out)
}

// ServeAccount handles GET /admin/accounts/{id}.
func (h *Handler) ServeAccount(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	acct, err := h.Svc.GetAccount(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.Write(w, r, "get account", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, toView(acct))
}
