// internal/app/features/members/actions.go
package members

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/divehub/internal/app/features/errors"
	"github.com/dalemusser/divehub/internal/app/pinauth"
	"github.com/dalemusser/divehub/internal/app/system/auth"
	"github.com/dalemusser/divehub/internal/app/system/limits"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HandleApprove handles POST /admin/accounts/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	iss, err := h.Svc.ApproveAndIssuePin(r.Context(), chi.URLParam(r, "id"), u.ID)
	h.writeIssued(w, r, "approve account", iss, err)
}

// HandleRegeneratePin handles POST /admin/accounts/{id}/regenerate-pin.
func (h *Handler) HandleRegeneratePin(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	iss, err := h.Svc.RegeneratePin(r.Context(), chi.URLParam(r, "id"), u.ID)
	h.writeIssued(w, r, "regenerate pin", iss, err)
}

// HandleReject handles POST /admin/accounts/{id}/reject with an optional
// {"reason": "..."} body or reason form field.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	reason, ok := h.readReason(w, r)
	if !ok {
		return
	}
	acct, err := h.Svc.RejectRequest(r.Context(), chi.URLParam(r, "id"), u.ID, reason)
	if err != nil {
		h.ErrLog.Write(w, r, "reject account", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, toView(acct))
}

// HandleRevoke handles POST /admin/accounts/{id}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	acct, err := h.Svc.RevokeAccount(r.Context(), chi.URLParam(r, "id"), u.ID)
	if err != nil {
		h.ErrLog.Write(w, r, "revoke account", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, toView(acct))
}

// HandleReopen handles POST /admin/accounts/{id}/reopen.
func (h *Handler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	acct, err := h.Svc.ReopenAccount(r.Context(), chi.URLParam(r, "id"), u.ID)
	if err != nil {
		h.ErrLog.Write(w, r, "reopen account", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, toView(acct))
}

func (h *Handler) writeIssued(w http.ResponseWriter, r *http.Request, op string, iss pinauth.Issued, err error) {
	if err != nil {
		h.ErrLog.Write(w, r, op, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	uierrors.WriteJSON(w, http.StatusOK, issuedResponse{PIN: iss.PIN, Account: toView(iss.Account)})
	h.Log.Info("pin delivered to admin", zap.String("op", op), zap.String("account_id", iss.Account.ID))
}

func (h *Handler) readReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxAdminActionBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var in struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			h.ErrLog.LogBadRequest(w, r, "decode reject body", err, "Invalid request body.")
			return "", false
		}
		return in.Reason, true
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse reject form", err, "Invalid form data.")
		return "", false
	}
	return r.PostFormValue("reason"), true
}
