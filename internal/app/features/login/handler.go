// internal/app/features/login/handler.go
package login

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/divehub/internal/app/features/errors"
	"github.com/dalemusser/divehub/internal/app/pinauth"
	"github.com/dalemusser/divehub/internal/app/system/auth"
	"github.com/dalemusser/divehub/internal/app/system/limits"
	"github.com/dalemusser/divehub/internal/app/system/ratelimit"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.uber.org/zap"
)

// Verifier is the slice of pinauth.Service this feature uses.
type Verifier interface {
	VerifyPinLogin(ctx context.Context, a pinauth.Attempt) (*models.Account, error)
}

type Handler struct {
	Svc        Verifier
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(svc Verifier, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:        svc,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Log:        logger,
	}
}

// AccountView is the account as returned to the signed-in user.
type AccountView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResponse struct {
	Account AccountView `json:"account"`
}

// HandlePinLogin handles POST /login/pin with {"pin":"123456"} or a pin
// form field.
func (h *Handler) HandlePinLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxLoginBody)

	var pin string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var in struct {
			PIN string `json:"pin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			h.ErrLog.LogBadRequest(w, r, "decode pin login", err, "Invalid request body.")
			return
		}
		pin = in.PIN
	} else {
		if err := r.ParseForm(); err != nil {
			h.ErrLog.LogBadRequest(w, r, "parse pin login form", err, "Invalid form data.")
			return
		}
		pin = r.PostFormValue("pin")
	}

	ip := ratelimit.ClientIP(r)
	acct, err := h.Svc.VerifyPinLogin(r.Context(), pinauth.Attempt{
		PIN:       pin,
		ClientKey: ip,
		IP:        ip,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.ErrLog.Write(w, r, "pin login", err)
		return
	}

	user, err := h.SessionMgr.Login(w, r, &auth.SessionUser{
		ID:    acct.ID,
		Name:  acct.FullName,
		Email: acct.Email,
		Role:  acct.Role,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "start session", err, "Could not start your session. Please try again.")
		return
	}
	h.Log.Info("pin login", zap.String("account_id", acct.ID), zap.String("session_id", user.SessionID))

	w.Header().Set("Cache-Control", "no-store")
	uierrors.WriteJSON(w, http.StatusOK, loginResponse{Account: AccountView{
		ID:    acct.ID,
		Name:  acct.FullName,
		Email: acct.Email,
		Role:  acct.Role,
	}})
}
