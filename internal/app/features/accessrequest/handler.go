// internal/app/features/accessrequest/handler.go
package accessrequest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/divehub/internal/app/features/errors"
	"github.com/dalemusser/divehub/internal/app/pinauth"
	"github.com/dalemusser/divehub/internal/app/system/limits"
	"github.com/dalemusser/divehub/internal/app/system/ratelimit"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.uber.org/zap"
)

// Submitter is the slice of pinauth.Service this feature uses.
type Submitter interface {
	SubmitAccessRequest(ctx context.Context, sub pinauth.Submission) (*models.Account, error)
}

type Handler struct {
	Svc    Submitter
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(svc Submitter, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: errLog, Log: logger}
}

type requestBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleSubmit handles POST /access-requests. It accepts JSON or a
// urlencoded form.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxIntakeBody)

	var in requestBody
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			h.ErrLog.LogBadRequest(w, r, "decode access request", err, "Invalid request body.")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			h.ErrLog.LogBadRequest(w, r, "parse access request form", err, "Invalid form data.")
			return
		}
		in = requestBody{
			Name:  r.PostFormValue("name"),
			Email: r.PostFormValue("email"),
			Phone: r.PostFormValue("phone"),
		}
	}

	acct, err := h.Svc.SubmitAccessRequest(r.Context(), pinauth.Submission{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.ErrLog.Write(w, r, "submit access request", err)
		return
	}

	uierrors.WriteJSON(w, http.StatusCreated, response{
		Status:  acct.Status,
		Message: "Your request has been received. An administrator will review it.",
	})
}
