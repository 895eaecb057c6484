// internal/app/features/members/handler.go
package members

import (
	"context"

	uierrors "github.com/dalemusser/divehub/internal/app/features/errors"
	"github.com/dalemusser/divehub/internal/app/pinauth"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.uber.org/zap"
)

// Admin is the slice of pinauth.Service the member admin screens use.
type Admin interface {
	ListAccounts(ctx context.Context, adminID string, f models.AccountFilter) ([]models.Account, error)
	GetAccount(ctx context.Context, adminID, accountID string) (*models.Account, error)
	ApproveAndIssuePin(ctx context.Context, accountID, adminID string) (pinauth.Issued, error)
	RegeneratePin(ctx context.Context, accountID, adminID string) (pinauth.Issued, error)
	RejectRequest(ctx context.Context, accountID, adminID, reason string) (*models.Account, error)
	RevokeAccount(ctx context.Context, accountID, adminID string) (*models.Account, error)
	ReopenAccount(ctx context.Context, accountID, adminID string) (*models.Account, error)
}

// Handler is the feature-level handler for member administration.
type Handler struct {
	Svc    Admin
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

func NewHandler(svc Admin, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:    svc,
		Log:    logger,
		ErrLog: errLog,
	}
}
