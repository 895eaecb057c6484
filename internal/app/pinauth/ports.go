package pinauth

import (
	"context"
	"time"

	"github.com/dalemusser/divehub/internal/domain/models"
)

// AccountStore is the account persistence the service needs. The MongoDB
// store (store/accounts) and the PostgreSQL store (pgstore) both satisfy it.
//
// Every state-changing method is a conditional write guarded by the legal
// source states of the action, returning storeerr.ErrStatusChanged when the
// row moved underneath the caller. Writes that set a PIN index return
// storeerr.ErrDuplicatePin when another account already holds it.
type AccountStore interface {
	Create(ctx context.Context, a models.Account) (models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context, f models.AccountFilter) ([]models.Account, error)

	PinIndexInUse(ctx context.Context, index string) (bool, error)
	FindByPinIndex(ctx context.Context, index string) (*models.Account, error)
	ListLegacyCredentials(ctx context.Context, limit int64) ([]models.Account, error)

	Approve(ctx context.Context, id string, cred models.Credential, actorID string, at time.Time) error
	Reject(ctx context.Context, id, actorID, reason string, at time.Time) error
	Revoke(ctx context.Context, id, actorID string, at time.Time) error
	Reopen(ctx context.Context, id string, at time.Time) error
	ResetCredential(ctx context.Context, id string, cred models.Credential, actorID string, at time.Time) error
	MigrateCredential(ctx context.Context, id string, cred models.Credential, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// RequestLog is the append-only record of accepted access requests.
type RequestLog interface {
	Record(ctx context.Context, r models.AccessRequest) error
	LatestByEmail(ctx context.Context, email string) (*models.AccessRequest, error)
}
