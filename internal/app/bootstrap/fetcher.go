// internal/app/bootstrap/fetcher.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/divehub/internal/app/system/auth"
	"github.com/dalemusser/divehub/internal/domain/models"
)

// accountSource is the part of pinauth.Service the session needs.
type accountSource interface {
	CurrentAccount(ctx context.Context, accountID string) (*models.Account, error)
}

// accountFetcher adapts the PIN service to auth.UserFetcher.
type accountFetcher struct {
	svc accountSource
}

func (f accountFetcher) FetchUser(ctx context.Context, accountID string) (*auth.SessionUser, error) {
	acct, err := f.svc.CurrentAccount(ctx, accountID)
	if err != nil || acct == nil {
		return nil, err
	}
	return &auth.SessionUser{
		ID:    acct.ID,
		Name:  acct.FullName,
		Email: acct.Email,
		Role:  acct.Role,
	}, nil
}
