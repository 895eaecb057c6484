package pinauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/divehub/internal/app/store/audit"
	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/apperr"
	"github.com/dalemusser/divehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/divehub/internal/app/system/normalize"
	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.uber.org/zap"
)

const (
	maxReasonLen = 500
	maxListLimit = 200
)

// BootstrapActor is recorded as the approver of an admin created from the
// command line.
const BootstrapActor = "system:bootstrap"

// RejectRequest rejects a pending account. reason is optional and is
// stripped of markup.
func (s *Service) RejectRequest(ctx context.Context, accountID, adminID, reason string) (*models.Account, error) {
	reason = strings.TrimSpace(htmlsanitize.PlainText(reason))
	if len(reason) > maxReasonLen {
		return nil, apperr.Validation("reason", fmt.Sprintf("Reason must be at most %d characters.", maxReasonLen))
	}
	return s.transition(ctx, accountID, adminID, status.Reject, audit.EventAccountRejected,
		map[string]string{"reason": reason},
		func(ctx context.Context) error {
			return s.accounts.Reject(ctx, accountID, adminID, reason, s.clock())
		})
}

// RevokeAccount revokes an approved account and clears its credential.
// Admins cannot revoke themselves.
func (s *Service) RevokeAccount(ctx context.Context, accountID, adminID string) (*models.Account, error) {
	if accountID != "" && accountID == adminID {
		return nil, apperr.Validation("id", "You cannot revoke your own account.")
	}
	return s.transition(ctx, accountID, adminID, status.Revoke, audit.EventAccountRevoked, nil,
		func(ctx context.Context) error {
			return s.accounts.Revoke(ctx, accountID, adminID, s.clock())
		})
}

// ReopenAccount returns a rejected or revoked account to pending so it can
// be approved again with a fresh PIN.
func (s *Service) ReopenAccount(ctx context.Context, accountID, adminID string) (*models.Account, error) {
	return s.transition(ctx, accountID, adminID, status.Reopen, audit.EventAccountReopened, nil,
		func(ctx context.Context) error {
			return s.accounts.Reopen(ctx, accountID, s.clock())
		})
}

// transition runs a credential-free admin action: authorize, check the
// precondition, conditionally write, re-read. Every such action leaves the
// account without a credential.
func (s *Service) transition(ctx context.Context, accountID, adminID string, action status.Action, eventType string, details map[string]string, write func(context.Context) error) (*models.Account, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, string(action))
	defer cancel()

	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	acct, err := s.loadTarget(ctx, accountID)
	if err != nil {
		return nil, err
	}
	next, ok := status.Next(acct.Status, action)
	if !ok {
		return nil, preconditionConflict(acct, action)
	}

	if err := write(ctx); err != nil {
		if errors.Is(err, storeerr.ErrStatusChanged) {
			return nil, s.alreadyProcessed(ctx, accountID, action)
		}
		return nil, s.storeFailure(string(action), err)
	}

	s.metrics.Transition(string(action))
	s.audit.AdminAction(ctx, eventType, accountID, adminID, details)
	s.log.Info("account transition",
		zap.String("account_id", accountID), zap.String("actor_id", adminID), zap.String("action", string(action)))

	after, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		// The write landed; report the state it produced.
		s.log.Warn("could not re-read account after transition",
			zap.String("account_id", accountID), zap.String("action", string(action)), zap.Error(err))
		a := *acct
		a.Status = next
		a.PinHash, a.PinIndex, a.LegacyPin = "", "", ""
		a.UpdatedAt = s.clock()
		return &a, nil
	}
	return after, nil
}

// ListAccounts returns accounts for the admin roster, newest first.
func (s *Service) ListAccounts(ctx context.Context, adminID string, f models.AccountFilter) ([]models.Account, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.log, "list accounts")
	defer cancel()

	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if f.Status != "" {
		f.Status = status.Normalize(f.Status)
		if !status.IsValid(f.Status) {
			return nil, apperr.Validation("status", "Unknown status filter.")
		}
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	out, err := s.accounts.List(ctx, f)
	if err != nil {
		return nil, s.storeFailure("list accounts", err)
	}
	return out, nil
}

// GetAccount returns one account for an admin.
func (s *Service) GetAccount(ctx context.Context, adminID, accountID string) (*models.Account, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "get account")
	defer cancel()

	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.loadTarget(ctx, accountID)
}

// CurrentAccount re-reads the account behind a session. It returns nil
// without error when the account is gone or can no longer log in.
func (s *Service) CurrentAccount(ctx context.Context, accountID string) (*models.Account, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "current account")
	defer cancel()

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storeerr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !status.CanLogin(acct.Status) {
		return nil, nil
	}
	return acct, nil
}

// BootstrapAdmin creates the first admin, approved, and returns its PIN.
// It refuses when the email already belongs to an account, except a pending
// admin left behind by an earlier run whose issuance failed: that row is
// picked up and issued a PIN.
func (s *Service) BootstrapAdmin(ctx context.Context, email, name string) (Issued, error) {
	email = normalize.Email(email)
	name = normalize.Name(name)
	if !emailRE.MatchString(email) {
		return Issued{}, apperr.Validation("email", "Enter a valid email address.")
	}
	if name == "" {
		return Issued{}, apperr.Validation("name", "Name is required.")
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.log, "bootstrap admin")
	defer cancel()

	acct, err := s.accounts.Create(ctx, models.Account{
		Email:     email,
		FullName:  name,
		Role:      models.RoleAdmin,
		Status:    status.Pending,
		CreatedAt: s.clock(),
	})
	switch {
	case errors.Is(err, storeerr.ErrDuplicateEmail):
		existing, err := s.strandedAdmin(ctx, email)
		if err != nil {
			return Issued{}, err
		}
		s.log.Info("resuming admin bootstrap", zap.String("account_id", existing.ID))
		acct = *existing
	case err != nil:
		return Issued{}, s.storeFailure("create admin", err)
	}

	issued, err := s.mint(ctx, &acct, status.Approve, BootstrapActor, func(ctx context.Context, cred models.Credential) error {
		return s.accounts.Approve(ctx, acct.ID, cred, BootstrapActor, s.clock())
	})
	if err != nil {
		return Issued{}, err
	}
	s.audit.AdminAction(ctx, audit.EventAdminBootstrapped, acct.ID, BootstrapActor, nil)
	return issued, nil
}

// strandedAdmin returns the pending admin holding email, or a Conflict when
// the email belongs to any other account.
func (s *Service) strandedAdmin(ctx context.Context, email string) (*models.Account, error) {
	taken := apperr.Conflict("an account with this email already exists")
	acct, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, storeerr.ErrNotFound):
		return nil, taken
	case err != nil:
		return nil, s.storeFailure("load admin", err)
	}
	if !acct.IsAdmin() || acct.Status != status.Pending {
		return nil, taken
	}
	return acct, nil
}
