package pinauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dalemusser/divehub/internal/app/store/audit"
	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/apperr"
	"github.com/dalemusser/divehub/internal/app/system/pingen"
	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.uber.org/zap"
)

// Issued is the result of a successful issuance. PIN is the only copy of
// the plaintext; it is not stored and must be delivered out of band.
type Issued struct {
	Account *models.Account
	PIN     string
}

// writeCredential applies one conditional credential write for an account.
type writeCredential func(ctx context.Context, cred models.Credential) error

// ApproveAndIssuePin approves a pending account and mints its PIN.
func (s *Service) ApproveAndIssuePin(ctx context.Context, accountID, adminID string) (Issued, error) {
	return s.issue(ctx, accountID, adminID, status.Approve, func(ctx context.Context, cred models.Credential) error {
		return s.accounts.Approve(ctx, accountID, cred, adminID, s.clock())
	})
}

// RegeneratePin replaces the PIN of an approved account. The old PIN stops
// working as soon as the write lands.
func (s *Service) RegeneratePin(ctx context.Context, accountID, adminID string) (Issued, error) {
	return s.issue(ctx, accountID, adminID, status.RegenPin, func(ctx context.Context, cred models.Credential) error {
		return s.accounts.ResetCredential(ctx, accountID, cred, adminID, s.clock())
	})
}

// issue runs the shared issuance sequence: authorize, check the
// precondition, then generate, hash and conditionally write until the store
// accepts the PIN index, and finally re-read to confirm what landed.
//
// A write that fails for any reason other than a taken index or a status
// change is reported as indeterminate and never retried here: the write
// may have landed, and retrying would issue a second PIN.
func (s *Service) issue(ctx context.Context, accountID, adminID string, action status.Action, write writeCredential) (Issued, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.log, "issue pin")
	defer cancel()

	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return Issued{}, err
	}
	acct, err := s.loadTarget(ctx, accountID)
	if err != nil {
		return Issued{}, err
	}
	return s.mint(ctx, acct, action, adminID, write)
}

// mint issues a credential to acct without re-checking the actor.
func (s *Service) mint(ctx context.Context, acct *models.Account, action status.Action, actorID string, write writeCredential) (Issued, error) {
	accountID := acct.ID
	if _, ok := status.Next(acct.Status, action); !ok {
		return Issued{}, preconditionConflict(acct, action)
	}

	legacy, err := s.accounts.ListLegacyCredentials(ctx, s.cfg.LegacyScanLimit)
	if err != nil {
		return Issued{}, s.storeFailure("list legacy credentials", err)
	}
	inUse := func(ctx context.Context, pin string) (bool, error) {
		taken, err := s.accounts.PinIndexInUse(ctx, s.indexer.Index(pin))
		if err != nil || taken {
			return taken, err
		}
		return s.matchesLegacy(pin, legacy) != nil, nil
	}

	for attempt := 0; attempt < s.cfg.IssueRetries; attempt++ {
		pin, collisions, err := s.gen.Unique(ctx, inUse)
		s.metrics.Collisions(collisions)
		if err != nil {
			if errors.Is(err, pingen.ErrExhausted) {
				s.log.Error("pin space exhausted", zap.String("account_id", accountID), zap.Int("collisions", collisions))
				return Issued{}, apperr.Internal("could not allocate a unique PIN; try again or contact support", err)
			}
			return Issued{}, s.storeFailure("pin uniqueness check", err)
		}

		cred, err := s.credentialFor(pin)
		if err != nil {
			return Issued{}, apperr.Internal("could not hash PIN", err)
		}

		err = write(ctx, cred)
		switch {
		case err == nil:
			return s.confirmIssued(ctx, acct, action, actorID, pin, cred)
		case errors.Is(err, storeerr.ErrDuplicatePin):
			// Lost a race for this index to a concurrent issuance; redraw.
			s.metrics.Collisions(1)
			s.log.Info("pin index taken at write time; redrawing",
				zap.String("account_id", accountID), zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, storeerr.ErrStatusChanged):
			return Issued{}, s.alreadyProcessed(ctx, accountID, action)
		default:
			// ctx may be the deadline that failed the write.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
			defer cancel()
			if after, ok := s.landed(rctx, accountID, pin, cred); ok {
				s.log.Warn("issuance write reported an error but the credential is stored",
					zap.String("account_id", accountID), zap.String("action", string(action)), zap.Error(err))
				return s.finishIssue(rctx, after, action, actorID, pin), nil
			}
			s.log.Error("issuance write outcome unknown",
				zap.String("account_id", accountID), zap.String("action", string(action)), zap.Error(err))
			return Issued{}, apperr.Transient("the approval may or may not have been saved; reload the account before trying again", err)
		}
	}

	return Issued{}, apperr.Internal("could not allocate a unique PIN; try again or contact support", pingen.ErrExhausted)
}

func (s *Service) credentialFor(pin string) (models.Credential, error) {
	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return models.Credential{}, err
	}
	return models.Credential{Hash: hash, Index: s.indexer.Index(pin)}, nil
}

// confirmIssued re-reads the account after a successful write. If the
// re-read fails the PIN is still returned: the write landed and the
// plaintext exists nowhere else.
func (s *Service) confirmIssued(ctx context.Context, before *models.Account, action status.Action, adminID, pin string, cred models.Credential) (Issued, error) {
	after, err := s.accounts.GetByID(ctx, before.ID)
	if err != nil {
		s.log.Warn("could not re-read account after issuance",
			zap.String("account_id", before.ID), zap.Error(err))
		a := *before
		a.Status = status.Approved
		a.PinHash, a.PinIndex, a.LegacyPin = cred.Hash, cred.Index, ""
		after = &a
	} else if subtle.ConstantTimeCompare([]byte(after.PinIndex), []byte(cred.Index)) != 1 || !s.hasher.Verify(pin, after.PinHash) {
		s.log.Error("issued credential not found on re-read", zap.String("account_id", before.ID))
		return Issued{}, apperr.Internal("the issued PIN was not stored; reload the account", nil)
	}

	return s.finishIssue(ctx, after, action, adminID, pin), nil
}

// landed re-reads the account after a write whose reply was lost and
// reports whether cred is what it now holds. A negative answer does not
// prove the write failed, only that it had not landed when read.
func (s *Service) landed(ctx context.Context, id, pin string, cred models.Credential) (*models.Account, bool) {
	after, err := s.accounts.GetByID(ctx, id)
	if err != nil || after.PinIndex == "" {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(after.PinIndex), []byte(cred.Index)) != 1 || !s.hasher.Verify(pin, after.PinHash) {
		return nil, false
	}
	return after, true
}

func (s *Service) finishIssue(ctx context.Context, after *models.Account, action status.Action, adminID, pin string) Issued {
	eventType, kind := audit.EventAccountApproved, "approve"
	if action == status.RegenPin {
		eventType, kind = audit.EventPinRegenerated, "regenerate"
	}
	s.metrics.PinIssued(kind)
	s.metrics.Transition(string(action))
	s.audit.AdminAction(ctx, eventType, after.ID, adminID, nil)
	s.log.Info("pin issued",
		zap.String("account_id", after.ID), zap.String("actor_id", adminID), zap.String("kind", kind))

	return Issued{Account: after, PIN: pin}
}

// alreadyProcessed re-fetches after a lost conditional write and reports
// the state the account is now in.
func (s *Service) alreadyProcessed(ctx context.Context, id string, action status.Action) error {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return apperr.Conflict("the account was changed by someone else; reload it")
	}
	return preconditionConflict(acct, action)
}

func preconditionConflict(acct *models.Account, action status.Action) error {
	return apperr.Conflict(fmt.Sprintf("cannot %s: account is %s", actionVerb(action), acct.Status))
}

func actionVerb(a status.Action) string {
	if a == status.RegenPin {
		return "regenerate PIN"
	}
	return string(a)
}
