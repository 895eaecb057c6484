package pinauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/apperr"
	"github.com/dalemusser/divehub/internal/app/system/metrics"
	"github.com/dalemusser/divehub/internal/app/system/pingen"
	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.uber.org/zap"
)

const lockedMessage = "Too many failed attempts. Try again later."

// Attempt is one PIN login. ClientKey identifies the caller for lockout
// purposes and falls back to IP.
type Attempt struct {
	PIN       string
	ClientKey string
	IP        string
	UserAgent string
}

func (a Attempt) key() string {
	if a.ClientKey != "" {
		return a.ClientKey
	}
	if a.IP != "" {
		return a.IP
	}
	return "unknown"
}

// VerifyPinLogin resolves a bare PIN to the approved account holding it.
//
// A locked-out client is refused before the PIN is even parsed, and without
// touching the account store. Malformed PINs are refused without counting
// as a failure. Every other miss counts toward the lockout.
func (s *Service) VerifyPinLogin(ctx context.Context, a Attempt) (*models.Account, error) {
	key := a.key()

	st, err := s.lockout.Check(ctx, key)
	if err != nil {
		s.log.Error("lockout check failed", zap.Error(err))
		return nil, apperr.Transient("login is temporarily unavailable; try again", err)
	}
	if st.Locked {
		s.metrics.Login(metrics.LoginLocked)
		s.audit.LoginLocked(ctx)
		return nil, apperr.RateLimited(lockedMessage, st.RetryAfter)
	}

	pin := strings.TrimSpace(a.PIN)
	if !pingen.Valid(pin) {
		s.metrics.Login(metrics.LoginInvalid)
		return nil, apperr.Validation("pin", "PIN must be exactly 6 digits.")
	}

	lookupCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "pin lookup")
	defer cancel()

	acct, legacy, err := s.match(lookupCtx, pin)
	if err != nil {
		return nil, s.storeFailure("pin lookup", err)
	}
	if acct == nil {
		return nil, s.recordFailure(ctx, key)
	}

	migrated := false
	if legacy {
		migrated = s.migrate(lookupCtx, acct, pin)
	}
	if err := s.lockout.Reset(ctx, key); err != nil {
		s.log.Warn("lockout reset failed", zap.Error(err))
	}

	now := s.clock()
	acct.LastLoginAt = &now
	s.touchLastLogin(ctx, acct.ID, now)

	if migrated {
		s.metrics.Login(metrics.LoginMigrated)
	} else {
		s.metrics.Login(metrics.LoginSuccess)
	}
	s.audit.LoginSuccess(ctx, acct.ID, migrated)
	return acct, nil
}

func (s *Service) recordFailure(ctx context.Context, key string) error {
	st, err := s.lockout.Fail(ctx, key)
	if err != nil {
		s.log.Error("lockout record failed", zap.Error(err))
		return apperr.Transient("login is temporarily unavailable; try again", err)
	}
	if st.Locked {
		s.metrics.Lockout()
		s.metrics.Login(metrics.LoginLocked)
		s.audit.LoginLocked(ctx)
		return apperr.RateLimited(lockedMessage, st.RetryAfter)
	}
	s.metrics.Login(metrics.LoginDenied)
	s.audit.LoginFailed(ctx, st.AttemptsRemaining)
	return apperr.Denied(st.AttemptsRemaining)
}

// match looks the PIN up by index and confirms it against the salted hash.
// When the index misses it falls back to a bounded scan of accounts whose
// credential predates the index. legacy reports which path matched.
func (s *Service) match(ctx context.Context, pin string) (acct *models.Account, legacy bool, err error) {
	acct, err = s.accounts.FindByPinIndex(ctx, s.indexer.Index(pin))
	switch {
	case err == nil:
		if s.hasher.Verify(pin, acct.PinHash) && status.CanLogin(acct.Status) {
			return acct, false, nil
		}
		s.log.Warn("pin index matched but hash did not", zap.String("account_id", acct.ID))
		return nil, false, nil
	case !errors.Is(err, storeerr.ErrNotFound):
		return nil, false, err
	}

	candidates, err := s.accounts.ListLegacyCredentials(ctx, s.cfg.LegacyScanLimit)
	if err != nil {
		return nil, false, err
	}
	if hit := s.matchesLegacy(pin, candidates); hit != nil {
		return hit, true, nil
	}
	return nil, false, nil
}

// matchesLegacy returns the first candidate whose unindexed credential
// accepts pin: a stored hash (PBKDF2 or bcrypt) or a plaintext PIN.
func (s *Service) matchesLegacy(pin string, candidates []models.Account) *models.Account {
	for i := range candidates {
		c := &candidates[i]
		if !status.CanLogin(c.Status) {
			continue
		}
		if c.PinHash != "" {
			if s.hasher.Verify(pin, c.PinHash) {
				return c
			}
			continue
		}
		if c.LegacyPin != "" && subtle.ConstantTimeCompare([]byte(c.LegacyPin), []byte(pin)) == 1 {
			return c
		}
	}
	return nil
}

// migrate replaces a legacy credential with an indexed hash. Failure is
// logged and does not fail the login.
func (s *Service) migrate(ctx context.Context, acct *models.Account, pin string) bool {
	cred, err := s.credentialFor(pin)
	if err != nil {
		s.log.Warn("legacy credential rehash failed", zap.String("account_id", acct.ID), zap.Error(err))
		return false
	}
	if err := s.accounts.MigrateCredential(ctx, acct.ID, cred, s.clock()); err != nil {
		level := s.log.Warn
		if errors.Is(err, storeerr.ErrDuplicatePin) {
			// Another account was issued the same PIN after this one; the
			// legacy row stays unmigrated until an admin regenerates it.
			level = s.log.Error
		}
		level("legacy credential migration failed", zap.String("account_id", acct.ID), zap.Error(err))
		return false
	}
	acct.Status = status.Approved
	acct.PinHash, acct.PinIndex, acct.LegacyPin = cred.Hash, cred.Index, ""
	s.audit.PinMigrated(ctx, acct.ID)
	s.log.Info("legacy credential migrated", zap.String("account_id", acct.ID))
	return true
}
