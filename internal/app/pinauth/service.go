// Package pinauth implements the PIN access workflow: self-service access
// requests, admin approval with PIN issuance, PIN login with lockout, and
// the remaining admin lifecycle actions.
package pinauth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/divehub/internal/app/store/storeerr"
	"github.com/dalemusser/divehub/internal/app/system/apperr"
	"github.com/dalemusser/divehub/internal/app/system/auditlog"
	"github.com/dalemusser/divehub/internal/app/system/lockout"
	"github.com/dalemusser/divehub/internal/app/system/metrics"
	"github.com/dalemusser/divehub/internal/app/system/pingen"
	"github.com/dalemusser/divehub/internal/app/system/pinhash"
	"github.com/dalemusser/divehub/internal/app/system/status"
	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"github.com/dalemusser/divehub/internal/domain/models"
	"go.uber.org/zap"
)

// Defaults for Config fields left at zero.
const (
	DefaultRequestCooldown = 24 * time.Hour
	DefaultLegacyScanLimit = 100
	DefaultIssueRetries    = 3
)

// Config tunes the service.
type Config struct {
	// RequestCooldown is how long after one access request the same email
	// may not submit another.
	RequestCooldown time.Duration
	// LegacyScanLimit bounds the scan over accounts whose credential
	// predates the PIN index.
	LegacyScanLimit int64
	// IssueRetries is how many times issuance redraws a PIN after the store
	// reports the index as taken.
	IssueRetries int
}

// Deps are the collaborators the service is built from. Audit and Metrics
// may be nil.
type Deps struct {
	Accounts  AccountStore
	Requests  RequestLog
	Lockout   lockout.Tracker
	Hasher    *pinhash.Hasher
	Indexer   *pinhash.Indexer
	Generator *pingen.Generator
	Audit     *auditlog.Logger
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	accounts AccountStore
	requests RequestLog
	lockout  lockout.Tracker
	hasher   *pinhash.Hasher
	indexer  *pinhash.Indexer
	gen      *pingen.Generator
	audit    *auditlog.Logger
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
	cfg      Config

	// bg tracks fire-and-forget writes so shutdown can drain them.
	bg sync.WaitGroup
}

// New validates deps and returns a ready Service.
func New(d Deps, cfg Config) (*Service, error) {
	switch {
	case d.Accounts == nil:
		return nil, errors.New("pinauth: account store is required")
	case d.Requests == nil:
		return nil, errors.New("pinauth: request log is required")
	case d.Lockout == nil:
		return nil, errors.New("pinauth: lockout tracker is required")
	case d.Hasher == nil || d.Indexer == nil:
		return nil, errors.New("pinauth: hasher and indexer are required")
	}
	if d.Generator == nil {
		d.Generator = pingen.New(pingen.DefaultAttempts)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if cfg.RequestCooldown <= 0 {
		cfg.RequestCooldown = DefaultRequestCooldown
	}
	if cfg.LegacyScanLimit <= 0 {
		cfg.LegacyScanLimit = DefaultLegacyScanLimit
	}
	if cfg.IssueRetries <= 0 {
		cfg.IssueRetries = DefaultIssueRetries
	}
	return &Service{
		accounts: d.Accounts,
		requests: d.Requests,
		lockout:  d.Lockout,
		hasher:   d.Hasher,
		indexer:  d.Indexer,
		gen:      d.Generator,
		audit:    d.Audit,
		metrics:  d.Metrics,
		log:      d.Logger,
		now:      d.Now,
		cfg:      cfg,
	}, nil
}

// Wait blocks until background writes started by logins have finished.
func (s *Service) Wait() {
	s.bg.Wait()
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// requireAdmin loads the actor and confirms it is an approved admin. It runs
// before the target is read so a refusal never reveals whether the target
// exists.
func (s *Service) requireAdmin(ctx context.Context, actorID string) (*models.Account, error) {
	if actorID == "" {
		return nil, apperr.Forbidden()
	}
	actor, err := s.accounts.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, storeerr.ErrNotFound) {
			return nil, apperr.Forbidden()
		}
		return nil, s.storeFailure("load actor", err)
	}
	if !actor.IsAdmin() || !status.CanLogin(actor.Status) {
		return nil, apperr.Forbidden()
	}
	return actor, nil
}

// loadTarget fetches the account an admin action applies to.
func (s *Service) loadTarget(ctx context.Context, id string) (*models.Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storeerr.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, s.storeFailure("load account", err)
	}
	return acct, nil
}

// storeFailure wraps an unexpected store error as Transient.
func (s *Service) storeFailure(op string, err error) error {
	s.log.Warn("store call failed", zap.String("op", op), zap.Error(err))
	if timeouts.IsTimeout(err) {
		return apperr.Transient("the store did not respond in time; try again", err)
	}
	return apperr.Transient("the store is unavailable; try again", err)
}

// touchLastLogin records the login time without holding up the caller.
func (s *Service) touchLastLogin(ctx context.Context, id string, at time.Time) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := timeouts.Detached(ctx, timeouts.Short())
		defer cancel()
		if err := s.accounts.TouchLastLogin(ctx, id, at); err != nil {
			s.log.Warn("failed to record last login", zap.String("account_id", id), zap.Error(err))
		}
	}()
}
