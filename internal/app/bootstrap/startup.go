// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/divehub/internal/app/pinauth"
	"github.com/dalemusser/divehub/internal/app/system/auditlog"
	"github.com/dalemusser/divehub/internal/app/system/auth"
	"github.com/dalemusser/divehub/internal/app/system/lockout"
	"github.com/dalemusser/divehub/internal/app/system/metrics"
	"github.com/dalemusser/divehub/internal/app/system/pingen"
	"github.com/dalemusser/divehub/internal/app/system/pinhash"
	"github.com/dalemusser/divehub/internal/app/system/ratelimit"
	"github.com/dalemusser/divehub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the PIN service, the session manager and the request throttles, and starts
// the sweeper that prunes their in-memory state.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	rt := deps.Runtime
	if rt == nil {
		return errors.New("startup: DBDeps has no runtime; was ConnectDB skipped?")
	}

	rt.Metrics = metrics.New()
	rt.AuditLog = auditlog.New(deps.Audit, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	tracker := newTracker(appCfg, deps)
	svc, err := BuildService(appCfg, deps, tracker, rt.AuditLog, rt.Metrics, logger)
	if err != nil {
		return err
	}
	rt.Service = svc

	sessionKey := appCfg.SessionKey
	if sessionKey == "" {
		logger.Warn("no session_key configured; using a random key, sessions end on restart")
		sessionKey = auth.GenerateDevKey()
	}
	secure := coreCfg.Env == "prod"
	rt.Sessions, err = auth.NewSessionManager(sessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return err
	}
	// Re-read the account on every request so revocation and role changes
	// take effect immediately.
	rt.Sessions.SetUserFetcher(accountFetcher{svc: svc})

	csrfKey := appCfg.CSRFKey
	if csrfKey == "" {
		logger.Warn("no csrf_key configured; using a random key, tokens end on restart")
		csrfKey = auth.GenerateDevKey()
	}
	rt.CSRF = auth.CSRF(csrfKey, secure, logger)

	rt.Intake = ratelimit.PerMinute(appCfg.IntakeRatePerMinute)
	rt.Login = ratelimit.PerMinute(appCfg.LoginRatePerMinute)

	rt.Sweeper = workers.NewSweeper(logger, appCfg.SweepInterval)
	if mem, ok := tracker.(*lockout.Memory); ok {
		rt.Sweeper.Add("lockout", mem.Sweep)
	}
	rt.Sweeper.Add("intake-throttle", func() int { return rt.Intake.Sweep(ratelimit.IdleTTL) })
	rt.Sweeper.Add("login-throttle", func() int { return rt.Login.Sweep(ratelimit.IdleTTL) })
	rt.Sweeper.Start()

	logger.Info("divehub runtime ready",
		zap.String("store_backend", backendName(appCfg)),
		zap.String("lockout_backend", lockoutName(deps)))
	return nil
}

// BuildService assembles the PIN service over the connected stores. The
// operator CLI uses it too.
func BuildService(appCfg AppConfig, deps DBDeps, tracker lockout.Tracker, audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) (*pinauth.Service, error) {
	indexer, err := pinhash.NewIndexer([]byte(appCfg.PinIndexKey))
	if err != nil {
		return nil, fmt.Errorf("pin index key: %w", err)
	}
	if tracker == nil {
		tracker = newTracker(appCfg, deps)
	}
	return pinauth.New(pinauth.Deps{
		Accounts:  deps.Accounts,
		Requests:  deps.Requests,
		Lockout:   tracker,
		Hasher:    pinhash.New(appCfg.PinHashIterations, logger),
		Indexer:   indexer,
		Generator: pingen.New(appCfg.PinGenerateAttempts),
		Audit:     audit,
		Metrics:   m,
		Logger:    logger,
	}, pinauth.Config{
		RequestCooldown: appCfg.RequestCooldown,
		LegacyScanLimit: appCfg.LegacyScanLimit,
	})
}

func newTracker(appCfg AppConfig, deps DBDeps) lockout.Tracker {
	p := lockout.Policy{
		MaxFailures: appCfg.LoginMaxFailures,
		Lockout:     appCfg.LoginLockout,
		Window:      appCfg.LoginFailureWindow,
	}
	if deps.Redis != nil {
		return lockout.NewRedis(deps.Redis, p, "")
	}
	return lockout.NewMemory(p, nil)
}

func backendName(appCfg AppConfig) string {
	if appCfg.StoreBackend == BackendPostgres {
		return BackendPostgres
	}
	return BackendMongo
}

func lockoutName(deps DBDeps) string {
	if deps.Redis != nil {
		return LockoutRedis
	}
	return LockoutMemory
}
