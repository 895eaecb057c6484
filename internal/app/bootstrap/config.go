// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/divehub/internal/app/pinauth"
	"github.com/dalemusser/divehub/internal/app/system/auditlog"
	"github.com/dalemusser/divehub/internal/app/system/lockout"
	"github.com/dalemusser/divehub/internal/app/system/pingen"
	"github.com/dalemusser/divehub/internal/app/system/pinhash"
	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const (
	devSessionKey  = "dev-only-change-me-please-0123456789ABCDEF"
	devPinIndexKey = "dev-only-pin-index-key-0123456789ABCDEF"
	devCSRFKey     = "dev-only-csrf-key-0123456789ABCDEFGHIJ"
	minSecretLen   = 32
)

// appConfigKeys defines the configuration keys for DiveHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: DIVEHUB_MONGO_URI, DIVEHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: BackendMongo, Desc: "Account store: 'mongo' or 'postgres'"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "divehub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "postgres_dsn", Default: "", Desc: "PostgreSQL DSN (required when store_backend=postgres)"},
	{Name: "postgres_max_open", Default: 20, Desc: "PostgreSQL max open connections"},

	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "divehub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "12h", Desc: "Session lifetime"},
	{Name: "csrf_key", Default: devCSRFKey, Desc: "CSRF token signing key (32+ chars in production)"},
	{Name: "trust_proxy", Default: false, Desc: "Take the client IP from X-Forwarded-For/X-Real-IP (only behind a trusted reverse proxy)"},

	// PIN credentials
	{Name: "pin_index_key", Default: devPinIndexKey, Desc: "HMAC key for the PIN lookup index (32+ chars; never rotate without reissuing PINs)"},
	{Name: "pin_hash_iterations", Default: 210000, Desc: "PBKDF2-SHA256 iterations for PIN hashes (minimum 100000)"},
	{Name: "pin_generate_attempts", Default: pingen.DefaultAttempts, Desc: "Uniqueness checks per generated PIN"},
	{Name: "legacy_scan_limit", Default: pinauth.DefaultLegacyScanLimit, Desc: "Max legacy credentials scanned per login miss"},

	// Access requests
	{Name: "request_cooldown", Default: "24h", Desc: "Minimum time between access requests from one email"},
	{Name: "intake_rate_per_minute", Default: 10, Desc: "Access requests accepted per client IP per minute"},

	// Lockout
	{Name: "login_max_failures", Default: lockout.DefaultMaxFailures, Desc: "Failed PIN attempts before lockout"},
	{Name: "login_lockout", Default: "5m", Desc: "Lockout duration"},
	{Name: "login_failure_window", Default: "1h", Desc: "How long an unlocked failure streak is remembered"},
	{Name: "login_rate_per_minute", Default: 30, Desc: "PIN login attempts per client IP per minute"},
	{Name: "lockout_backend", Default: LockoutMemory, Desc: "Lockout counters: 'memory' (single instance) or 'redis' (shared)"},
	{Name: "redis_addr", Default: "", Desc: "Redis address host:port (required when lockout_backend=redis)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "sweep_interval", Default: "1m", Desc: "How often idle lockout and throttle entries are pruned"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: auditlog.All, Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: auditlog.All, Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-row store calls"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for list queries and PIN issuance"},
	{Name: "timeout_long", Default: "60s", Desc: "Timeout for schema setup and migrations"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config.yaml/json/toml
// files, environment variables (WAFFLE_* for core, DIVEHUB_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "DIVEHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend:     strings.ToLower(strings.TrimSpace(appValues.String("store_backend"))),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		PostgresDSN:      appValues.String("postgres_dsn"),
		PostgresMaxOpen:  appValues.Int("postgres_max_open"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 12*time.Hour),
		TrustProxy:    appValues.Bool("trust_proxy"),
		CSRFKey:       appValues.String("csrf_key"),

		PinIndexKey:         appValues.String("pin_index_key"),
		PinHashIterations:   appValues.Int("pin_hash_iterations"),
		PinGenerateAttempts: appValues.Int("pin_generate_attempts"),
		LegacyScanLimit:     int64(appValues.Int("legacy_scan_limit")),

		RequestCooldown:     appValues.Duration("request_cooldown", pinauth.DefaultRequestCooldown),
		IntakeRatePerMinute: appValues.Int("intake_rate_per_minute"),

		LoginMaxFailures:   appValues.Int("login_max_failures"),
		LoginLockout:       appValues.Duration("login_lockout", lockout.DefaultLockout),
		LoginFailureWindow: appValues.Duration("login_failure_window", lockout.DefaultWindow),
		LoginRatePerMinute: appValues.Int("login_rate_per_minute"),
		LockoutBackend:     strings.ToLower(strings.TrimSpace(appValues.String("lockout_backend"))),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),
		SweepInterval: appValues.Duration("sweep_interval", time.Minute),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		TimeoutShort:  appValues.Duration("timeout_short", timeouts.DefaultShort),
		TimeoutMedium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
		TimeoutLong:   appValues.Duration("timeout_long", timeouts.DefaultLong),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Every problem found is reported, not just the first.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error

	switch appCfg.StoreBackend {
	case BackendMongo, "":
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
		}
		if appCfg.MongoDatabase == "" {
			errs = append(errs, errors.New("mongo_database is required"))
		}
	case BackendPostgres:
		if appCfg.PostgresDSN == "" {
			errs = append(errs, errors.New("store_backend=postgres requires postgres_dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store_backend %q (want mongo or postgres)", appCfg.StoreBackend))
	}

	switch appCfg.LockoutBackend {
	case LockoutMemory, "":
	case LockoutRedis:
		if appCfg.RedisAddr == "" {
			errs = append(errs, errors.New("lockout_backend=redis requires redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lockout_backend %q (want memory or redis)", appCfg.LockoutBackend))
	}

	if appCfg.PinHashIterations < pinhash.MinIterations {
		errs = append(errs, fmt.Errorf("pin_hash_iterations must be at least %d", pinhash.MinIterations))
	}
	if appCfg.LoginMaxFailures < 1 {
		errs = append(errs, errors.New("login_max_failures must be at least 1"))
	}

	for _, v := range []struct{ key, val string }{
		{"audit_log_auth", appCfg.AuditLogAuth},
		{"audit_log_admin", appCfg.AuditLogAdmin},
	} {
		switch v.val {
		case "", auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			errs = append(errs, fmt.Errorf("%s: unknown destination %q", v.key, v.val))
		}
	}

	if coreCfg != nil && coreCfg.Env == "prod" {
		errs = append(errs, secretErrs("session_key", appCfg.SessionKey, devSessionKey)...)
		errs = append(errs, secretErrs("pin_index_key", appCfg.PinIndexKey, devPinIndexKey)...)
		errs = append(errs, secretErrs("csrf_key", appCfg.CSRFKey, devCSRFKey)...)
	}

	return errors.Join(errs...)
}

func secretErrs(key, val, devDefault string) []error {
	switch {
	case val == "" || val == devDefault:
		return []error{fmt.Errorf("%s must be set in production", key)}
	case len(val) < minSecretLen:
		return []error{fmt.Errorf("%s must be at least %d characters", key, minSecretLen)}
	}
	return nil
}
