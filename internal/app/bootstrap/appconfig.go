// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Store and lockout backends.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"

	LockoutMemory = "memory"
	LockoutRedis  = "redis"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework side: ports, TLS, log level, CORS and request limits.
type AppConfig struct {
	// Store backend: "mongo" (default) or "postgres".
	StoreBackend string

	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64

	// PostgreSQL connection configuration (only used when StoreBackend is "postgres")
	PostgresDSN     string
	PostgresMaxOpen int

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: divehub-session)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration

	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable only when every request arrives through a proxy that sets them.
	TrustProxy bool
	CSRFKey    string // Signing key for CSRF tokens on cookie-authenticated routes

	// PIN credentials
	PinIndexKey         string // HMAC key for the deterministic PIN lookup index; changing it orphans every issued PIN
	PinHashIterations   int
	PinGenerateAttempts int
	LegacyScanLimit     int64

	// Access requests
	RequestCooldown     time.Duration
	IntakeRatePerMinute int

	// PIN login lockout
	LoginMaxFailures   int
	LoginLockout       time.Duration
	LoginFailureWindow time.Duration
	LoginRatePerMinute int
	LockoutBackend     string // "memory" or "redis"

	// Redis (only used when LockoutBackend is "redis")
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// How often in-memory lockout and throttle state is pruned.
	SweepInterval time.Duration

	// Audit logging destinations: all, db, log, off
	AuditLogAuth  string
	AuditLogAdmin string

	// Store call timeouts
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
