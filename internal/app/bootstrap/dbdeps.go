// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/dalemusser/divehub/internal/app/pinauth"
	"github.com/dalemusser/divehub/internal/app/store/audit"
	"github.com/dalemusser/divehub/internal/app/system/auditlog"
	"github.com/dalemusser/divehub/internal/app/system/auth"
	"github.com/dalemusser/divehub/internal/app/system/metrics"
	"github.com/dalemusser/divehub/internal/app/system/ratelimit"
	"github.com/dalemusser/divehub/internal/app/system/workers"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// AccountStore is the account store contract plus the startup status
// migration. Both backends satisfy it.
type AccountStore interface {
	pinauth.AccountStore
	NormalizeLegacyStatuses(ctx context.Context) (int64, error)
}

// AuditStore persists and queries audit events.
type AuditStore interface {
	Log(ctx context.Context, e audit.Event) error
	Query(ctx context.Context, f audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, f audit.QueryFilter) (int64, error)
}

// DBDeps holds database/back-end dependencies for the app. Exactly one of
// the Mongo pair and SQL is set, matching store_backend.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	SQL           *sql.DB
	Redis         *redis.Client

	Accounts AccountStore
	Requests pinauth.RequestLog
	Audit    AuditStore

	// Runtime is filled in by Startup. It is a pointer so the value copies
	// WAFFLE hands to later hooks share it.
	Runtime *Runtime
}

// Runtime is everything built on top of the backends.
type Runtime struct {
	Service  *pinauth.Service
	Metrics  *metrics.Metrics
	AuditLog *auditlog.Logger
	Sessions *auth.SessionManager
	CSRF     func(http.Handler) http.Handler // guards cookie-authenticated routes
	Intake   *ratelimit.Limiter
	Login    *ratelimit.Limiter
	Sweeper  *workers.Sweeper
}
