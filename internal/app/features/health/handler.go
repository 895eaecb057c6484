package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/dalemusser/divehub/internal/app/system/timeouts"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Check pings one dependency.
type Check func(ctx context.Context) error

// MongoCheck pings the primary.
func MongoCheck(client *mongo.Client) Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// SQLCheck pings a database/sql pool.
func SQLCheck(db *sql.DB) Check {
	return db.PingContext
}

// RedisCheck pings a redis client.
func RedisCheck(rdb redis.UniversalClient) Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

// Handler holds the dependency checks. "database" is required; any other
// check failing degrades the response but keeps it 200.
type Handler struct {
	Checks map[string]Check
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. checks maps a dependency name to
// its ping.
func NewHandler(checks map[string]Check, logger *zap.Logger) *Handler {
	return &Handler{
		Checks: checks,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
	Message      string            `json:"message,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "dependencies":{"database":"connected"} }
//
// On database failure: 503 with status "error". A failing auxiliary
// dependency reports status "degraded" with 200.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{Status: "ok", Dependencies: make(map[string]string, len(h.Checks))}
	code := http.StatusOK

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			h.Log.Error("health-check: ping failed", zap.String("dependency", name), zap.Error(err))
			resp.Dependencies[name] = "disconnected"
			if name == "database" {
				code = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = "Database unavailable"
			} else if resp.Status == "ok" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Dependencies[name] = "connected"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
