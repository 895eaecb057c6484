package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/divehub/internal/app/store/accessrequests"
	"github.com/dalemusser/divehub/internal/app/store/accounts"
	"github.com/dalemusser/divehub/internal/app/store/audit"
	"github.com/dalemusser/divehub/internal/domain/models"
	"github.com/dalemusser/divehub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		StoreBackend:        BackendMongo,
		MongoURI:            "mongodb://localhost:27017",
		MongoDatabase:       "divehub_test",
		SessionKey:          strings.Repeat("s", 40),
		SessionMaxAge:       time.Hour,
		PinIndexKey:         strings.Repeat("k", 40),
		CSRFKey:             strings.Repeat("c", 40),
		PinHashIterations:   100000,
		PinGenerateAttempts: 20,
		LoginMaxFailures:    5,
		LoginLockout:        5 * time.Minute,
		LoginFailureWindow:  time.Hour,
		IntakeRatePerMinute: 10,
		LoginRatePerMinute:  30,
		LockoutBackend:      LockoutMemory,
		SweepInterval:       time.Minute,
		AuditLogAuth:        "all",
		AuditLogAdmin:       "all",
	}
}

func TestValidateConfig(t *testing.T) {
	dev := &config.CoreConfig{Env: "dev"}
	prod := &config.CoreConfig{Env: "prod"}

	tests := []struct {
		name    string
		core    *config.CoreConfig
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", dev, func(*AppConfig) {}, ""},
		{"valid prod", prod, func(*AppConfig) {}, ""},
		{"bad mongo uri", dev, func(c *AppConfig) { c.MongoURI = "" }, "MongoDB URI"},
		{"postgres without dsn", dev, func(c *AppConfig) { c.StoreBackend = BackendPostgres }, "postgres_dsn"},
		{"postgres with dsn", dev, func(c *AppConfig) {
			c.StoreBackend = BackendPostgres
			c.PostgresDSN = "postgres://localhost/divehub"
		}, ""},
		{"unknown backend", dev, func(c *AppConfig) { c.StoreBackend = "sqlite" }, "store_backend"},
		{"redis without addr", dev, func(c *AppConfig) { c.LockoutBackend = LockoutRedis }, "redis_addr"},
		{"weak iterations", dev, func(c *AppConfig) { c.PinHashIterations = 1000 }, "pin_hash_iterations"},
		{"zero failures", dev, func(c *AppConfig) { c.LoginMaxFailures = 0 }, "login_max_failures"},
		{"bad audit destination", dev, func(c *AppConfig) { c.AuditLogAdmin = "kafka" }, "audit_log_admin"},
		{"dev defaults ok in dev", dev, func(c *AppConfig) {
			c.SessionKey = devSessionKey
			c.PinIndexKey = devPinIndexKey
		}, ""},
		{"dev session key in prod", prod, func(c *AppConfig) { c.SessionKey = devSessionKey }, "session_key"},
		{"short pin key in prod", prod, func(c *AppConfig) { c.PinIndexKey = "short" }, "pin_index_key"},
		{"dev csrf key in prod", prod, func(c *AppConfig) { c.CSRFKey = devCSRFKey }, "csrf_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(tt.core, cfg, testLogger())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfig_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.PinHashIterations = 1
	cfg.LoginMaxFailures = 0
	err := ValidateConfig(&config.CoreConfig{Env: "dev"}, cfg, testLogger())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"pin_hash_iterations", "login_max_failures"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

type stubSource struct {
	acct *models.Account
	err  error
}

func (s stubSource) CurrentAccount(context.Context, string) (*models.Account, error) {
	return s.acct, s.err
}

func TestAccountFetcher(t *testing.T) {
	ctx := context.Background()

	u, err := accountFetcher{svc: stubSource{acct: &models.Account{
		ID: "a1", FullName: "Dana Diver", Email: "dana@example.com", Role: "admin",
	}}}.FetchUser(ctx, "a1")
	if err != nil || u == nil {
		t.Fatalf("FetchUser: %v, %v", u, err)
	}
	if u.Name != "Dana Diver" || u.Email != "dana@example.com" || !u.IsAdmin() {
		t.Errorf("user = %+v", u)
	}

	u, err = accountFetcher{svc: stubSource{}}.FetchUser(ctx, "gone")
	if u != nil || err != nil {
		t.Errorf("missing account: got %v, %v", u, err)
	}

	boom := errors.New("store down")
	if _, err := (accountFetcher{svc: stubSource{err: boom}}).FetchUser(ctx, "a1"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestBuildHandler_RequiresRuntime(t *testing.T) {
	if _, err := BuildHandler(&config.CoreConfig{}, validConfig(), DBDeps{}, testLogger()); err == nil {
		t.Error("expected error without runtime")
	}
}

func TestStartupAndRoutes_Integration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{
		MongoClient:   db.Client(),
		MongoDatabase: db,
		Accounts:      accounts.New(db),
		Requests:      accessrequests.New(db),
		Audit:         audit.New(db),
		Runtime:       &Runtime{},
	}
	core := &config.CoreConfig{Env: "dev"}
	cfg := validConfig()

	if err := EnsureSchema(ctx, core, cfg, deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := Startup(ctx, core, cfg, deps, testLogger()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	t.Cleanup(deps.Runtime.Sweeper.Stop)

	h, err := BuildHandler(core, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler: %v", err)
	}

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, target, nil)
		} else {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("GET", "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
	if rec := do("POST", "/access-requests", `{"name":"Rene Reef","email":"rene@example.com","phone":"555-0100"}`); rec.Code != http.StatusCreated {
		t.Errorf("/access-requests = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do("POST", "/login/pin", `{"pin":"123456"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("/login/pin with unknown PIN = %d", rec.Code)
	}
	if rec := do("GET", "/admin/accounts", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("/admin/accounts unauthenticated = %d", rec.Code)
	}
	if rec := do("GET", "/api/me", ""); rec.Code != http.StatusOK {
		t.Errorf("/api/me = %d", rec.Code)
	}
	if rec := do("GET", "/api/me", ""); !strings.Contains(rec.Body.String(), `"csrf_token"`) {
		t.Errorf("/api/me missing csrf_token: %s", rec.Body.String())
	}

	// A cross-site form post is refused before the role check runs.
	forged := httptest.NewRequest("POST", "/admin/accounts/any/revoke", strings.NewReader("reason=x"))
	forged.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	forged.Header.Set("Origin", "https://attacker.example")
	forgedRec := httptest.NewRecorder()
	h.ServeHTTP(forgedRec, forged)
	if forgedRec.Code != http.StatusForbidden {
		t.Errorf("cross-site revoke = %d, want 403", forgedRec.Code)
	}

	// Rotating X-Forwarded-For from one peer keeps hitting the same lockout
	// counter. One failure was recorded above.
	var last int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest("POST", "/login/pin", strings.NewReader(`{"pin":"654321"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("after rotating X-Forwarded-For, login = %d, want 429", last)
	}

	rec := do("GET", "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "divehub_") {
		t.Errorf("/metrics = %d", rec.Code)
	}

	acct, err := deps.Accounts.GetByEmail(ctx, "rene@example.com")
	if err != nil {
		t.Fatalf("intake did not create account: %v", err)
	}
	if acct.Status != "pending" {
		t.Errorf("status = %q", acct.Status)
	}
}
