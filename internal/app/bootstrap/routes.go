// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	accessrequestfeature "github.com/dalemusser/divehub/internal/app/features/accessrequest"
	auditlogfeature "github.com/dalemusser/divehub/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/divehub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/divehub/internal/app/features/health"
	loginfeature "github.com/dalemusser/divehub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/divehub/internal/app/features/logout"
	membersfeature "github.com/dalemusser/divehub/internal/app/features/members"
	userinfofeature "github.com/dalemusser/divehub/internal/app/features/userinfo"
	"github.com/dalemusser/divehub/internal/app/system/auditlog"
	"github.com/dalemusser/divehub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. Everything the routes need was built by Startup
// and lives on deps.Runtime.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := deps.Runtime
	if rt == nil || rt.Service == nil || rt.Sessions == nil || rt.CSRF == nil {
		return nil, errors.New("build handler: runtime not initialized")
	}

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()
	if appCfg.TrustProxy {
		// RemoteAddr keys lockout and throttling; RealIP rewrites it from
		// the forwarding headers.
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(rt.Metrics.Instrument)
	r.Use(clientContext)

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(rt.Sessions.LoadSessionUser)

	// Ops
	healthHandler := healthfeature.NewHandler(healthChecks(deps), logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", rt.Metrics.Handler())

	// Public, throttled per client IP
	intakeHandler := accessrequestfeature.NewHandler(rt.Service, errLog, logger)
	r.Mount("/access-requests", accessrequestfeature.Routes(intakeHandler, rt.Intake.Middleware))

	loginHandler := loginfeature.NewHandler(rt.Service, rt.Sessions, errLog, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler, rt.Login.Middleware))

	// Cookie-authenticated routes carry a CSRF token.
	logoutHandler := logoutfeature.NewHandler(rt.Sessions, rt.AuditLog, logger)
	membersHandler := membersfeature.NewHandler(rt.Service, errLog, logger)
	auditHandler := auditlogfeature.NewHandler(deps.Audit, errLog, logger)

	r.Group(func(cr chi.Router) {
		cr.Use(rt.CSRF)

		cr.Mount("/logout", logoutfeature.Routes(logoutHandler))
		cr.Mount("/api/me", userinfofeature.Routes(userinfofeature.NewHandler()))

		// Administration
		cr.Mount("/admin/accounts", membersfeature.Routes(membersHandler, rt.Sessions))
		cr.Mount("/admin/audit", auditlogfeature.Routes(auditHandler, rt.Sessions))
	})

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	return r, nil
}

// clientContext records the caller's address and user agent for audit
// events written further down the stack.
func clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auditlog.WithClient(r.Context(), ratelimit.ClientIP(r), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func healthChecks(deps DBDeps) map[string]healthfeature.Check {
	checks := make(map[string]healthfeature.Check, 2)
	switch {
	case deps.SQL != nil:
		checks["database"] = healthfeature.SQLCheck(deps.SQL)
	case deps.MongoClient != nil:
		checks["database"] = healthfeature.MongoCheck(deps.MongoClient)
	}
	if deps.Redis != nil {
		checks["redis"] = healthfeature.RedisCheck(deps.Redis)
	}
	return checks
}
