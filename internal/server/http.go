// Package server assembles the gin router: middleware chain and route registration.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	authhandler "github.com/tm65023/Story/internal/auth/handler"
	"github.com/tm65023/Story/internal/devotp"
	devotphandler "github.com/tm65023/Story/internal/devotp/handler"
	healthhandler "github.com/tm65023/Story/internal/health/handler"
	"github.com/tm65023/Story/internal/server/middleware"
	"github.com/tm65023/Story/internal/telemetry/producer"
)

// Deps holds the dependencies for the HTTP routes.
type Deps struct {
	// Auth is the auth engine behind /api/auth.
	Auth authhandler.Service
	// Sessions resolves the session cookie for protected routes.
	Sessions middleware.SessionResolver
	// Cookie configures the session cookie.
	Cookie authhandler.CookieConfig
	// ExposeErrors adds raw error detail to 5xx bodies. Never set in production.
	ExposeErrors bool
	// HealthPinger is used by /readyz (e.g. *sql.DB). If nil, the database is not checked.
	HealthPinger healthhandler.Pinger
	// HealthSessions is used by /readyz to check the session store. If nil, it is not checked.
	HealthSessions healthhandler.SessionChecker
	// DevOTPStore serves GET /api/dev/otp. If nil, the route is not registered. Set only when dev OTP is enabled and not production.
	DevOTPStore devotp.Store
	// Tracer starts a span per request. If nil, requests are not traced.
	Tracer trace.Tracer
	// Producer receives one http.request event per request. If nil, no events are emitted.
	Producer producer.Producer
	// Logger is the request and error logger.
	Logger *slog.Logger
}

// skipTelemetry lists routes that do not emit request events.
var skipTelemetry = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// NewRouter returns a gin engine with all routes registered.
//
// Route → handler mapping:
//   - /api/auth/*   → internal/auth/handler
//   - /api/dev/otp  → internal/devotp/handler (dev only)
//   - /healthz, /readyz → internal/health/handler
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic in handler", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}))
	r.Use(middleware.ClientIP())
	if deps.Tracer != nil {
		r.Use(middleware.Tracing(deps.Tracer))
	}
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.RequestTelemetry(deps.Producer, skipTelemetry, logger))

	healthhandler.NewHandler(deps.HealthPinger, deps.HealthSessions).Register(r)

	requireAuth := middleware.RequireAuth(deps.Sessions, deps.Cookie.Name, logger)
	authhandler.NewHandler(deps.Auth, deps.Cookie, deps.ExposeErrors, logger).Register(r, requireAuth)

	if deps.DevOTPStore != nil {
		devotphandler.NewHandler(deps.DevOTPStore).Register(r)
	}
	return r
}
