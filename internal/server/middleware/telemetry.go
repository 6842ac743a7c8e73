package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tm65023/Story/internal/telemetry"
	"github.com/tm65023/Story/internal/telemetry/domain"
	"github.com/tm65023/Story/internal/telemetry/producer"
)

// Tracing starts a server span per request named after the matched route.
func Tracing(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
	}
}

// RequestLog logs one line per request with method, route, status and latency.
func RequestLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ClientIPFromContext(c.Request.Context()),
		)
	}
}

// RequestTelemetry emits an http.request event after each request.
// Best-effort: failures are logged and do not affect the response. A nil producer disables it.
// skipPaths holds route patterns not to emit (e.g. /healthz).
func RequestTelemetry(p producer.Producer, skipPaths map[string]bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if p == nil || skipPaths[route] {
			return
		}
		ctx := c.Request.Context()
		userID, _ := GetUserID(ctx)
		sessionID, _ := GetSessionID(ctx)
		event := &domain.Event{
			Type:      domain.EventHTTPRequest,
			Source:    "http_middleware",
			UserID:    userID,
			SessionID: sessionID,
			Attrs: map[string]string{
				"method":      c.Request.Method,
				"route":       route,
				"status_code": strconv.Itoa(c.Writer.Status()),
				"duration_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
				"client_ip":   ClientIPFromContext(ctx),
			},
			CreatedAt: time.Now().UTC(),
		}
		telemetry.EmitAsyncLogged(logger, p, event)
	}
}
