package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tm65023/Story/internal/telemetry/domain"
)

type chanProducer struct {
	events chan *domain.Event
}

func (p *chanProducer) Emit(ctx context.Context, event *domain.Event) error {
	p.events <- event
	return nil
}

func (p *chanProducer) Close() error { return nil }

func TestRequestTelemetry_EmitsEvent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := &chanProducer{events: make(chan *domain.Event, 1)}
	r := gin.New()
	r.Use(ClientIP(), RequestTelemetry(p, map[string]bool{"/healthz": true}, slog.Default()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/auth/login", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	select {
	case ev := <-p.events:
		if ev.Type != domain.EventHTTPRequest {
			t.Errorf("type = %q, want %q", ev.Type, domain.EventHTTPRequest)
		}
		if ev.Attrs["route"] != "/api/auth/login" {
			t.Errorf("route = %q, want /api/auth/login", ev.Attrs["route"])
		}
		if ev.Attrs["status_code"] != "404" {
			t.Errorf("status_code = %q, want 404", ev.Attrs["status_code"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case ev := <-p.events:
		t.Errorf("unexpected second event for route %q", ev.Attrs["route"])
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestTelemetry_NilProducer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestTelemetry(nil, nil, slog.Default()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestTracing_RecordsServerSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	r := gin.New()
	r.Use(Tracing(tp.Tracer("test")))
	r.GET("/api/auth/me", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "GET /api/auth/me" {
		t.Errorf("span name = %q, want %q", got, "GET /api/auth/me")
	}
	if got := spans[0].Status().Code.String(); got != "Error" {
		t.Errorf("span status = %q, want Error", got)
	}
}

func TestRequestLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := gin.New()
	r.Use(RequestLog(logger))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	out := buf.String()
	if !strings.Contains(out, "path=/x") || !strings.Contains(out, "status=200") {
		t.Errorf("log line missing fields: %s", out)
	}
}
