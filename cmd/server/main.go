// server runs the Story auth HTTP API. Configuration comes from the environment and an optional .env file.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tm65023/Story/internal/audit"
	auditrepo "github.com/tm65023/Story/internal/audit/repository"
	authhandler "github.com/tm65023/Story/internal/auth/handler"
	"github.com/tm65023/Story/internal/auth/service"
	"github.com/tm65023/Story/internal/auth/store"
	"github.com/tm65023/Story/internal/config"
	"github.com/tm65023/Story/internal/db"
	"github.com/tm65023/Story/internal/db/migrate"
	"github.com/tm65023/Story/internal/devotp"
	"github.com/tm65023/Story/internal/logging"
	"github.com/tm65023/Story/internal/notify"
	"github.com/tm65023/Story/internal/security"
	"github.com/tm65023/Story/internal/server"
	"github.com/tm65023/Story/internal/server/middleware"
	"github.com/tm65023/Story/internal/session"
	"github.com/tm65023/Story/internal/session/redisstore"
	sessionrepo "github.com/tm65023/Story/internal/session/repository"
	"github.com/tm65023/Story/internal/telemetry"
	storyotel "github.com/tm65023/Story/internal/telemetry/otel"
	"github.com/tm65023/Story/internal/telemetry/producer"
)

const (
	tokenIssuer   = "story"
	tokenAudience = "story-web"

	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.MigrateOnStart {
		if err := migrate.Run(cfg.DatabaseURL, migrate.DirectionUp); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ctx := context.Background()
	providers, err := storyotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	metrics, err := storyotel.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}
	emitter := telemetry.MultiEmitter{storyotel.NewEventEmitter(providers.LoggerProvider)}
	var requestProducer producer.Producer
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	if kafkaProducer != nil {
		emitter = append(emitter, kafkaProducer)
		requestProducer = kafkaProducer
		defer kafkaProducer.Close()
		logger.Info("auth event stream enabled", "topic", cfg.TelemetryKafkaTopic)
	}

	sessionStore, closeSessions, err := newSessionStore(cfg, sqlDB)
	if err != nil {
		return err
	}
	defer closeSessions()

	secret, err := sessionSecret(cfg, logger)
	if err != nil {
		return err
	}
	signer, err := security.NewTokenSigner(secret, tokenIssuer, tokenAudience)
	if err != nil {
		return fmt.Errorf("session signer: %w", err)
	}
	binder := session.NewBinder(sessionStore, signer, cfg.SessionTTL())

	var devStore devotp.Store
	if cfg.OTPReturnToClient && !cfg.IsProduction() {
		devStore = devotp.NewMemoryStore()
		logger.Warn("dev OTP mode enabled: codes are served by GET /api/dev/otp")
	}
	notifier, err := newNotifier(cfg, logger, devStore)
	if err != nil {
		return err
	}

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(sqlDB), middleware.ClientIPFromContext, logger)
	authSvc := service.NewAuthService(
		store.NewPostgresStore(sqlDB),
		binder,
		notifier,
		cfg.OTPTTL(),
		auditLogger,
		emitter,
		metrics,
		logger,
	)

	router := server.NewRouter(server.Deps{
		Auth:     authSvc,
		Sessions: binder,
		Cookie: authhandler.CookieConfig{
			Name:   cfg.SessionCookieName,
			TTL:    binder.TTL(),
			Secure: !cfg.IsLocal(),
		},
		ExposeErrors:   !cfg.IsProduction(),
		HealthPinger:   sqlDB,
		HealthSessions: binder,
		DevOTPStore:    devStore,
		Tracer:         providers.TracerProvider.Tracer("story.http"),
		Producer:       requestProducer,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-quit:
	}

	logger.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	defer drainCancel()
	if err := telemetry.Drain(drainCtx); err != nil {
		logger.Warn("telemetry drain incomplete", "error", err)
	}
	otelCtx, otelCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer otelCancel()
	if err := providers.Shutdown(otelCtx); err != nil {
		logger.Error("otel shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

// newSessionStore returns the configured session backend and a function releasing its resources.
func newSessionStore(cfg *config.Config, sqlDB *sql.DB) (sessionrepo.Repository, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		client, err := redisstore.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return redisstore.NewStore(client, redisstore.DefaultPrefix), func() { _ = client.Close() }, nil
	default:
		return sessionrepo.NewPostgresRepository(sqlDB), func() {}, nil
	}
}

// sessionSecret returns SESSION_SECRET, or a random per-process secret outside production.
// With a random secret every restart signs out all users.
func sessionSecret(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}
	if cfg.IsProduction() {
		return nil, errors.New("SESSION_SECRET is required in production")
	}
	logger.Warn("SESSION_SECRET not set; using a random secret, sessions will not survive a restart")
	return security.RandomSecret()
}

// newNotifier picks SMTP delivery when the relay is configured and the log sandbox otherwise.
// With dev OTP mode on, every delivered code is also recorded in devStore.
func newNotifier(cfg *config.Config, logger *slog.Logger, devStore devotp.Store) (notify.Notifier, error) {
	var n notify.Notifier
	if cfg.SMTPConfigured() {
		smtpNotifier, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Pass:     cfg.SMTPPass,
			FromName: cfg.SMTPFromName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("smtp: %w", err)
		}
		n = smtpNotifier
	} else {
		if cfg.IsProduction() {
			return nil, errors.New("SMTP relay is required in production")
		}
		logger.Warn("SMTP not configured; verification codes will be written to the log")
		n = notify.NewLogNotifier(logger)
	}
	if devStore != nil {
		n = notify.NewRecordingNotifier(n, devStore)
	}
	return n, nil
}
