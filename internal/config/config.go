// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session backends accepted by SESSION_BACKEND.
const (
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

// EnvProduction is the APP_ENV value that enables the strict startup checks.
const EnvProduction = "production"

// minSessionSecretLen is the minimum SESSION_SECRET length accepted in production.
const minSessionSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :5000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MigrateOnStart applies pending migrations before the server starts listening.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`
	// RedisURL is the Redis URL (redis://host:6379/0) for the redis session backend.
	RedisURL string `mapstructure:"REDIS_URL"`
	// SessionBackend is "redis" or "postgres". Empty picks redis when REDIS_URL is set, postgres otherwise.
	SessionBackend string `mapstructure:"SESSION_BACKEND"`
	// SessionSecret signs the session cookie token. Required in production.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// SessionTTLRaw is the absolute session lifetime (e.g. "24h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName string `mapstructure:"SESSION_COOKIE_NAME"`
	// OTPTTLRaw is the one-time code validity window (e.g. "10m").
	OTPTTLRaw string `mapstructure:"OTP_TTL"`

	// SMTP relay for OTP delivery. All four of host, port, user and pass are required in production.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPass     string `mapstructure:"SMTP_PASS"`
	SMTPFromName string `mapstructure:"SMTP_FROM_NAME"`

	// OTPReturnToClient when true enables dev OTP mode: codes are kept in memory and served by GET /api/dev/otp.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables the auth event stream.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for auth events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// SweepIntervalRaw is how often the worker deletes expired codes and sessions (e.g. "15m").
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_BACKEND", "")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_COOKIE_NAME", "story_session")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM_NAME", "Story")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "story-auth")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "story-auth-events")
	v.SetDefault("SWEEP_INTERVAL", "15m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.SessionBackend {
	case "":
		cfg.SessionBackend = SessionBackendPostgres
		if cfg.RedisURL != "" {
			cfg.SessionBackend = SessionBackendRedis
		}
	case SessionBackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when SESSION_BACKEND=redis")
		}
	case SessionBackendPostgres:
	default:
		return nil, errors.New("config: SESSION_BACKEND must be redis or postgres")
	}

	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, errors.New("config: SMTP_PORT must be between 1 and 65535")
	}

	if cfg.IsProduction() {
		if cfg.OTPReturnToClient {
			return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
		}
		if !cfg.SMTPConfigured() {
			return nil, errors.New("config: SMTP_HOST, SMTP_PORT, SMTP_USER and SMTP_PASS must be set when APP_ENV=production")
		}
		if len(cfg.SessionSecret) < minSessionSecretLen {
			return nil, errors.New("config: SESSION_SECRET must be at least 32 characters when APP_ENV=production")
		}
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

// IsLocal reports whether the process runs in a local development context (empty, development or local APP_ENV).
// Session cookies drop the Secure flag only in this case.
func (c *Config) IsLocal() bool {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "development", "dev", "local":
		return true
	}
	return false
}

// SMTPConfigured reports whether every SMTP relay setting needed for authenticated delivery is present.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort > 0 && c.SMTPUser != "" && c.SMTPPass != ""
}

// SessionTTL parses SessionTTLRaw as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTLRaw)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// OTPTTL parses OTPTTLRaw as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) OTPTTL() time.Duration {
	d, err := time.ParseDuration(c.OTPTTLRaw)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// SweepInterval parses SweepIntervalRaw. Returns 15m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.SweepIntervalRaw)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the auth event stream is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
