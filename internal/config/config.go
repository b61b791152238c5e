// Package config defines the global configuration for the jobboard payments
// backend. Configuration is loaded once at process start and is immutable
// thereafter, following 12-Factor principles: values come from the OS
// environment, with a .env file as a development convenience.
//
// Any missing required value or invalid format fails the process immediately
// on startup (fail fast).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"jobboard/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// EnvProduction is the APP_ENV value under which signature verification is
// strict: a configured secret plus an invalid signature rejects the request.
const EnvProduction = "prod"

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"jobboard-payments"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Queue    QueueConfig
	Webhook  WebhookConfig
}

// IsProduction reports whether strict production semantics apply.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// ServerConfig holds HTTP server tuning parameters.
type ServerConfig struct {
	Port              string        `envconfig:"PORT" default:"8080"`
	ReadHeaderTimeout time.Duration `envconfig:"SERVER_READ_HEADER_TIMEOUT" default:"10s"`
	ReadTimeout       time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout      time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// RedisConfig holds the connection settings for the shared cache backing the
// idempotency lock.
type RedisConfig struct {
	Addr     string       `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password SecretString `envconfig:"REDIS_PASSWORD"`
	DB       int          `envconfig:"REDIS_DB" default:"0"`
}

// GatewayConfig holds payment gateway credentials and client tuning.
type GatewayConfig struct {
	BaseURL     string       `envconfig:"GATEWAY_BASE_URL" default:"https://api.mercadopago.com" validate:"required,url"`
	AccessToken SecretString `envconfig:"GATEWAY_ACCESS_TOKEN" validate:"required"`
	Timeout     time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
}

// QueueConfig holds the SQS destination for outbound notification messages.
// The queue is consumed by the notification worker, which owns the actual
// email/SMS transport.
type QueueConfig struct {
	NotificationQueueURL string `envconfig:"SQS_NOTIFICATIONS" validate:"required,url"`
	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// WebhookConfig holds webhook ingestion settings.
type WebhookConfig struct {
	// Secret is the HMAC key shared with the gateway. Empty means permissive
	// verification (non-production environments only see test traffic).
	Secret SecretString `envconfig:"WEBHOOK_SECRET"`
	// LockTTL bounds how long a notification id stays locked. Must exceed
	// worst-case reconciliation latency.
	LockTTL time.Duration `envconfig:"WEBHOOK_LOCK_TTL" default:"30s"`
}

// Load loads and validates the configuration.
//
// It loads a .env file if present (non-fatal if missing, never overriding
// already-set variables), processes envconfig tags, and validates the result
// with go-playground/validator.
func Load() (*Config, error) {
	// Enforce UTC to prevent timestamp drift between history rows and audits.
	time.Local = time.UTC

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
