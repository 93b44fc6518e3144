// Package config defines the global configuration structure for the HydraChat
// backend. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"hydrachat/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the HydraChat backend.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require
// (Least Privilege principle).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"hydrachat-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server     ServerConfig
	Database   DatabaseConfig
	Completion CompletionConfig
	Billing    BillingConfig
	Auth       AuthConfig
	Security   SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public URL of the web app, used for Stripe redirect targets (no trailing slash).
	AppURL string `envconfig:"APP_URL" validate:"required,url"` // e.g., https://hydrachat.app
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
}

// CompletionConfig holds the OpenRouter completion provider credentials and
// request parameters.
type CompletionConfig struct {
	APIKey  SecretString  `envconfig:"OPENROUTER_API_KEY" validate:"required"`
	Model   string        `envconfig:"COMPLETION_MODEL" default:"deepseek/deepseek-r1"`
	BaseURL string        `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai"`
	Timeout time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"60s"`
}

// BillingConfig holds Stripe payment integration credentials and price
// identifiers for the paid tiers.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	PlusPriceID         string       `envconfig:"STRIPE_PLUS_PRICE_ID" validate:"required"`
	ProPlusPriceID      string       `envconfig:"STRIPE_PRO_PLUS_PRICE_ID" validate:"required"`
}

// AuthConfig holds session management settings.
type AuthConfig struct {
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"720h"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
