// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
// A .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// DefaultLockReason is shown in the lock form until the operator edits it.
const DefaultLockReason = "Please contact help@cargoyard.dev to unlock your account."

// Common holds settings shared by every binary.
type Common struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Tracing is disabled when the endpoint is empty.
	OTelEndpoint    string `env:"OTEL_EXPORTER_ENDPOINT" envDefault:""`
	OTelInsecure    bool   `env:"OTEL_EXPORTER_INSECURE" envDefault:"true"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:""`

	RedisPoolSize int `env:"REDIS_POOL_SIZE" envDefault:"10"`
}

// IsDevelopment returns true if running in development mode.
func (c *Common) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Common) IsProduction() bool {
	return c.AppEnv == "production"
}

// Config holds the registry API configuration.
type Config struct {
	Common

	AppPort int `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	MigrateOnBoot bool   `env:"MIGRATE_ON_BOOT" envDefault:"true"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns    int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Sessions
	SessionSecret   string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SessionCacheTTL time.Duration `env:"SESSION_CACHE_TTL" envDefault:"1m"`

	// Rate limiting of authenticated API calls
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIRPM     int  `env:"RATE_LIMIT_API_RPM" envDefault:"600"`
	RateLimitAPIBurst   int  `env:"RATE_LIMIT_API_BURST" envDefault:"60"`

	// Rate limiting of anonymous calls, per client IP
	RateLimitPublicEnabled bool `env:"RATE_LIMIT_PUBLIC_ENABLED" envDefault:"true"`
	RateLimitPublicRPS     int  `env:"RATE_LIMIT_PUBLIC_RPS" envDefault:"20"`
	RateLimitPublicBurst   int  `env:"RATE_LIMIT_PUBLIC_BURST" envDefault:"40"`

	// Comma-separated list of allowed origins (e.g., "https://example.com,https://admin.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Moderation audit worker
	AuditWorkerEnabled bool `env:"AUDIT_WORKER_ENABLED" envDefault:"true"`
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// ConsoleConfig holds the admin console configuration.
type ConsoleConfig struct {
	Common

	AppPort int `env:"CONSOLE_PORT" envDefault:"8081"`

	// Base URL of the registry API, without the /api/v1 suffix.
	RegistryURL     string        `env:"REGISTRY_URL" envDefault:"http://localhost:8080"`
	RegistryTimeout time.Duration `env:"REGISTRY_TIMEOUT" envDefault:"10s"`

	// Flash notifications and saved transitions
	RedisURL string        `env:"REDIS_URL,required,notEmpty"`
	StateTTL time.Duration `env:"CONSOLE_STATE_TTL" envDefault:"1h"`

	LockReason string `env:"CONSOLE_LOCK_REASON" envDefault:"Please contact help@cargoyard.dev to unlock your account."`
	LockDays   string `env:"CONSOLE_LOCK_DAYS" envDefault:"7"`
}

// Load parses environment variables and returns the API Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := parse(cfg); err != nil {
		return nil, err
	}
	if cfg.OTelServiceName == "" {
		cfg.OTelServiceName = "cargoyard-api"
	}
	return cfg, nil
}

// LoadConsole parses environment variables and returns the ConsoleConfig.
func LoadConsole() (*ConsoleConfig, error) {
	cfg := &ConsoleConfig{}
	if err := parse(cfg); err != nil {
		return nil, err
	}
	if cfg.OTelServiceName == "" {
		cfg.OTelServiceName = "cargoyard-console"
	}
	cfg.RegistryURL = strings.TrimRight(cfg.RegistryURL, "/")
	return cfg, nil
}

func parse(cfg any) error {
	if err := loadDotEnv(); err != nil {
		return err
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// loadDotEnv never overrides variables already set in the process.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load .env: %w", err)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
