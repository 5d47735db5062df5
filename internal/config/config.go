// Package config loads runtime configuration for the API server, the worker
// and the planner CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds server and worker configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	OIDCProvider     string
	OIDCAudience     string
	RedisURL         string
	ScheduleCacheTTL time.Duration
	DefaultRateLimit string
	RabbitMQURL      string
	RabbitMQPrefetch int
	RevisionKeep     int
	RevisionMaxAge   time.Duration
	DLQRetention     time.Duration
	SweepInterval    time.Duration
	ReloadInterval   time.Duration
	OpenAPIPath      string
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads configuration from environment variables. Redis and RabbitMQ are
// optional for the API server; leaving their URLs empty disables caching,
// distributed rate limiting and revision archiving.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		OIDCProvider:     getEnv("OIDC_PROVIDER", "cognito"),
		OIDCAudience:     getEnv("OIDC_AUDIENCE", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		ScheduleCacheTTL: getEnvDuration("SCHEDULE_CACHE_TTL", 10*time.Minute),
		DefaultRateLimit: getEnv("DEFAULT_RATE_LIMIT", "5-S"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		RevisionKeep:     getEnvInt("REVISION_KEEP", 20),
		RevisionMaxAge:   getEnvDuration("REVISION_MAX_AGE", 0),
		DLQRetention:     getEnvDuration("DLQ_RETENTION", 7*24*time.Hour),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", time.Hour),
		ReloadInterval:   getEnvDuration("CONFIG_RELOAD_INTERVAL", time.Minute),
		OpenAPIPath:      getEnv("OPENAPI_PATH", "api/openapi/openapi.yaml"),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RevisionKeep < 1 {
		return nil, fmt.Errorf("REVISION_KEEP must be at least 1, got %d", cfg.RevisionKeep)
	}
	if cfg.RevisionMaxAge < 0 {
		return nil, fmt.Errorf("REVISION_MAX_AGE must not be negative, got %v", cfg.RevisionMaxAge)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.RabbitMQPrefetch < 1 {
		cfg.RabbitMQPrefetch = 1
	}

	return cfg, nil
}

// RequireQueue reports an error when no RabbitMQ URL is configured
func (c *Config) RequireQueue() error {
	if c.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required for the revision worker")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
