// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Convert  ConvertConfig
	Rate     RateLimitConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request, upload included (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing the response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// ConvertConfig holds conversion settings.
type ConvertConfig struct {
	// MaxFileSize is the maximum upload size in bytes (default: 10MB)
	MaxFileSize int64 `env:"CONVERT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel conversions (default: 8)
	MaxConcurrent int `env:"CONVERT_MAX_CONCURRENT" default:"8"`

	// MaxWaitTime is how long to wait for a conversion slot (default: 10s)
	MaxWaitTime time.Duration `env:"CONVERT_MAX_WAIT_TIME" default:"10s"`

	// StrictFourField captures only digits|text|text|digits records (default: true).
	// When false, records may have any number of text fields between the
	// numeric bounds but may not span line breaks.
	StrictFourField bool `env:"CONVERT_STRICT_FOUR_FIELD" default:"true"`

	// HistorySize is the number of conversions kept in memory when no
	// database is configured (default: 500)
	HistorySize int `env:"CONVERT_HISTORY_SIZE" default:"500"`
}

// RateLimitConfig holds the per-client conversion throttle settings.
type RateLimitConfig struct {
	// Enabled controls whether the convert endpoint is throttled (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// Capacity is the number of conversions a client may burst (default: 5).
	// The 429 body keeps its fixed wording for the default 5 per 1m and
	// names the configured numbers otherwise (core.RateLimitAction).
	Capacity int `env:"RATE_LIMIT_CAPACITY" default:"5"`

	// Window is how long an empty bucket takes to refill (default: 1m)
	Window time.Duration `env:"RATE_LIMIT_WINDOW" default:"1m"`

	// IdleTTL is how long an unused bucket is kept; must be >= Window (default: 15m)
	IdleTTL time.Duration `env:"RATE_LIMIT_IDLE_TTL" default:"15m"`

	// SweepInterval is how often idle buckets are removed, 0 disables (default: 2m)
	SweepInterval time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL" default:"2m"`

	// Backend is where buckets live: memory or redis (default: memory)
	Backend string `env:"RATE_LIMIT_BACKEND" default:"memory"`

	// FailOpen admits requests when the redis backend errors (default: true)
	FailOpen bool `env:"RATE_LIMIT_FAIL_OPEN" default:"true"`
}

// RedisConfig holds Redis settings for the shared throttle and its stats.
type RedisConfig struct {
	// Addr is the host:port of the Redis server (default: localhost:6379)
	Addr string `env:"REDIS_ADDR" default:"localhost:6379"`

	// Password for AUTH, empty for none
	Password string `env:"REDIS_PASSWORD"`

	// DB is the database number (default: 0)
	DB int `env:"REDIS_DB" default:"0"`

	// Prefix namespaces all keys (default: txtconvert)
	Prefix string `env:"REDIS_PREFIX" default:"txtconvert"`

	// StatsEnabled stores throttle stats in Redis instead of memory (default: false)
	StatsEnabled bool `env:"REDIS_STATS_ENABLED" default:"false"`

	// StatsTTL is how long per-minute stats buckets are kept (default: 24h)
	StatsTTL time.Duration `env:"REDIS_STATS_TTL" default:"24h"`
}

// DatabaseConfig holds the optional history database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty keeps history in memory.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a history database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey protects the history API with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
