// Package config provides centralized configuration management for the
// viewer server and the terminal client. Settings come from, in increasing
// precedence: struct tag defaults, an optional YAML file named by
// TABLERAG_CONFIG, and environment variables. Everything is validated on
// startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Backend  BackendConfig   `yaml:"backend"`
	Poll     PollConfig      `yaml:"poll"`
	Viewer   ViewerConfig    `yaml:"viewer"`
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Upload   UploadConfig    `yaml:"upload"`
	Rate     RateLimitConfig `yaml:"rate"`
	Security SecurityConfig  `yaml:"security"`
	History  HistoryConfig   `yaml:"history"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// BackendConfig locates the table backend.
type BackendConfig struct {
	// URL is the backend root (default: http://localhost:8000)
	URL string `env:"BACKEND_URL" yaml:"url" default:"http://localhost:8000"`

	// Timeout bounds each backend call (default: 10s)
	Timeout time.Duration `env:"BACKEND_TIMEOUT" yaml:"timeout" default:"10s"`
}

// PollConfig bounds job polling.
type PollConfig struct {
	// Interval is the wait between status calls (default: 500ms)
	Interval time.Duration `env:"POLL_INTERVAL" yaml:"interval" default:"500ms"`

	// MaxTransientFailures is how many consecutive failed status calls are
	// tolerated before giving up (default: 5)
	MaxTransientFailures int `env:"POLL_MAX_TRANSIENT_FAILURES" yaml:"max_transient_failures" default:"5"`

	// MaxWait bounds the whole poll loop; 0 disables the bound (default: 10m)
	MaxWait time.Duration `env:"POLL_MAX_WAIT" yaml:"max_wait" default:"10m"`
}

// ViewerConfig controls how tables are shown.
type ViewerConfig struct {
	// PreviewRows is the size of the post-upload preview (default: 50)
	PreviewRows int `env:"PREVIEW_ROWS" yaml:"preview_rows" default:"50"`

	// ContextRows is the padding around cited rows (default: 5)
	ContextRows int `env:"HIGHLIGHT_CONTEXT_ROWS" yaml:"context_rows" default:"5"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" yaml:"host" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" yaml:"port" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" yaml:"read_timeout" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" yaml:"write_timeout" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" yaml:"request_timeout" default:"60s"`
}

// DatabaseConfig holds the optional upload history database.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty keeps history in memory.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" yaml:"url"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" yaml:"max_conns" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" yaml:"min_conns" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" yaml:"max_conn_lifetime" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" yaml:"max_conn_idle_time" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds upload session settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" yaml:"max_file_size" default:"104857600"`

	// MaxConcurrent is the maximum number of sessions followed at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" yaml:"max_concurrent" default:"5"`

	// MaxWaitTime is how long to wait for a session slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" yaml:"max_wait_time" default:"30s"`

	// SessionTTL is how long a finished session stays queryable (default: 5m)
	SessionTTL time.Duration `env:"UPLOAD_SESSION_TTL" yaml:"session_ttl" default:"5m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" yaml:"enabled" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" yaml:"requests_per_minute" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" yaml:"upload_limit" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" yaml:"trusted_proxies"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" yaml:"enable_csp" default:"true"`

	// RequireAPIKey protects upload and table mutations with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" yaml:"require_api_key" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS" yaml:"api_keys"`
}

// HistoryConfig holds upload history retention settings.
type HistoryConfig struct {
	// RetentionDays is days to keep history entries (default: 30)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" yaml:"retention_days" default:"30"`

	// CheckInterval is how often old entries are purged (default: 24h)
	CheckInterval time.Duration `env:"HISTORY_CHECK_INTERVAL" yaml:"check_interval" default:"24h"`

	// ListLimit caps entries returned by the history endpoint (default: 50)
	ListLimit int `env:"HISTORY_LIST_LIMIT" yaml:"list_limit" default:"50"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" yaml:"level" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" yaml:"format" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
