package config

import "time"

// Config is the root configuration structure for Mercury.
// It contains the per-service rate card consumed by the governance layer,
// cache and storage settings, the sidecar server, and telemetry.
type Config struct {
	// Server contains configuration for the sidecar HTTP server.
	Server ServerConfig `yaml:"server"`

	// Services is the rate card: one row per external market-data provider.
	// Keys are service identifiers (e.g., "coingecko", "basescan").
	Services map[string]ServiceConfig `yaml:"services"`

	// Cache contains configuration for the two-tier response cache.
	Cache CacheConfig `yaml:"cache"`

	// Storage contains configuration for the durable key/value store backing
	// the cache's durable tier and the monthly usage counters.
	Storage StorageConfig `yaml:"storage"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the sidecar HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8790"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Upstream fetches can sit in a rate-limiter queue, so this defaults
	// higher than ReadTimeout. Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on a
	// kept-alive connection. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown: in-flight requests get this
	// long to complete before the listener is torn down. Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ServiceConfig is one row of the rate card: the burst-rate and monthly-volume
// limits for a single external provider, plus the provider's base URL and
// per-endpoint cache TTL overrides.
type ServiceConfig struct {
	// Capacity is the maximum number of requests admitted per rolling window.
	Capacity int `yaml:"capacity"`

	// Window is the rolling time-window length for Capacity.
	// Default: 1m
	Window time.Duration `yaml:"window"`

	// MonthlyLimit is the hard ceiling on completed requests per calendar
	// month. Zero means unbounded.
	MonthlyLimit int64 `yaml:"monthly_limit"`

	// CountFailed controls whether failed fetches consume monthly quota.
	// Some providers bill attempted calls; most free tiers do not.
	// Default: false
	CountFailed bool `yaml:"count_failed"`

	// QueueLimit caps the number of requests waiting for a rate-limiter
	// slot. Zero means unlimited.
	QueueLimit int `yaml:"queue_limit"`

	// BaseURL is the provider's API base URL. Only required for services
	// fetched through the sidecar; library callers supply their own fetch
	// functions.
	BaseURL string `yaml:"base_url"`

	// Endpoints maps endpoint names to per-endpoint settings such as cache
	// TTL overrides.
	Endpoints map[string]EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig contains per-endpoint settings within a service.
type EndpointConfig struct {
	// TTL is the cache time-to-live for responses from this endpoint.
	// Zero falls back to Cache.DefaultTTL.
	TTL time.Duration `yaml:"ttl"`
}

// CacheConfig contains configuration for the two-tier response cache.
type CacheConfig struct {
	// MemoryMaxEntries bounds the ephemeral tier; least recently used
	// entries are evicted beyond this. Default: 4096
	MemoryMaxEntries int `yaml:"memory_max_entries"`

	// DefaultTTL is used for entries whose endpoint does not override it.
	// Default: 60s
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// PromoteTTL is the ephemeral lifetime given to entries promoted from
	// the durable tier on read. Default: 30s
	PromoteTTL time.Duration `yaml:"promote_ttl"`

	// SweepSchedule is a cron expression for the expired-entry sweep across
	// both tiers. Empty disables the sweep. Default: "*/5 * * * *"
	SweepSchedule string `yaml:"sweep_schedule"`
}

// Storage backend identifiers.
const (
	StorageBackendMemory = "memory"
	StorageBackendSQLite = "sqlite"
)

// StorageConfig contains configuration for the durable key/value store.
type StorageConfig struct {
	// Backend selects the store implementation: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path. Required when Backend is
	// "sqlite".
	Path string `yaml:"path"`

	// CheckpointInterval is how often the SQLite backend checkpoints its
	// write-ahead log. Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`

	// BusyTimeout is how long SQLite waits for locks before failing.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics exposition.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the slog-based logger.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on.
	Enabled bool `yaml:"enabled"`

	// Path is the exposition endpoint path. Default: "/metrics"
	Path string `yaml:"path"`
}
