// Package config loads service configuration from defaults, config files, an optional secrets
// file, environment variables and command-line flags, in increasing order of precedence.
package config

import "time"

const (
	// DatabaseTypeMongoDB is the only document store the service runs on.
	DatabaseTypeMongoDB = "mongodb"

	CounterBackendMongoDB = "mongodb"
	CounterBackendRedis   = "redis"
	CounterBackendMemory  = "memory"

	StrategyStateless  = "stateless"
	StrategySequential = "sequential"
)

// Config is the root configuration.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Management    ManagementConfig    `mapstructure:"management"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Counter       CounterConfig       `mapstructure:"counter"`
	Identifiers   []IdentifierConfig  `mapstructure:"identifiers"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig configures the public API server
type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxRequestSize int64         `mapstructure:"max_request_size"`
	// RequestTimeout bounds every request context. Zero disables it.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RateLimitRPS is the per-client average request rate. Zero disables throttling.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// ManagementConfig configures the management server (health, readiness, metrics, version).
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MaintenanceConfig sets the initial state of the maintenance gate.
type MaintenanceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Message string `mapstructure:"message"`
}

// DatabaseConfig configures the document store connection.
type DatabaseConfig struct {
	Type             string        `mapstructure:"type"`
	URL              string        `mapstructure:"url"`
	DatabaseName     string        `mapstructure:"database_name"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	MaxPoolSize      uint64        `mapstructure:"max_pool_size"`
	// EnsureIndexes creates the unique indexes the repositories rely on at startup.
	EnsureIndexes bool `mapstructure:"ensure_indexes"`
}

// CounterConfig selects where sequential identifier counters live.
type CounterConfig struct {
	Backend               string        `mapstructure:"backend"`
	Collection            string        `mapstructure:"collection"`
	KeyPrefix             string        `mapstructure:"key_prefix"`
	RedisURL              string        `mapstructure:"redis_url"`
	RedisMaxConns         int           `mapstructure:"redis_max_conns"`
	RedisOperationTimeout time.Duration `mapstructure:"redis_operation_timeout"`
	// BreakerMaxFailures opens the counter circuit after that many consecutive failures.
	// Zero disables the breaker.
	BreakerMaxFailures  int           `mapstructure:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `mapstructure:"breaker_reset_timeout"`
}

// IdentifierConfig binds an entity to an identifier strategy.
type IdentifierConfig struct {
	Entity   string `mapstructure:"entity"`
	Strategy string `mapstructure:"strategy"`
	Digits   int    `mapstructure:"digits"`
	// Counter names the sequence for sequential strategies.
	Counter string `mapstructure:"counter"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"` // json, text
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
	// ExcludedPathPrefixes are skipped by request logging and tracing.
	ExcludedPathPrefixes []string `mapstructure:"excluded_path_prefixes"`
}

// DefaultConfig returns the configuration used when nothing else is provided.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docstore",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxRequestSize: 1 << 20,
			RequestTimeout: 0,
			RateLimitRPS:   0,
			RateLimitBurst: 100,
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Maintenance: MaintenanceConfig{
			Message: "service is under maintenance, please retry later",
		},
		Database: DatabaseConfig{
			Type:             DatabaseTypeMongoDB,
			URL:              "mongodb://localhost:27017",
			DatabaseName:     "docstore",
			ConnectTimeout:   10 * time.Second,
			OperationTimeout: 5 * time.Second,
			MaxPoolSize:      100,
			EnsureIndexes:    true,
		},
		Counter: CounterConfig{
			Backend:               CounterBackendMongoDB,
			Collection:            "usercounters",
			KeyPrefix:             "counter:",
			RedisMaxConns:         10,
			RedisOperationTimeout: 3 * time.Second,
			BreakerMaxFailures:    5,
			BreakerResetTimeout:   30 * time.Second,
		},
		Identifiers: DefaultIdentifiers(),
		Observability: ObservabilityConfig{
			LogLevel:             "info",
			LogFormat:            "json",
			TracingSampleRate:    0.1,
			ExcludedPathPrefixes: []string{"/health", "/ready", "/metrics"},
		},
	}
}

// DefaultIdentifiers binds users to the shared user counter and products to ten-digit stateless ids.
func DefaultIdentifiers() []IdentifierConfig {
	return []IdentifierConfig{
		{Entity: "users", Strategy: StrategySequential, Digits: 9, Counter: "countUsers"},
		{Entity: "products", Strategy: StrategyStateless, Digits: 10},
	}
}
