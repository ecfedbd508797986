package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
	flags              *pflag.FlagSet
	v                  *viper.Viper
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "APP")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithServiceNameDefault sets the default service.name used when no config/env override is provided.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	if l == nil {
		return l
	}
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// WithFlags binds the flags registered by RegisterFlags. Changed flags win over every other source.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	if l == nil {
		return l
	}
	l.flags = flags
	return l
}

// ConfigFile returns the path to the config file that was loaded, or empty string if none.
func (l *ViperLoader) ConfigFile() string {
	return l.configFile
}

// AllSettings returns the effective merged settings of the last load.
func (l *ViperLoader) AllSettings() map[string]interface{} {
	if l == nil || l.v == nil {
		return map[string]interface{}{}
	}
	return l.v.AllSettings()
}

// Load loads configuration with precedence: flags > ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	cfg, _, err := l.load(false)
	return cfg, err
}

func (l *ViperLoader) load(withSecrets bool) (*Config, map[string]interface{}, error) {
	v := viper.New()
	l.v = v

	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	var secrets map[string]interface{}
	if withSecrets {
		var err error
		if secrets, err = l.mergeSecrets(v); err != nil {
			return nil, nil, err
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	l.bindLegacyEnvVars()
	l.bindEnvVars(v)
	if err := l.applyIdentifiersEnv(v); err != nil {
		return nil, nil, err
	}
	if err := l.bindFlags(v); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, secrets, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// HTTP
	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"))
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.max_request_size", l.prefixedEnv("HTTP_MAX_REQUEST_SIZE"))
	v.BindEnv("http.request_timeout", l.prefixedEnv("HTTP_REQUEST_TIMEOUT"))
	v.BindEnv("http.rate_limit_rps", l.prefixedEnv("HTTP_RATE_LIMIT_RPS"))
	v.BindEnv("http.rate_limit_burst", l.prefixedEnv("HTTP_RATE_LIMIT_BURST"))

	// Management
	v.BindEnv("management.enabled", l.prefixedEnv("MGMT_ENABLED"))
	v.BindEnv("management.port", l.prefixedEnv("MGMT_PORT"))
	v.BindEnv("management.read_timeout", l.prefixedEnv("MGMT_READ_TIMEOUT"))
	v.BindEnv("management.write_timeout", l.prefixedEnv("MGMT_WRITE_TIMEOUT"))

	v.BindEnv("maintenance.enabled", l.prefixedEnv("MAINTENANCE_ENABLED"))
	v.BindEnv("maintenance.message", l.prefixedEnv("MAINTENANCE_MESSAGE"))

	// Database
	v.BindEnv("database.type", l.prefixedEnv("DB_TYPE"))
	v.BindEnv("database.url", l.prefixedEnv("DB_URL"))
	v.BindEnv("database.database_name", l.prefixedEnv("DB_DATABASE_NAME"))
	v.BindEnv("database.connect_timeout", l.prefixedEnv("DB_CONNECT_TIMEOUT"))
	v.BindEnv("database.operation_timeout", l.prefixedEnv("DB_OPERATION_TIMEOUT"))
	v.BindEnv("database.max_pool_size", l.prefixedEnv("DB_MAX_POOL_SIZE"))
	v.BindEnv("database.ensure_indexes", l.prefixedEnv("DB_ENSURE_INDEXES"))

	// Counter
	v.BindEnv("counter.backend", l.prefixedEnv("COUNTER_BACKEND"))
	v.BindEnv("counter.collection", l.prefixedEnv("COUNTER_COLLECTION"))
	v.BindEnv("counter.key_prefix", l.prefixedEnv("COUNTER_KEY_PREFIX"))
	v.BindEnv("counter.redis_url", l.prefixedEnv("COUNTER_REDIS_URL"))
	v.BindEnv("counter.redis_max_conns", l.prefixedEnv("COUNTER_REDIS_MAX_CONNS"))
	v.BindEnv("counter.redis_operation_timeout", l.prefixedEnv("COUNTER_REDIS_OPERATION_TIMEOUT"))
	v.BindEnv("counter.breaker_max_failures", l.prefixedEnv("COUNTER_BREAKER_MAX_FAILURES"))
	v.BindEnv("counter.breaker_reset_timeout", l.prefixedEnv("COUNTER_BREAKER_RESET_TIMEOUT"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.excluded_path_prefixes", l.prefixedEnv("OBSERVABILITY_EXCLUDED_PATH_PREFIXES"))
}

// bindLegacyEnvVars maps legacy env vars to current abbreviated names when abbreviated vars are absent.
func (l *ViperLoader) bindLegacyEnvVars() {
	aliases := []struct {
		abbrevSuffix string
		legacySuffix string
	}{
		{"MGMT_PORT", "MANAGEMENT_PORT"},
		{"MGMT_ENABLED", "MANAGEMENT_ENABLED"},
		{"DB_URL", "DATABASE_URL"},
		{"DB_DATABASE_NAME", "DATABASE_NAME"},
		{"DB_OPERATION_TIMEOUT", "DATABASE_OPERATION_TIMEOUT"},
	}

	for _, alias := range aliases {
		abbrevEnv := l.prefixedEnv(alias.abbrevSuffix)
		if _, hasAbbrev := os.LookupEnv(abbrevEnv); hasAbbrev {
			continue
		}
		if legacyValue, hasLegacy := os.LookupEnv(l.prefixedEnv(alias.legacySuffix)); hasLegacy {
			_ = os.Setenv(abbrevEnv, legacyValue)
		}
	}
}

// applyIdentifiersEnv replaces the identifier bindings with <PREFIX>_IDENTIFIERS when it is set.
func (l *ViperLoader) applyIdentifiersEnv(v *viper.Viper) error {
	raw, ok := os.LookupEnv(l.prefixedEnv("IDENTIFIERS"))
	if !ok {
		return nil
	}
	bindings, err := ParseIdentifiers(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", l.prefixedEnv("IDENTIFIERS"), err)
	}
	v.Set("identifiers", identifierSettings(bindings))
	return nil
}

// ParseIdentifiers reads a comma-separated list of entity:strategy[:digits[:counter]] bindings,
// e.g. "users:sequential:9:countUsers,products:stateless:10".
func ParseIdentifiers(raw string) ([]IdentifierConfig, error) {
	var out []IdentifierConfig
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 4 {
			return nil, fmt.Errorf("invalid identifier binding %q", item)
		}
		binding := IdentifierConfig{
			Entity:   strings.TrimSpace(parts[0]),
			Strategy: strings.ToLower(strings.TrimSpace(parts[1])),
		}
		if len(parts) > 2 && parts[2] != "" {
			digits, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid digits in identifier binding %q: %w", item, err)
			}
			binding.Digits = digits
		}
		if len(parts) > 3 {
			binding.Counter = strings.TrimSpace(parts[3])
		}
		out = append(out, binding)
	}
	if len(out) == 0 {
		return nil, errors.New("no identifier bindings")
	}
	return out, nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = "APP"
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func (l *ViperLoader) defaultServiceName(fallback string) string {
	if l != nil {
		if configured := strings.TrimSpace(l.serviceNameDefault); configured != "" {
			return configured
		}
	}
	return strings.TrimSpace(fallback)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", l.defaultServiceName(cfg.Service.Name))
	v.SetDefault("service.environment", cfg.Service.Environment)

	// HTTP defaults
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.max_request_size", cfg.HTTP.MaxRequestSize)
	v.SetDefault("http.request_timeout", cfg.HTTP.RequestTimeout)
	v.SetDefault("http.rate_limit_rps", cfg.HTTP.RateLimitRPS)
	v.SetDefault("http.rate_limit_burst", cfg.HTTP.RateLimitBurst)

	// Management defaults
	v.SetDefault("management.enabled", cfg.Management.Enabled)
	v.SetDefault("management.port", cfg.Management.Port)
	v.SetDefault("management.read_timeout", cfg.Management.ReadTimeout)
	v.SetDefault("management.write_timeout", cfg.Management.WriteTimeout)

	v.SetDefault("maintenance.enabled", cfg.Maintenance.Enabled)
	v.SetDefault("maintenance.message", cfg.Maintenance.Message)

	// Database defaults
	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.database_name", cfg.Database.DatabaseName)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.operation_timeout", cfg.Database.OperationTimeout)
	v.SetDefault("database.max_pool_size", cfg.Database.MaxPoolSize)
	v.SetDefault("database.ensure_indexes", cfg.Database.EnsureIndexes)

	// Counter defaults
	v.SetDefault("counter.backend", cfg.Counter.Backend)
	v.SetDefault("counter.collection", cfg.Counter.Collection)
	v.SetDefault("counter.key_prefix", cfg.Counter.KeyPrefix)
	v.SetDefault("counter.redis_url", cfg.Counter.RedisURL)
	v.SetDefault("counter.redis_max_conns", cfg.Counter.RedisMaxConns)
	v.SetDefault("counter.redis_operation_timeout", cfg.Counter.RedisOperationTimeout)
	v.SetDefault("counter.breaker_max_failures", cfg.Counter.BreakerMaxFailures)
	v.SetDefault("counter.breaker_reset_timeout", cfg.Counter.BreakerResetTimeout)

	v.SetDefault("identifiers", identifierSettings(cfg.Identifiers))

	// Observability defaults
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.excluded_path_prefixes", cfg.Observability.ExcludedPathPrefixes)
}

func identifierSettings(bindings []IdentifierConfig) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, map[string]interface{}{
			"entity":   b.Entity,
			"strategy": b.Strategy,
			"digits":   b.Digits,
			"counter":  b.Counter,
		})
	}
	return out
}

// Validate validates the configuration and returns detailed errors
func (l *ViperLoader) Validate(cfg *Config) error {
	cfg.Observability.ExcludedPathPrefixes = normalizeStringSlice(cfg.Observability.ExcludedPathPrefixes)
	cfg.Counter.Backend = strings.ToLower(strings.TrimSpace(cfg.Counter.Backend))
	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	for i := range cfg.Identifiers {
		cfg.Identifiers[i].Entity = strings.TrimSpace(cfg.Identifiers[i].Entity)
		cfg.Identifiers[i].Strategy = strings.ToLower(strings.TrimSpace(cfg.Identifiers[i].Strategy))
	}
	return cfg.Validate()
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// normalizeStringSlice removes empty strings and trims whitespace
func normalizeStringSlice(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
