package config

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierDigits = 18

var (
	validLogLevels      = []string{"debug", "info", "warn", "error"}
	validLogFormats     = []string{"json", "text"}
	validCounterBackend = []string{CounterBackendMongoDB, CounterBackendRedis, CounterBackendMemory}
	validStrategies     = []string{StrategyStateless, StrategySequential}
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 || c.HTTP.IdleTimeout < 0 {
		errs = append(errs, errors.New("http timeouts must not be negative"))
	}
	if c.HTTP.RequestTimeout < 0 {
		errs = append(errs, errors.New("http.request_timeout must not be negative"))
	}
	if c.HTTP.MaxRequestSize < 0 {
		errs = append(errs, errors.New("http.max_request_size must not be negative"))
	}
	if c.HTTP.RateLimitRPS < 0 {
		errs = append(errs, errors.New("http.rate_limit_rps must not be negative"))
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst < 1 {
		errs = append(errs, errors.New("http.rate_limit_burst must be at least 1 when rate limiting is enabled"))
	}

	if c.Management.Enabled {
		if c.Management.Port < 1 || c.Management.Port > 65535 {
			errs = append(errs, fmt.Errorf("management.port must be between 1 and 65535, got %d", c.Management.Port))
		} else if c.Management.Port == c.HTTP.Port {
			errs = append(errs, errors.New("management.port must differ from http.port"))
		}
	}

	if c.Database.Type != DatabaseTypeMongoDB {
		errs = append(errs, fmt.Errorf("invalid database.type: %s (must be %s)", c.Database.Type, DatabaseTypeMongoDB))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Database.DatabaseName == "" {
		errs = append(errs, errors.New("database.database_name is required for MongoDB"))
	}

	if !contains(validCounterBackend, c.Counter.Backend) {
		errs = append(errs, fmt.Errorf("invalid counter.backend: %s (must be one of: %v)", c.Counter.Backend, validCounterBackend))
	}
	if c.Counter.Backend == CounterBackendRedis && c.Counter.RedisURL == "" {
		errs = append(errs, errors.New("counter.redis_url is required when counter.backend is redis"))
	}
	if c.Counter.Backend == CounterBackendMongoDB && c.Counter.Collection == "" {
		errs = append(errs, errors.New("counter.collection is required when counter.backend is mongodb"))
	}
	if c.Counter.BreakerMaxFailures < 0 || c.Counter.BreakerResetTimeout < 0 {
		errs = append(errs, errors.New("counter breaker settings must not be negative"))
	}

	errs = append(errs, validateIdentifiers(c.Identifiers)...)

	if !contains(validLogLevels, strings.ToLower(c.Observability.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", c.Observability.LogLevel, validLogLevels))
	}
	if !contains(validLogFormats, strings.ToLower(c.Observability.LogFormat)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", c.Observability.LogFormat, validLogFormats))
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
	}
	if c.Observability.TracingEnabled && c.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}

	return errors.Join(errs...)
}

func validateIdentifiers(bindings []IdentifierConfig) []error {
	var errs []error
	seen := make(map[string]struct{}, len(bindings))
	for i, b := range bindings {
		if b.Entity == "" {
			errs = append(errs, fmt.Errorf("identifiers[%d].entity is required", i))
		} else if _, dup := seen[b.Entity]; dup {
			errs = append(errs, fmt.Errorf("identifiers[%d].entity %q is bound more than once", i, b.Entity))
		} else {
			seen[b.Entity] = struct{}{}
		}
		if !contains(validStrategies, b.Strategy) {
			errs = append(errs, fmt.Errorf("identifiers[%d].strategy must be one of %v", i, validStrategies))
		}
		if b.Digits < 0 || b.Digits > maxIdentifierDigits {
			errs = append(errs, fmt.Errorf("identifiers[%d].digits must be between 0 and %d", i, maxIdentifierDigits))
		}
	}
	return errs
}
