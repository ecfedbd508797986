package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service.Name != "docstore" {
		t.Errorf("expected service name docstore, got %s", cfg.Service.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected HTTP port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.MaxRequestSize != 1<<20 {
		t.Errorf("expected HTTP max request size 1048576, got %d", cfg.HTTP.MaxRequestSize)
	}
	if cfg.Management.Port != 9090 {
		t.Errorf("expected Management port 9090, got %d", cfg.Management.Port)
	}
	if cfg.Counter.Backend != CounterBackendMongoDB {
		t.Errorf("expected counter backend mongodb, got %s", cfg.Counter.Backend)
	}
	if cfg.Counter.Collection != "usercounters" {
		t.Errorf("expected counter collection usercounters, got %s", cfg.Counter.Collection)
	}
	if len(cfg.Identifiers) != 2 {
		t.Fatalf("expected 2 identifier bindings, got %d", len(cfg.Identifiers))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must be valid: %v", err)
	}
}

func TestViperLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewViperLoader("", "DOCSTORE_TEST").Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got: %v", err)
	}
	if cfg.Database.OperationTimeout != 5*time.Second {
		t.Errorf("expected operation timeout 5s, got %v", cfg.Database.OperationTimeout)
	}
	if cfg.Identifiers[0].Entity != "users" || cfg.Identifiers[0].Strategy != StrategySequential || cfg.Identifiers[0].Counter != "countUsers" {
		t.Errorf("unexpected users binding %+v", cfg.Identifiers[0])
	}
	if cfg.Identifiers[1].Entity != "products" || cfg.Identifiers[1].Digits != 10 {
		t.Errorf("unexpected products binding %+v", cfg.Identifiers[1])
	}
}

func TestViperLoader_ServiceNameDefault(t *testing.T) {
	cfg, err := NewViperLoader("", "DOCSTORE_TEST").WithServiceNameDefault("orders").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.Name != "orders" {
		t.Errorf("expected service name orders, got %s", cfg.Service.Name)
	}
}

func TestViperLoader_FileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
http:
  port: 8181
  request_timeout: 2s
database:
  url: mongodb://file:27017
  database_name: fromfile
counter:
  backend: redis
  redis_url: redis://localhost:6379/0
identifiers:
  - entity: orders
    strategy: stateless
    digits: 8
`)
	t.Setenv("DOCSTORE_TEST_HTTP_PORT", "8282")

	cfg, err := NewViperLoader(path, "DOCSTORE_TEST").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 8282 {
		t.Errorf("env must override file: got port %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.RequestTimeout != 2*time.Second {
		t.Errorf("expected request timeout 2s, got %v", cfg.HTTP.RequestTimeout)
	}
	if cfg.Database.DatabaseName != "fromfile" {
		t.Errorf("expected database fromfile, got %s", cfg.Database.DatabaseName)
	}
	if cfg.Counter.Backend != CounterBackendRedis {
		t.Errorf("expected redis backend, got %s", cfg.Counter.Backend)
	}
	if len(cfg.Identifiers) != 1 || cfg.Identifiers[0].Entity != "orders" || cfg.Identifiers[0].Digits != 8 {
		t.Errorf("file identifiers must replace defaults, got %+v", cfg.Identifiers)
	}
}

func TestViperLoader_MissingFile(t *testing.T) {
	_, err := NewViperLoader(filepath.Join(t.TempDir(), "absent.yaml"), "DOCSTORE_TEST").Load()
	if err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestViperLoader_IdentifiersEnv(t *testing.T) {
	t.Setenv("DOCSTORE_TEST_IDENTIFIERS", "users:sequential:9:countUsers, invoices:stateless:12")

	cfg, err := NewViperLoader("", "DOCSTORE_TEST").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Identifiers) != 2 {
		t.Fatalf("expected 2 bindings, got %+v", cfg.Identifiers)
	}
	if got := cfg.Identifiers[1]; got.Entity != "invoices" || got.Strategy != StrategyStateless || got.Digits != 12 {
		t.Errorf("unexpected binding %+v", got)
	}
}

func TestViperLoader_LegacyEnv(t *testing.T) {
	t.Setenv("DOCSTORE_LEGACY_DATABASE_URL", "mongodb://legacy:27017")
	t.Cleanup(func() { _ = os.Unsetenv("DOCSTORE_LEGACY_DB_URL") })

	cfg, err := NewViperLoader("", "DOCSTORE_LEGACY").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URL != "mongodb://legacy:27017" {
		t.Errorf("expected legacy url, got %s", cfg.Database.URL)
	}
}

func TestViperLoader_Flags(t *testing.T) {
	t.Setenv("DOCSTORE_TEST_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse([]string{"--http-port=8383", "--log-level=debug", "--maintenance"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := NewViperLoader("", "DOCSTORE_TEST").WithFlags(flags).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 8383 {
		t.Errorf("expected flag port 8383, got %d", cfg.HTTP.Port)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("flag must override env, got %s", cfg.Observability.LogLevel)
	}
	if !cfg.Maintenance.Enabled {
		t.Error("expected maintenance enabled from flag")
	}
	if cfg.Management.Port != 9090 {
		t.Errorf("unset flags must not override defaults, got %d", cfg.Management.Port)
	}
}

func TestLoadWithSecrets(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "database:\n  database_name: app\n")
	writeFile(t, dir, "secrets.yaml", "database:\n  url: mongodb://user:secret@db:27017\n")

	loader := NewViperLoader(path, "DOCSTORE_TEST")
	cfg, secrets, err := loader.LoadWithSecrets()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URL != "mongodb://user:secret@db:27017" {
		t.Errorf("expected secret url merged, got %s", cfg.Database.URL)
	}
	if secrets == nil {
		t.Fatal("expected secrets map")
	}

	redacted := Redact(loader.AllSettings(), secrets)
	db := redacted["database"].(map[string]interface{})
	if db["url"] != RedactedValue {
		t.Errorf("expected url redacted, got %v", db["url"])
	}
	if db["database_name"] != "app" {
		t.Errorf("non-secret values must survive redaction, got %v", db["database_name"])
	}
}

func TestRedactCredentials(t *testing.T) {
	settings := map[string]interface{}{
		"database": map[string]interface{}{
			"url":           "mongodb://app:s3cr%40t@db:27017/docstore?authSource=admin",
			"database_name": "docstore",
		},
		"counter": map[string]interface{}{
			"redis_url":       "redis://:pass@cache:6379/0",
			"redis_max_conns": 10,
		},
		"plain": "mongodb://db:27017",
	}

	out := RedactCredentials(settings)
	db := out["database"].(map[string]interface{})
	if db["url"] != "mongodb://app:***@db:27017/docstore?authSource=admin" {
		t.Errorf("database url = %v", db["url"])
	}
	if db["database_name"] != "docstore" {
		t.Errorf("database_name = %v", db["database_name"])
	}
	counter := out["counter"].(map[string]interface{})
	if counter["redis_url"] != "redis://:***@cache:6379/0" || counter["redis_max_conns"] != 10 {
		t.Errorf("counter = %v", counter)
	}
	if out["plain"] != "mongodb://db:27017" {
		t.Errorf("url without credentials changed: %v", out["plain"])
	}
	if RedactCredentials(nil) != nil {
		t.Error("nil settings should stay nil")
	}
}

func TestLoadWithSecrets_ExplicitEnvMustExist(t *testing.T) {
	t.Setenv("DOCSTORE_TEST_SECRETS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, _, err := NewViperLoader("", "DOCSTORE_TEST").LoadWithSecrets(); err == nil {
		t.Fatal("expected error for inaccessible secrets file")
	}
}

func TestParseIdentifiers(t *testing.T) {
	got, err := ParseIdentifiers("users:Sequential,products:stateless:10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0].Strategy != StrategySequential || got[1].Digits != 10 {
		t.Errorf("unexpected bindings %+v", got)
	}

	for _, raw := range []string{"", "users", "users:stateless:x", "a:b:1:c:d"} {
		if _, err := ParseIdentifiers(raw); err == nil {
			t.Errorf("ParseIdentifiers(%q) expected error", raw)
		}
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.Port = 0
	cfg.Database.Type = "postgres"
	cfg.Counter.Backend = CounterBackendRedis
	cfg.Identifiers = append(cfg.Identifiers, IdentifierConfig{Entity: "users", Strategy: "uuid", Digits: 40})
	cfg.Observability.TracingEnabled = true

	err := NewViperLoader("", "DOCSTORE_TEST").Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"http.port",
		"database.type",
		"counter.redis_url",
		"bound more than once",
		"strategy must be one of",
		"digits must be between",
		"tracing_endpoint",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %v", want, msg)
		}
	}
}

func TestValidate_ManagementPortClash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Management.Port = cfg.HTTP.Port
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("expected port clash error, got %v", err)
	}

	cfg.Management.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled management must not be validated: %v", err)
	}
}

func TestValidate_RateLimitAndBreaker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.RateLimitRPS = 5
	cfg.HTTP.RateLimitBurst = 0
	cfg.Counter.BreakerMaxFailures = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"http.rate_limit_burst", "counter breaker"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	t.Setenv("DOCSTORE_TEST_HTTP_RATE_LIMIT_RPS", "2.5")
	t.Setenv("DOCSTORE_TEST_COUNTER_BREAKER_RESET_TIMEOUT", "45s")
	loaded, err := NewViperLoader("", "DOCSTORE_TEST").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.HTTP.RateLimitRPS != 2.5 || loaded.HTTP.RateLimitBurst != 100 {
		t.Errorf("rate limit = %v/%d", loaded.HTTP.RateLimitRPS, loaded.HTTP.RateLimitBurst)
	}
	if loaded.Counter.BreakerResetTimeout != 45*time.Second || loaded.Counter.BreakerMaxFailures != 5 {
		t.Errorf("breaker = %d/%s", loaded.Counter.BreakerMaxFailures, loaded.Counter.BreakerResetTimeout)
	}
}

func TestValidate_NormalizesValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Counter.Backend = " Memory "
	cfg.Identifiers[0].Strategy = "SEQUENTIAL"
	cfg.Observability.ExcludedPathPrefixes = []string{" /health ", ""}

	if err := NewViperLoader("", "").Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Counter.Backend != CounterBackendMemory {
		t.Errorf("expected normalized backend, got %q", cfg.Counter.Backend)
	}
	if cfg.Identifiers[0].Strategy != StrategySequential {
		t.Errorf("expected normalized strategy, got %q", cfg.Identifiers[0].Strategy)
	}
	if len(cfg.Observability.ExcludedPathPrefixes) != 1 || cfg.Observability.ExcludedPathPrefixes[0] != "/health" {
		t.Errorf("unexpected prefixes %v", cfg.Observability.ExcludedPathPrefixes)
	}
}

func TestValidate_JoinedError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.Name = ""
	cfg.Database.URL = ""
	err := cfg.Validate()
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 2 {
		t.Fatalf("expected two joined errors, got %v", err)
	}
}
