package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimburion/docstore/pkg/config"
	"github.com/nimburion/docstore/pkg/controller"
	"github.com/nimburion/docstore/pkg/health"
	"github.com/nimburion/docstore/pkg/identifier"
	"github.com/nimburion/docstore/pkg/middleware/maintenance"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/observability/metrics"
	"github.com/nimburion/docstore/pkg/observability/tracing"
	"github.com/nimburion/docstore/pkg/repository/document"
	"github.com/nimburion/docstore/pkg/resilience"
	"github.com/nimburion/docstore/pkg/service"
	mongostore "github.com/nimburion/docstore/pkg/store/mongodb"
	redisstore "github.com/nimburion/docstore/pkg/store/redis"
	"github.com/nimburion/docstore/pkg/version"
)

// LifecycleHook defines a named startup/shutdown action.
type LifecycleHook struct {
	Name string
	Fn   func(context.Context) error
}

// RunHTTPServersOptions defines inputs for building/running the HTTP servers.
type RunHTTPServersOptions struct {
	Config *config.Config
	Logger logger.Logger

	// Executor is optional. If nil, a MongoDB adapter is opened from Config.Database.
	Executor document.Executor
	// CounterStore is optional. If nil, one is built from Config.Counter.
	CounterStore identifier.CounterStore

	HealthRegistry  *health.Registry
	MetricsRegistry *metrics.Registry

	StartupHooks        []LifecycleHook
	ShutdownHooks       []LifecycleHook
	ShutdownHookTimeout time.Duration
}

// Dependencies groups everything the HTTP layer and the CLI build on.
type Dependencies struct {
	Repository  *document.Repository
	Identifiers *identifier.Registry
	Users       *service.UserService
	Products    *service.ProductService
	Gate        *maintenance.Gate
	Health      *health.Registry
	Metrics     *metrics.Registry

	closers []LifecycleHook
}

// Close releases the connections opened by BuildDependencies, most recent first.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", d.closers[i].Name, err))
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Cosa fa: apre store e contatori indicati dalla configurazione e compone repository, identificatori e servizi.
// Cosa NON fa: non avvia server HTTP; il chiamante deve invocare Close.
// Esempio minimo: deps, err := server.BuildDependencies(ctx, &server.RunHTTPServersOptions{Config: cfg, Logger: log})
func BuildDependencies(ctx context.Context, opts *RunHTTPServersOptions) (*Dependencies, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	cfg, log := opts.Config, opts.Logger

	deps := &Dependencies{
		Gate:    maintenance.NewGate(cfg.Maintenance.Enabled, cfg.Maintenance.Message),
		Health:  opts.HealthRegistry,
		Metrics: opts.MetricsRegistry,
	}
	if deps.Health == nil {
		deps.Health = health.NewRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry(metricsNamespace(cfg.Service.Name))
	}

	fail := func(err error) (*Dependencies, error) {
		_ = deps.Close(context.Background())
		return nil, err
	}

	var mongoAdapter *mongostore.Adapter
	executor := opts.Executor
	if executor == nil {
		adapter, err := mongostore.NewAdapter(mongostore.Config{
			URL:              cfg.Database.URL,
			Database:         cfg.Database.DatabaseName,
			ConnectTimeout:   cfg.Database.ConnectTimeout,
			OperationTimeout: cfg.Database.OperationTimeout,
			MaxPoolSize:      cfg.Database.MaxPoolSize,
		}, log)
		if err != nil {
			return fail(fmt.Errorf("connect document store: %w", err))
		}
		mongoAdapter = adapter
		deps.closers = append(deps.closers, LifecycleHook{Name: "mongodb", Fn: func(context.Context) error { return adapter.Close() }})
		deps.Health.Register(health.NewStoreChecker(adapter))

		if cfg.Database.EnsureIndexes {
			if err := ensureIndexes(ctx, adapter); err != nil {
				return fail(err)
			}
		}
		if executor, err = document.NewMongoDBExecutor(adapter); err != nil {
			return fail(err)
		}
	}

	counters := opts.CounterStore
	if counters == nil && needsCounter(cfg.Identifiers) {
		store, err := buildCounterStore(cfg.Counter, mongoAdapter, deps, log)
		if err != nil {
			return fail(err)
		}
		counters = guardCounterStore(cfg.Counter, store, deps, log)
	}

	ids, err := identifier.Build(bindings(cfg.Identifiers), counters, deps.Metrics.Identifiers)
	if err != nil {
		return fail(fmt.Errorf("build identifier registry: %w", err))
	}
	deps.Identifiers = ids
	deps.Health.Register(health.NewEntitiesChecker(ids.Entities, service.UsersEntity, service.ProductsEntity))

	repo, err := document.NewRepository(executor, log, document.WithRecorder(deps.Metrics.Store))
	if err != nil {
		return fail(err)
	}
	deps.Repository = repo

	v := service.NewValidator()
	deps.Users = service.NewUserService(repo, ids, v, log)
	deps.Products = service.NewProductService(repo, ids, v, log)
	return deps, nil
}

func buildCounterStore(cfg config.CounterConfig, mongoAdapter *mongostore.Adapter, deps *Dependencies, log logger.Logger) (identifier.CounterStore, error) {
	switch cfg.Backend {
	case config.CounterBackendMongoDB:
		if mongoAdapter == nil {
			return nil, errors.New("counter backend mongodb requires the MongoDB document store")
		}
		return identifier.NewMongoCounterStore(mongoAdapter, cfg.Collection)
	case config.CounterBackendRedis:
		adapter, err := redisstore.NewAdapter(redisstore.Config{
			URL:              cfg.RedisURL,
			MaxConns:         cfg.RedisMaxConns,
			OperationTimeout: cfg.RedisOperationTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("connect counter store: %w", err)
		}
		deps.closers = append(deps.closers, LifecycleHook{Name: "redis", Fn: func(context.Context) error { return adapter.Close() }})
		deps.Health.Register(health.NewCounterChecker(config.CounterBackendRedis, adapter))
		return identifier.NewRedisCounterStore(adapter, cfg.KeyPrefix)
	case config.CounterBackendMemory:
		log.Warn("sequential identifiers use an in-memory counter; sequences restart with the process")
		return identifier.NewMemoryCounterStore(), nil
	default:
		return nil, fmt.Errorf("unsupported counter backend %q", cfg.Backend)
	}
}

// guardCounterStore puts remote counter backends behind a circuit breaker.
func guardCounterStore(cfg config.CounterConfig, store identifier.CounterStore, deps *Dependencies, log logger.Logger) identifier.CounterStore {
	if cfg.BreakerMaxFailures <= 0 || store.Backend() == config.CounterBackendMemory {
		return store
	}
	breaker := resilience.NewCircuitBreaker("counter-"+store.Backend(), cfg.BreakerMaxFailures, cfg.BreakerResetTimeout,
		resilience.WithStateChange(func(name string, from, to resilience.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}))
	deps.Health.Register(health.NewBreakerChecker(breaker))
	return identifier.NewGuardedCounterStore(store, breaker)
}

func ensureIndexes(ctx context.Context, adapter *mongostore.Adapter) error {
	indexes := []struct {
		collection string
		key        string
	}{
		{"users", "email"},
		{"users", "userId"},
		{"products", "productId"},
	}
	for _, idx := range indexes {
		if err := adapter.EnsureIndex(ctx, idx.collection, true, idx.key); err != nil {
			return fmt.Errorf("ensure unique index %s.%s: %w", idx.collection, idx.key, err)
		}
	}
	return nil
}

func needsCounter(identifiers []config.IdentifierConfig) bool {
	for _, b := range identifiers {
		if b.Strategy == config.StrategySequential {
			return true
		}
	}
	return false
}

func bindings(identifiers []config.IdentifierConfig) []identifier.Binding {
	out := make([]identifier.Binding, 0, len(identifiers))
	for _, b := range identifiers {
		out = append(out, identifier.Binding{
			Entity:   b.Entity,
			Strategy: b.Strategy,
			Digits:   b.Digits,
			Counter:  b.Counter,
		})
	}
	return out
}

// metricsNamespace turns the service name into a Prometheus-safe prefix.
func metricsNamespace(serviceName string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(serviceName))
}

// HTTPServers groups the runtime public/management servers.
type HTTPServers struct {
	Public       *PublicAPIServer
	Management   *ManagementServer
	Dependencies *Dependencies
}

// BuildHTTPServers constructs the HTTP servers and their dependencies from config/options.
func BuildHTTPServers(ctx context.Context, opts *RunHTTPServersOptions) (*HTTPServers, error) {
	deps, err := BuildDependencies(ctx, opts)
	if err != nil {
		return nil, err
	}
	cfg, log := opts.Config, opts.Logger

	handlers := controller.NewHandlers(deps.Users, deps.Products, log)
	servers := &HTTPServers{
		Public:       NewPublicAPIServer(cfg, handlers, deps.Gate, deps.Metrics, log),
		Dependencies: deps,
	}
	if cfg.Management.Enabled {
		servers.Management = NewManagementServer(cfg.Management, cfg.Service.Name, deps.Health, deps.Metrics, deps.Gate, log)
	}
	return servers, nil
}

// RunHTTPServers starts the public server and (optionally) the management server, and blocks
// until ctx is cancelled or one of them fails.
func RunHTTPServers(ctx context.Context, servers *HTTPServers, opts *RunHTTPServersOptions) error {
	if servers == nil || servers.Public == nil {
		return errors.New("servers and public server are required")
	}
	if opts.Logger == nil {
		return errors.New("logger is required")
	}
	if opts.Config == nil {
		return errors.New("config is required")
	}

	versionInfo := version.Current(opts.Config.Service.Name)
	opts.Logger.Info("application version metadata",
		"service", versionInfo.Service,
		"version", versionInfo.Version,
		"commit", versionInfo.Commit,
		"build_time", versionInfo.BuildTime,
	)

	tracerProvider, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    versionInfo.Service,
		ServiceVersion: versionInfo.Version,
		Environment:    normalizeEnvironment(opts.Config.Service.Environment),
		Endpoint:       opts.Config.Observability.TracingEndpoint,
		SampleRate:     opts.Config.Observability.TracingSampleRate,
		Enabled:        opts.Config.Observability.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("initialize tracing provider: %w", err)
	}
	defer shutdownTracerProvider(tracerProvider, opts.Logger)

	if err := runStartupHooks(ctx, opts); err != nil {
		return err
	}
	defer func() {
		if shutdownErr := runShutdownHooks(opts, servers.Dependencies); shutdownErr != nil {
			opts.Logger.Error("shutdown hooks completed with errors", "error", shutdownErr)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverCount := 1
	if servers.Management != nil {
		serverCount = 2
	}

	errCh := make(chan error, serverCount)
	go func() { errCh <- servers.Public.Start(runCtx) }()
	if servers.Management != nil {
		go func() { errCh <- servers.Management.Start(runCtx) }()
	}

	var firstErr error
	for idx := 0; idx < serverCount; idx++ {
		currentErr := <-errCh
		if currentErr != nil && firstErr == nil {
			firstErr = currentErr
			cancel()
		}
	}
	return firstErr
}

func shutdownTracerProvider(provider *tracing.TracerProvider, log logger.Logger) {
	if provider == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown tracing provider", "error", err)
	}
}

func normalizeEnvironment(env string) string {
	trimmed := strings.TrimSpace(env)
	if trimmed == "" {
		return version.Unknown
	}
	return trimmed
}

func runStartupHooks(ctx context.Context, opts *RunHTTPServersOptions) error {
	for _, hook := range opts.StartupHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		opts.Logger.Info("startup hook start", "hook", name)
		if err := hook.Fn(ctx); err != nil {
			opts.Logger.Error("startup hook failed", "hook", name, "error", err)
			return fmt.Errorf("startup hook %q failed: %w", name, err)
		}
		opts.Logger.Info("startup hook complete", "hook", name)
	}
	return nil
}

// runShutdownHooks runs the caller's hooks, then closes the dependencies.
func runShutdownHooks(opts *RunHTTPServersOptions, deps *Dependencies) error {
	timeout := opts.ShutdownHookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var errs []error
	for _, hook := range opts.ShutdownHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		opts.Logger.Info("shutdown hook start", "hook", name)

		hookCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := hook.Fn(hookCtx)
		cancel()

		if err != nil {
			opts.Logger.Error("shutdown hook failed", "hook", name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %q failed: %w", name, err))
			continue
		}
		opts.Logger.Info("shutdown hook complete", "hook", name)
	}

	if deps != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func hookName(hook LifecycleHook) string {
	if name := strings.TrimSpace(hook.Name); name != "" {
		return name
	}
	return "unnamed"
}

// RunHTTPServersWithSignals runs servers until SIGINT or SIGTERM.
func RunHTTPServersWithSignals(servers *HTTPServers, opts *RunHTTPServersOptions, signals ...os.Signal) error {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()
	return RunHTTPServers(ctx, servers, opts)
}
