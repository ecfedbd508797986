// Package cli builds the docstore command tree: serve, version, healthcheck, config and id.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/docstore/pkg/config"
	"github.com/nimburion/docstore/pkg/health"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/server"
	mongostore "github.com/nimburion/docstore/pkg/store/mongodb"
	redisstore "github.com/nimburion/docstore/pkg/store/redis"
	"github.com/nimburion/docstore/pkg/version"
)

// ServiceCommandOptions defines the command tree and the callbacks behind it.
// Nil callbacks fall back to the implementations in this package.
type ServiceCommandOptions struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	RunServer         func(ctx context.Context, cfg *config.Config, log logger.Logger) error
	CheckDependencies func(ctx context.Context, cfg *config.Config, log logger.Logger) error
	NextID            func(ctx context.Context, cfg *config.Config, log logger.Logger, entity string) (int64, error)
}

// NewServiceCommand creates the CLI with serve, version, healthcheck, config and id subcommands.
// Running the root command without a subcommand serves.
func NewServiceCommand(opts ServiceCommandOptions) *cobra.Command {
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "APP"
	}
	if opts.RunServer == nil {
		opts.RunServer = RunServer
	}
	if opts.CheckDependencies == nil {
		opts.CheckDependencies = CheckDependencies
	}
	if opts.NextID == nil {
		opts.NextID = NextID
	}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath string
	var secretFilePath string
	var serviceNameOverride string
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&secretFilePath, "secret-file", "", "path to secrets file (sets <PREFIX>_SECRETS_FILE)")
	rootCmd.PersistentFlags().StringVar(&serviceNameOverride, "service-name", "", "service name override")
	config.RegisterFlags(rootCmd.PersistentFlags())

	loadConfig := func(flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
		return LoadConfigAndLogger(cfgPath, opts.EnvPrefix, secretFilePath, flags, opts.Name, serviceNameOverride)
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(opts.Name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the public API and management servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return opts.RunServer(cmd.Context(), cfg, log)
		},
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = serveCmd.RunE

	rootCmd.AddCommand(&cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to dependencies (document store, counter backend)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return opts.CheckDependencies(cmd.Context(), cfg, log)
		},
	})

	rootCmd.AddCommand(newConfigCommand(opts, &cfgPath, &secretFilePath, &serviceNameOverride))
	rootCmd.AddCommand(newIDCommand(opts, loadConfig))

	return rootCmd
}

func newConfigCommand(opts ServiceCommandOptions, cfgPath, secretFilePath, serviceNameOverride *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, _, err := loadEffectiveConfig(*cfgPath, opts.EnvPrefix, *secretFilePath, cmd.Flags(), opts.Name, *serviceNameOverride); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loader, secrets, err := loadEffectiveConfig(*cfgPath, opts.EnvPrefix, *secretFilePath, cmd.Flags(), opts.Name, *serviceNameOverride)
			if err != nil {
				return err
			}
			settings := setServiceNameSetting(loader.AllSettings(), cfg.Service.Name)
			if !showSecrets {
				settings = config.RedactCredentials(config.Redact(settings, secrets))
			}
			formatted, err := formatSettings(settings)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	configCmd.AddCommand(showCmd)

	return configCmd
}

func newIDCommand(opts ServiceCommandOptions, loadConfig func(*pflag.FlagSet) (*config.Config, logger.Logger, error)) *cobra.Command {
	idCmd := &cobra.Command{
		Use:   "id",
		Short: "Identifier commands",
	}

	var entity string
	var count int
	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Allocate identifiers for an entity with its configured strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(entity) == "" {
				return errors.New("--entity is required")
			}
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			cfg, log, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				id, err := opts.NextID(cmd.Context(), cfg, log, entity)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	nextCmd.Flags().StringVar(&entity, "entity", "", "entity whose identifier binding to use (e.g. users)")
	nextCmd.Flags().IntVarP(&count, "count", "n", 1, "number of identifiers to allocate")
	idCmd.AddCommand(nextCmd)
	return idCmd
}

// RunServer builds the servers from cfg and runs them until SIGINT or SIGTERM.
func RunServer(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &server.RunHTTPServersOptions{Config: cfg, Logger: log}
	servers, err := server.BuildHTTPServers(ctx, opts)
	if err != nil {
		return err
	}
	return server.RunHTTPServers(ctx, servers, opts)
}

// CheckDependencies pings the document store and, when configured, the Redis counter backend.
func CheckDependencies(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	registry := health.NewRegistry()

	mongoAdapter, err := mongostore.NewAdapter(mongostore.Config{
		URL:              cfg.Database.URL,
		Database:         cfg.Database.DatabaseName,
		ConnectTimeout:   cfg.Database.ConnectTimeout,
		OperationTimeout: cfg.Database.OperationTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	defer mongoAdapter.Close()
	registry.Register(health.NewStoreChecker(mongoAdapter))

	if cfg.Counter.Backend == config.CounterBackendRedis {
		redisAdapter, err := redisstore.NewAdapter(redisstore.Config{
			URL:              cfg.Counter.RedisURL,
			OperationTimeout: cfg.Counter.RedisOperationTimeout,
		}, log)
		if err != nil {
			return fmt.Errorf("counter store: %w", err)
		}
		defer redisAdapter.Close()
		registry.Register(health.NewCounterChecker(config.CounterBackendRedis, redisAdapter))
	}

	result := registry.Check(ctx)
	for _, check := range result.Checks {
		log.Info("dependency check", "name", check.Name, "status", string(check.Status), "error", check.Error)
	}
	if !result.IsHealthy() {
		return fmt.Errorf("dependencies are %s", result.Status)
	}
	return nil
}

// NextID allocates one identifier for entity using the configured binding.
func NextID(ctx context.Context, cfg *config.Config, log logger.Logger, entity string) (int64, error) {
	deps, err := server.BuildDependencies(ctx, &server.RunHTTPServersOptions{Config: cfg, Logger: log})
	if err != nil {
		return 0, err
	}
	defer deps.Close(context.Background())
	return deps.Identifiers.Next(ctx, entity)
}

// LoadConfigAndLogger loads configuration (secrets included) and builds the zap logger it describes.
func LoadConfigAndLogger(
	cfgPath,
	envPrefix,
	secretFilePath string,
	flags *pflag.FlagSet,
	defaultServiceName string,
	serviceNameOverride string,
) (*config.Config, logger.Logger, error) {
	cfg, _, _, err := loadEffectiveConfig(cfgPath, envPrefix, secretFilePath, flags, defaultServiceName, serviceNameOverride)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(strings.ToLower(cfg.Observability.LogLevel)),
		Format: logger.LogFormat(strings.ToLower(cfg.Observability.LogFormat)),
		Fields: map[string]string{"service": cfg.Service.Name},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logConfigIfDebug(log, cfg)
	return cfg, log, nil
}

func loadEffectiveConfig(
	cfgPath,
	envPrefix,
	secretFilePath string,
	flags *pflag.FlagSet,
	defaultServiceName string,
	serviceNameOverride string,
) (*config.Config, *config.ViperLoader, map[string]interface{}, error) {
	if err := applySecretFileFlag(envPrefix, secretFilePath); err != nil {
		return nil, nil, nil, err
	}
	loader := config.NewViperLoader(cfgPath, envPrefix).
		WithServiceNameDefault(defaultServiceName).
		WithFlags(flags)
	cfg, secrets, err := loader.LoadWithSecrets()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, defaultServiceName, serviceNameOverride)
	return cfg, loader, secrets, nil
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(resolveEnvPrefix(envPrefix)+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func formatSettings(settings map[string]interface{}) (string, error) {
	if settings == nil {
		return "{}\n", nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// Execute runs the command and exits with appropriate code.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logConfigIfDebug(log logger.Logger, cfg *config.Config) {
	if !strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		return
	}
	log.Debug("effective configuration", "config", fmt.Sprintf("%+v", cfg))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return "APP"
	}
	return strings.ToUpper(trimmed)
}

func resolveServiceNameValue(currentConfigName, defaultServiceName, serviceNameOverride string) string {
	if override := strings.TrimSpace(serviceNameOverride); override != "" {
		return override
	}
	if configured := strings.TrimSpace(currentConfigName); configured != "" {
		return configured
	}
	if fallback := strings.TrimSpace(defaultServiceName); fallback != "" {
		return fallback
	}
	return "docstore"
}

func setServiceNameSetting(settings map[string]interface{}, serviceName string) map[string]interface{} {
	if settings == nil {
		settings = map[string]interface{}{}
	}
	service, ok := settings["service"].(map[string]interface{})
	if !ok || service == nil {
		service = map[string]interface{}{}
	}
	service["name"] = serviceName
	settings["service"] = service
	return settings
}
