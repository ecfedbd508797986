package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimburion/docstore/pkg/observability/logger"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("redis adapter is closed")

// Adapter provides Redis connectivity for counters.
type Adapter struct {
	client  *redis.Client
	logger  logger.Logger
	timeout time.Duration
	mu      sync.RWMutex
	closed  bool
}

// Config holds Redis connection configuration
type Config struct {
	URL              string
	MaxConns         int
	OperationTimeout time.Duration
}

// Cosa fa: apre un client Redis dal URL e verifica la connessione con PING.
// Cosa NON fa: non configura cluster o sentinel.
// Esempio minimo: adapter, err := redis.NewAdapter(redis.Config{URL: "redis://localhost:6379/0"}, log)
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = cfg.OperationTimeout
	opts.WriteTimeout = cfg.OperationTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("Redis connection established",
		"max_conns", opts.PoolSize,
		"operation_timeout", cfg.OperationTimeout,
	)

	return &Adapter{
		client:  client,
		logger:  log,
		timeout: cfg.OperationTimeout,
	}, nil
}

// Client returns the underlying *redis.Client.
func (a *Adapter) Client() *redis.Client {
	return a.client
}

func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	return a.client.Ping(ctx).Err()
}

// Incr atomically increments key by 1, starting from 0 when absent.
func (a *Adapter) Incr(ctx context.Context, key string) (int64, error) {
	if err := a.ensureOpen(); err != nil {
		return 0, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	val, err := a.client.Incr(opCtx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment key %s: %w", key, err)
	}
	return val, nil
}

// Current returns the integer stored at key, or 0 when absent.
func (a *Adapter) Current(ctx context.Context, key string) (int64, error) {
	if err := a.ensureOpen(); err != nil {
		return 0, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	val, err := a.client.Get(opCtx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return val, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("Redis health check failed", "error", err)
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the client. Calling it more than once is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if err := a.client.Close(); err != nil {
		a.logger.Error("failed to close Redis connection", "error", err)
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	a.logger.Info("Redis connection closed")
	return nil
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
