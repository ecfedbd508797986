// Package server runs the public API and management HTTP servers with graceful startup and shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nimburion/docstore/pkg/observability/logger"
)

// ShutdownTimeout bounds how long in-flight requests may run once shutdown starts.
const ShutdownTimeout = 30 * time.Second

// Server wraps http.Server with configurable timeouts and graceful lifecycle management.
// It supports graceful startup, shutdown with timeout, and context cancellation.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     logger.Logger
	config     Config

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// Config holds configuration for the HTTP server.
type Config struct {
	// Port 0 picks a free port; Addr reports it once the server listens.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new Server instance with the provided configuration.
func NewServer(cfg Config, handler http.Handler, log logger.Logger) *Server {
	return &Server{
		handler: handler,
		logger:  log,
		config:  cfg,
		ready:   make(chan struct{}),
	}
}

// Start listens on the configured port and serves until ctx is cancelled or serving fails.
// Cancelling ctx triggers Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	httpServer := s.httpServer
	close(s.ready)
	s.mu.Unlock()

	s.logger.Info("starting server", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Ready is closed once the server listens.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listening address, or an empty string before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits up to ShutdownTimeout for in-flight requests.
// Calling it on a server that never started is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}

	addr := s.Addr()
	s.logger.Info("shutting down server", "addr", addr)

	shutdownCtx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server shutdown complete", "addr", addr)
	return nil
}
