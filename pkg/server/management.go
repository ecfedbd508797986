package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/config"
	"github.com/nimburion/docstore/pkg/controller"
	"github.com/nimburion/docstore/pkg/failure"
	"github.com/nimburion/docstore/pkg/health"
	"github.com/nimburion/docstore/pkg/middleware/logging"
	"github.com/nimburion/docstore/pkg/middleware/maintenance"
	"github.com/nimburion/docstore/pkg/middleware/recovery"
	"github.com/nimburion/docstore/pkg/middleware/requestid"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/observability/metrics"
	"github.com/nimburion/docstore/pkg/version"
)

// ManagementServer wraps Server for management and admin traffic on a separate port:
// - /health: Liveness check (always returns 200)
// - /ready: Readiness check (runs the health registry)
// - /metrics: Prometheus metrics endpoint
// - /version: build metadata
// - /maintenance: reads or flips the maintenance gate of the public API
type ManagementServer struct {
	*Server
	engine          *gin.Engine
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
	gate            *maintenance.Gate
	info            version.Info
}

type maintenanceState struct {
	Enabled *bool  `json:"enabled" binding:"required"`
	Message string `json:"message"`
}

// NewManagementServer creates the management server with a lighter middleware stack than the public API.
func NewManagementServer(
	cfg config.ManagementConfig,
	serviceName string,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
	gate *maintenance.Gate,
	log logger.Logger,
) *ManagementServer {
	engine := gin.New()
	engine.Use(
		requestid.RequestID(),
		logging.WithConfig(log, logging.Config{Enabled: true, ExcludedPathPrefixes: []string{"/health", "/metrics"}}),
		recovery.Recovery(log),
	)

	s := &ManagementServer{
		Server: NewServer(Config{
			Port:         cfg.Port,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}, engine, log),
		engine:          engine,
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
		gate:            gate,
		info:            version.Current(serviceName),
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/ready", s.handleReady)
	engine.GET("/metrics", gin.WrapH(metricsRegistry.Handler()))
	engine.GET("/version", s.handleVersion)
	engine.GET("/maintenance", s.handleMaintenance)
	engine.PUT("/maintenance", s.handleSetMaintenance)

	return s
}

// Engine returns the gin engine serving the management endpoints.
func (s *ManagementServer) Engine() *gin.Engine {
	return s.engine
}

func (s *ManagementServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleReady returns 503 unless every registered dependency is healthy.
func (s *ManagementServer) handleReady(c *gin.Context) {
	result := s.healthRegistry.Check(c.Request.Context())
	if !result.IsHealthy() {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *ManagementServer) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, s.info)
}

func (s *ManagementServer) handleMaintenance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": s.gate.Enabled(), "message": s.gate.Message()})
}

func (s *ManagementServer) handleSetMaintenance(c *gin.Context) {
	var state maintenanceState
	if err := c.ShouldBindJSON(&state); err != nil {
		controller.Error(c, failure.Wrap(failure.KindInvalid, err, "body must be {\"enabled\": bool, \"message\": string}"))
		return
	}
	s.gate.Set(*state.Enabled, state.Message)
	s.logger.Warn("maintenance gate changed", "enabled", *state.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": s.gate.Enabled(), "message": s.gate.Message()})
}
