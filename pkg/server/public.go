package server

import (
	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/config"
	"github.com/nimburion/docstore/pkg/controller"
	"github.com/nimburion/docstore/pkg/middleware/logging"
	"github.com/nimburion/docstore/pkg/middleware/maintenance"
	httpmetrics "github.com/nimburion/docstore/pkg/middleware/metrics"
	"github.com/nimburion/docstore/pkg/middleware/ratelimit"
	"github.com/nimburion/docstore/pkg/middleware/recovery"
	"github.com/nimburion/docstore/pkg/middleware/requestid"
	"github.com/nimburion/docstore/pkg/middleware/requestsize"
	"github.com/nimburion/docstore/pkg/middleware/timeout"
	"github.com/nimburion/docstore/pkg/middleware/tracing"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/observability/metrics"
)

// PublicAPIServer wraps Server for application traffic.
type PublicAPIServer struct {
	*Server
	engine *gin.Engine
}

// NewPublicAPIServer builds the gin engine for the user and product API.
//
// The middleware stack is applied in the following order:
// 1. Request ID - generates/extracts request IDs for correlation
// 2. Tracing - server span named after the route template
// 3. Logging - access log entry per request
// 4. Metrics - records Prometheus metrics for requests
// 5. Recovery - catches panics and returns 500 errors
// 6. Maintenance - answers 503 on every route while the gate is closed
// 7. Rate limit - per-client token bucket, only when http.rate_limit_rps > 0
// 8. Request size - rejects bodies above http.max_request_size
// 9. Timeout - bounds the request context by http.request_timeout
func NewPublicAPIServer(
	cfg *config.Config,
	handlers *controller.Handlers,
	gate *maintenance.Gate,
	metricsRegistry *metrics.Registry,
	log logger.Logger,
) *PublicAPIServer {
	engine := gin.New()
	excluded := cfg.Observability.ExcludedPathPrefixes

	engine.Use(
		requestid.RequestID(),
		tracing.Tracing(tracing.Config{TracerName: cfg.Service.Name, ExcludedPathPrefixes: excluded}),
		logging.WithConfig(log, logging.Config{Enabled: true, ExcludedPathPrefixes: excluded}),
		httpmetrics.Metrics(metricsRegistry.HTTP),
		recovery.Recovery(log),
		gate.Middleware(),
	)
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter := ratelimit.NewTokenBucketLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
		engine.Use(ratelimit.Middleware(limiter, ratelimit.Config{}))
	}
	engine.Use(
		requestsize.Middleware(cfg.HTTP.MaxRequestSize),
		timeout.Middleware(timeout.Config{
			Enabled:              cfg.HTTP.RequestTimeout > 0,
			Default:              cfg.HTTP.RequestTimeout,
			ExcludedPathPrefixes: excluded,
		}),
	)
	handlers.Register(engine)

	return &PublicAPIServer{
		Server: NewServer(Config{
			Port:         cfg.HTTP.Port,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		}, engine, log),
		engine: engine,
	}
}

// Engine returns the gin engine serving the public API.
func (s *PublicAPIServer) Engine() *gin.Engine {
	return s.engine
}
