// Package tracing starts an OpenTelemetry server span per HTTP request.
package tracing

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/docstore/pkg/middleware/requestid"
)

// Config holds configuration for the tracing middleware.
type Config struct {
	// TracerName identifies the tracer (e.g., "http-server")
	TracerName string

	// ExcludedPathPrefixes disables tracing for matching path prefixes.
	ExcludedPathPrefixes []string
}

// Tracing creates middleware that adds OpenTelemetry distributed tracing to HTTP requests.
// It propagates trace context from incoming headers and names spans after the route template.
func Tracing(cfg Config) gin.HandlerFunc {
	if cfg.TracerName == "" {
		cfg.TracerName = "http-server"
	}
	tracer := otel.Tracer(cfg.TracerName)

	return func(c *gin.Context) {
		req := c.Request
		for _, prefix := range cfg.ExcludedPathPrefixes {
			if prefix != "" && strings.HasPrefix(req.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(ctx, spanName(c), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.target", req.URL.Path),
			attribute.String("http.route", c.FullPath()),
			attribute.String("http.user_agent", req.UserAgent()),
		)
		if id := requestid.GetRequestID(req.Context()); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}

		c.Request = req.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			span.RecordError(errs.Last())
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

func spanName(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	return fmt.Sprintf("HTTP %s %s", c.Request.Method, route)
}
