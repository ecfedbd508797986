// Package logging writes one access log entry per HTTP request.
package logging

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/observability/logger"
)

// Log field name constants
const (
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRoute      = "route"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldRemoteAddr = "remote_addr"
	FieldUserAgent  = "http_user_agent"
)

// Config configures request logging middleware behavior.
type Config struct {
	Enabled              bool
	ExcludedPathPrefixes []string
}

// DefaultConfig returns default request logging behavior.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Logging creates middleware with default configuration.
func Logging(log logger.Logger) gin.HandlerFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates request logging middleware with custom configuration.
// Server errors are logged at error level, client errors at warn, everything else at info.
func WithConfig(log logger.Logger, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !cfg.Enabled || excluded(path, cfg.ExcludedPathPrefixes) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []any{
			FieldMethod, c.Request.Method,
			FieldPath, path,
			FieldRoute, c.FullPath(),
			FieldStatus, status,
			FieldDurationMS, duration.Milliseconds(),
			FieldRemoteAddr, c.ClientIP(),
			FieldUserAgent, c.Request.UserAgent(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields = append(fields, FieldError, errs.String())
		}

		entry := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			entry.Error("request failed", fields...)
		case status >= 400:
			entry.Warn("request completed", fields...)
		default:
			entry.Info("request completed", fields...)
		}
	}
}

func excluded(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
