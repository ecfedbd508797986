// Package timeout bounds how long a request may spend in the handlers.
package timeout

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Config configures request timeout middleware behavior.
type Config struct {
	Enabled              bool
	Default              time.Duration
	ExcludedPathPrefixes []string
}

// DefaultConfig returns default timeout middleware behavior.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Default: 15 * time.Second,
	}
}

// Middleware attaches a deadline to the request context. Handlers observe it through the
// store calls they make, which fail with a timeout once it passes.
func Middleware(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || cfg.Default <= 0 || excluded(c.Request.URL.Path, cfg.ExcludedPathPrefixes) {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.Default)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
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
