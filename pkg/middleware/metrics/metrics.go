// Package metrics records Prometheus HTTP metrics per route.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/observability/metrics"
)

// unmatchedRoute labels requests that hit no registered route.
const unmatchedRoute = "unmatched"

// Metrics creates middleware that records request duration, totals and in-flight requests.
// Paths are labelled by route template to keep label cardinality bounded.
func Metrics(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.IncInFlight()
		defer m.DecInFlight()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.Record(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
