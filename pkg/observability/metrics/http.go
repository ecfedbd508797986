package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks request latency, totals and in-flight requests.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	inFlight prometheus.Gauge
}

func newHTTPMetrics(namespace string) *HTTPMetrics {
	return &HTTPMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
	}
}

func (m *HTTPMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.duration, m.total, m.inFlight}
}

// Record observes one completed request.
func (m *HTTPMetrics) Record(method, path string, status int, duration time.Duration) {
	s := strconv.Itoa(status)
	m.duration.WithLabelValues(method, path, s).Observe(duration.Seconds())
	m.total.WithLabelValues(method, path, s).Inc()
}

func (m *HTTPMetrics) IncInFlight() { m.inFlight.Inc() }
func (m *HTTPMetrics) DecInFlight() { m.inFlight.Dec() }
