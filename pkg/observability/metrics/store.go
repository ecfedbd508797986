package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics tracks repository operations by method, collection and outcome.
// The outcome label is "ok" or a failure kind such as "not_found".
type StoreMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

func newStoreMetrics(namespace string) *StoreMetrics {
	return &StoreMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "operation_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "collection"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "operations_total",
			Help:      "Repository operations by outcome",
		}, []string{"method", "collection", "outcome"}),
	}
}

func (m *StoreMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.duration, m.total}
}

// ObserveOperation records one repository call.
func (m *StoreMetrics) ObserveOperation(method, collection, outcome string, duration time.Duration) {
	m.duration.WithLabelValues(method, collection).Observe(duration.Seconds())
	m.total.WithLabelValues(method, collection, outcome).Inc()
}

// IdentifierMetrics counts identifier allocations per strategy and outcome.
type IdentifierMetrics struct {
	total *prometheus.CounterVec
}

func newIdentifierMetrics(namespace string) *IdentifierMetrics {
	return &IdentifierMetrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identifier",
			Name:      "allocations_total",
			Help:      "Identifier allocations by entity, strategy and outcome",
		}, []string{"entity", "strategy", "outcome"}),
	}
}

func (m *IdentifierMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.total}
}

// ObserveAllocation records one identifier allocation attempt.
func (m *IdentifierMetrics) ObserveAllocation(entity, strategy, outcome string) {
	m.total.WithLabelValues(entity, strategy, outcome).Inc()
}
