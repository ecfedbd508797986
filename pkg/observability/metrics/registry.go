// Package metrics exposes Prometheus collectors for HTTP traffic, store operations and identifier allocation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a Prometheus registry plus the service collectors registered on it.
type Registry struct {
	registry    *prometheus.Registry
	HTTP        *HTTPMetrics
	Store       *StoreMetrics
	Identifiers *IdentifierMetrics
}

// NewRegistry creates a registry with the service collectors and the Go runtime collectors.
// namespace prefixes every service metric; it may be empty.
func NewRegistry(namespace string) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry:    reg,
		HTTP:        newHTTPMetrics(namespace),
		Store:       newStoreMetrics(namespace),
		Identifiers: newIdentifierMetrics(namespace),
	}
	reg.MustRegister(r.HTTP.collectors()...)
	reg.MustRegister(r.Store.collectors()...)
	reg.MustRegister(r.Identifiers.collectors()...)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return r
}

// Register adds a custom collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// Handler serves the metrics in Prometheus exposition format. Mount it at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
