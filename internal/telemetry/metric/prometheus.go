package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "channel_manager"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Hierarchy metrics
	EventsTotal    *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
	ImportSeconds  *prometheus.HistogramVec
	ImportFailures *prometheus.CounterVec
}

// NewRegistry creates a registry with the application metrics and the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Hierarchy events by kind and category",
		}, []string{"event", "category"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Daily channel cache lookups by result",
		}, []string{"result"}),
		ImportSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_import_seconds",
			Help:      "Latency of remote channel imports",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"level"}),
		ImportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_import_failures_total",
			Help:      "Remote channel imports that failed, by level",
		}, []string{"level"}),
	}
	reg.MustRegister(r.EventsTotal, r.CacheLookups, r.ImportSeconds, r.ImportFailures)
	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler serves the global registry in Prometheus format.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler serves r in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registerer exposes the registry to components that own their collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the registry for in-process reporting.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordEvent counts one hierarchy event.
func (r *Registry) RecordEvent(event, category string) {
	if category == "" {
		category = "none"
	}
	r.EventsTotal.WithLabelValues(event, category).Inc()
}

// IncCacheHit counts a daily channel served from the cache.
func (r *Registry) IncCacheHit() {
	r.CacheLookups.WithLabelValues("hit").Inc()
}

// IncCacheMiss counts a daily channel that had to be imported.
func (r *Registry) IncCacheMiss() {
	r.CacheLookups.WithLabelValues("miss").Inc()
}

// ObserveImport records the latency of a remote import at level
// (root, category, actor, daily).
func (r *Registry) ObserveImport(level string, seconds float64) {
	r.ImportSeconds.WithLabelValues(level).Observe(seconds)
}

// IncImportFailure counts a failed remote import at level.
func (r *Registry) IncImportFailure(level string) {
	r.ImportFailures.WithLabelValues(level).Inc()
}
