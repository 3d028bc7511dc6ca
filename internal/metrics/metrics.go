// Package metrics holds the Prometheus collectors of the module build stage.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheLookupCounter counts build cache lookups by result ("hit" or "miss").
	CacheLookupCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modmake",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Build cache lookups by result",
		}, []string{"result"})
	// BuildDurationHistogram observes the time from build start to build
	// end of modules built with profiling enabled.
	BuildDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modmake",
			Subsystem: "make",
			Name:      "module_build_duration_seconds",
			Help:      "Bucketed histogram of module build time",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		})
	// ModuleCounter counts modules integrated into a module graph.
	ModuleCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modmake",
			Subsystem: "make",
			Name:      "modules_total",
			Help:      "Modules added to the module graph",
		})
	// DiagnosticCounter counts diagnostics by severity.
	DiagnosticCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modmake",
			Subsystem: "make",
			Name:      "diagnostics_total",
			Help:      "Diagnostics raised while building modules",
		}, []string{"severity"})
	// CompilationDurationHistogram observes whole compilations.
	CompilationDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modmake",
			Subsystem: "compiler",
			Name:      "compilation_duration_seconds",
			Help:      "Bucketed histogram of compilation time",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"status"})
)

// Make groups the collectors written while folding build results into a
// module graph.
type Make struct {
	Modules       prometheus.Counter
	Diagnostics   *prometheus.CounterVec
	BuildDuration prometheus.Observer
}

// DefaultMake returns the collectors of this package.
func DefaultMake() *Make {
	return &Make{
		Modules:       ModuleCounter,
		Diagnostics:   DiagnosticCounter,
		BuildDuration: BuildDurationHistogram,
	}
}

// CacheHits is the hit series of CacheLookupCounter.
func CacheHits() prometheus.Counter { return CacheLookupCounter.WithLabelValues("hit") }

// CacheMisses is the miss series of CacheLookupCounter.
func CacheMisses() prometheus.Counter { return CacheLookupCounter.WithLabelValues("miss") }

// InitMetrics registers all metrics in this package.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(CacheLookupCounter)
	registry.MustRegister(BuildDurationHistogram)
	registry.MustRegister(ModuleCounter)
	registry.MustRegister(DiagnosticCounter)
	registry.MustRegister(CompilationDurationHistogram)
}

// NewRegistry returns a registry carrying the process collectors and the
// metrics of this package.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	InitMetrics(registry)
	return registry
}

// Handler serves registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
