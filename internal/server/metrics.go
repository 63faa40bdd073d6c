package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.trai.ch/sompack/internal/app"
)

// newPrometheusHandler builds a scrape handler over a private registry so
// the management server does not inherit unrelated process collectors
// registered elsewhere.
func newPrometheusHandler(application *app.App) http.Handler {
	registry := prometheus.NewRegistry()

	gauge := func(name, help string, fn func() float64) {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sompack",
			Name:      name,
			Help:      help,
		}, fn))
	}

	gauge("loaded_modules", "Modules currently registered in the dependency graph.", func() float64 {
		return float64(application.Statistics().TotalModules)
	})
	gauge("graph_dependencies", "Edges currently in the dependency graph.", func() float64 {
		return float64(application.Statistics().TotalDependencies)
	})
	gauge("graph_max_depth", "Maximum dependency depth of the loaded graph.", func() float64 {
		return float64(application.Statistics().MaxDependencyDepth)
	})
	gauge("circular_dependencies", "Distinct cycles detected in the loaded graph.", func() float64 {
		return float64(application.Statistics().CircularDependencies)
	})
	gauge("cached_modules", "Module records held in the LRU cache.", func() float64 {
		return float64(application.Budget().CachedModules)
	})
	gauge("memory_reserved_bytes", "Approximate bytes reserved against the memory ceiling.", func() float64 {
		return float64(application.Budget().MemoryBytes)
	})
	gauge("open_handles", "File handles charged against the budget.", func() float64 {
		return float64(application.Budget().OpenHandles)
	})
	gauge("open_circuit_breakers", "Circuit breakers currently not closed.", func() float64 {
		open := 0
		for _, state := range application.BreakerStates() {
			if state != "closed" {
				open++
			}
		}
		return float64(open)
	})

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
