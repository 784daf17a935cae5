// Package metrics registers the Prometheus metrics exported by review4d.
// Metrics register on import; the serve command mounts promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ContextCollections counts collector chain runs by outcome
	// ("success", "error").
	ContextCollections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review4d_context_collections_total",
			Help: "Total collector chain runs.",
		},
		[]string{"status"},
	)

	// PresetExecutions counts preset runs by preset label and outcome
	// ("produced", "declined", "error").
	PresetExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review4d_preset_executions_total",
			Help: "Total path preset executions.",
		},
		[]string{"preset", "outcome"},
	)

	// PostRenderRuns counts post-render actions by label and outcome
	// ("success", "error").
	PostRenderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review4d_post_render_runs_total",
			Help: "Total post-render actions run.",
		},
		[]string{"post_render", "status"},
	)

	// PostRenderDuration observes post-render action latency in seconds.
	PostRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review4d_post_render_duration_seconds",
			Help:    "Post-render action duration in seconds.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"post_render"},
	)

	// RegisteredPlugins tracks the size of each plugin family.
	RegisteredPlugins = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "review4d_registered_plugins",
			Help: "Number of registered plugins per family.",
		},
		[]string{"family"},
	)

	// DescriptorErrors counts plugin-description files skipped during a load
	// pass.
	DescriptorErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review4d_descriptor_errors_total",
			Help: "Total plugin-description files skipped because of errors.",
		},
	)

	// ContextCacheLookups counts server context cache lookups by result
	// ("hit", "miss").
	ContextCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review4d_context_cache_lookups_total",
			Help: "Context cache lookups by result.",
		},
		[]string{"result"},
	)
)
