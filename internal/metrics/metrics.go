// Package metrics holds the Prometheus collectors exported on /metrics.
// promauto registers them with the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeWarning = "warning"
	OutcomeError   = "error"
)

var (
	// PipelineRuns counts selection runs by mode and outcome.
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serendip_pipeline_runs_total",
			Help: "Total number of random selection runs",
		},
		[]string{"mode", "outcome"},
	)

	// PipelineDuration measures a run from settings load to the last navigation.
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serendip_pipeline_duration_seconds",
			Help:    "Duration of random selection runs in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	// Picks counts navigations by view (main, side) and candidate kind.
	Picks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serendip_picks_total",
			Help: "Total number of candidates opened",
		},
		[]string{"view", "kind"},
	)

	// CycleRunning is 1 while the repeating trigger is on.
	CycleRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "serendip_cycle_running",
			Help: "Whether the repeating random trigger is running",
		},
	)

	// IndexedEntities tracks the local graph index size by entity (page, block).
	IndexedEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "serendip_indexed_entities",
			Help: "Number of pages and blocks in the local graph index",
		},
		[]string{"entity"},
	)

	// HTTPRequests counts API requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serendip_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration measures API response time.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serendip_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
