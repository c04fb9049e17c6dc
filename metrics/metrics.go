// Package metrics exposes Prometheus instrumentation for the fetch engine
// and the thinking orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal tracks fetch attempts by method and outcome (success/failure).
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilio_fetches_total",
			Help: "Total number of fetches",
		},
		[]string{"method", "outcome"},
	)

	// FetchErrorsTotal tracks fetch failures by classified error kind.
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilio_fetch_errors_total",
			Help: "Total number of fetch failures by error kind",
		},
		[]string{"kind"},
	)

	// FetchLatency tracks end-to-end fetch latency including retries.
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilio_fetch_latency_seconds",
			Help:    "Fetch latency in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// BreakerTransitionsTotal tracks circuit breaker state changes.
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilio_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"resource", "to"},
	)

	// BreakerRejectionsTotal tracks fetches rejected by an open breaker.
	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilio_breaker_rejections_total",
			Help: "Total number of fetches rejected by an open circuit breaker",
		},
		[]string{"resource"},
	)

	// BlacklistSize tracks the current number of blacklisted resources.
	BlacklistSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resilio_blacklist_size",
			Help: "Current number of blacklisted resources",
		},
	)

	// ThinkingRunsTotal tracks orchestrator runs by terminal state.
	ThinkingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilio_thinking_runs_total",
			Help: "Total number of thinking runs by terminal state",
		},
		[]string{"state"},
	)

	// StepsTotal tracks executed steps by kind and outcome.
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilio_thinking_steps_total",
			Help: "Total number of thinking steps by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// StepDuration tracks step execution time by kind.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilio_thinking_step_duration_seconds",
			Help:    "Step execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)
