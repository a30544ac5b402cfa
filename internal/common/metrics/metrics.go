// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StrategyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_strategy_attempts_total",
			Help: "Total number of strategy executions by final outcome",
		},
		[]string{"strategy", "outcome"},
	)

	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_strategy_duration_seconds",
			Help:    "Duration of a strategy execution including retries and polling",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 90},
		},
		[]string{"strategy"},
	)

	CascadeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_cascade_fallbacks_total",
			Help: "Total number of answers served by a strategy other than the first",
		},
	)

	CascadeExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_cascade_exhausted_total",
			Help: "Total number of queries for which no strategy succeeded",
		},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_retry_attempts_total",
			Help: "Total number of retries of transient failures",
		},
		[]string{"strategy"},
	)

	JobPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_job_polls_total",
			Help: "Total number of job status checks by observed status",
		},
		[]string{"status"},
	)

	CitationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_citation_lookups_total",
			Help: "Citation name lookups by result",
		},
		[]string{"result"},
	)

	NotesOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_notes_operations_total",
			Help: "Note store operations by kind and status",
		},
		[]string{"operation", "status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Inbound HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "Inbound HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
