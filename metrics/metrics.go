// Package metrics provides Prometheus collectors for the execution service
// and an HTTP middleware that records request counts and latencies.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// ExecutionBuckets covers interpreter runs from a few milliseconds up to
// well past the default execution timeout.
var ExecutionBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20}

var (
	// ExecutionsTotal counts finished executions by mode and terminal state.
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pohrun_executions_total",
			Help: "Finished executions",
		},
		[]string{"mode", "outcome"},
	)

	// ExecutionDuration records wall-clock execution time in seconds.
	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pohrun_execution_duration_seconds",
			Help:    "Execution duration",
			Buckets: ExecutionBuckets,
		},
		[]string{"mode"},
	)

	// ExecutionsInFlight tracks executions holding a pool slot.
	ExecutionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pohrun_executions_in_flight",
			Help: "Executions currently running",
		},
	)

	// RejectionsTotal counts requests refused before execution, by reason.
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pohrun_rejections_total",
			Help: "Rejected execution requests",
		},
		[]string{"reason"},
	)

	// OutputTruncationsTotal counts streams cut at the output cap.
	OutputTruncationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pohrun_output_truncations_total",
			Help: "Output streams truncated at the cap",
		},
		[]string{"stream"},
	)

	// WorkspaceCleanupFailuresTotal counts workspace directories that could
	// not be removed.
	WorkspaceCleanupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pohrun_workspace_cleanup_failures_total",
			Help: "Workspace removal failures",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pohrun_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pohrun_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		ExecutionsTotal,
		ExecutionDuration,
		ExecutionsInFlight,
		RejectionsTotal,
		OutputTruncationsTotal,
		WorkspaceCleanupFailuresTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
