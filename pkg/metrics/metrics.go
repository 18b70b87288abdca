// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for generation and extraction counters.
const (
	OutcomeSuccess        = "success"
	OutcomePartial        = "partial"
	OutcomeValidation     = "validation_error"
	OutcomeNotFound       = "not_found"
	OutcomeConflict       = "conflict"
	OutcomeCredential     = "credential_error"
	OutcomeCatalog        = "catalog_error"
	OutcomePromptTooLarge = "prompt_too_large"
	OutcomeTimeout        = "timeout"
	OutcomeTransport      = "transport_error"
	OutcomeModelOutput    = "model_output_invalid"
	OutcomeInternal       = "internal_error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "t2sql_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "t2sql_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	generationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "t2sql_generation_total",
			Help: "SQL generation requests by outcome.",
		},
		[]string{"outcome"},
	)

	generationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "t2sql_generation_duration_seconds",
			Help:    "End-to-end SQL generation latency, including the model call.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	extractionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "t2sql_extraction_total",
			Help: "Schema extractions by outcome.",
		},
		[]string{"outcome"},
	)

	extractionSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "t2sql_extraction_skipped_total",
			Help: "Catalog items skipped during extraction, by level.",
		},
		[]string{"level"},
	)

	extractionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "t2sql_extraction_duration_seconds",
			Help:    "Schema extraction latency.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	mcpToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "t2sql_mcp_tool_calls_total",
			Help: "MCP tool calls by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		generationTotal,
		generationDurationSeconds,
		extractionTotal,
		extractionSkippedTotal,
		extractionDurationSeconds,
		mcpToolCallsTotal,
	)
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route, status string, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}

// ObserveGeneration records one generation attempt.
func ObserveGeneration(outcome string, elapsed time.Duration) {
	generationTotal.WithLabelValues(outcome).Inc()
	generationDurationSeconds.Observe(elapsed.Seconds())
}

// ObserveExtraction records one extraction and its per-level skip counts.
func ObserveExtraction(outcome string, skipped map[string]int, elapsed time.Duration) {
	extractionTotal.WithLabelValues(outcome).Inc()
	for level, n := range skipped {
		if n > 0 {
			extractionSkippedTotal.WithLabelValues(level).Add(float64(n))
		}
	}
	extractionDurationSeconds.Observe(elapsed.Seconds())
}

// ObserveMCPToolCall records one MCP tool call. outcome is "success", "tool_error" or "error".
func ObserveMCPToolCall(tool, outcome string) {
	mcpToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}
