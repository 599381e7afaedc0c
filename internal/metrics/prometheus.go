package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DietInterpretationsTotal counts structured responses by provenance
	// (parsed or fallback).
	DietInterpretationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthmate",
			Subsystem: "diet",
			Name:      "interpretations_total",
			Help:      "Structured suggestion responses by provenance",
		},
		[]string{"source"},
	)

	// CompletionRequestsTotal counts completion calls by feature and outcome.
	CompletionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthmate",
			Subsystem: "completion",
			Name:      "requests_total",
			Help:      "Completion service calls by agent and outcome",
		},
		[]string{"agent", "outcome"},
	)

	// CompletionDuration tracks completion call latency in seconds.
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthmate",
			Subsystem: "completion",
			Name:      "request_duration_seconds",
			Help:      "Duration of completion service calls in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"agent"},
	)

	// HTTPRequestsTotal tracks inbound API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthmate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Inbound API requests by route and status code",
		},
		[]string{"route", "status_code"},
	)

	// OperationsRejectedTotal counts operations refused because the user's slot was busy.
	OperationsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthmate",
			Subsystem: "session",
			Name:      "operations_rejected_total",
			Help:      "Operations rejected because another was in flight",
		},
		[]string{"kind"},
	)
)

// ObserveCompletion records one completion call.
func ObserveCompletion(agent string, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	CompletionRequestsTotal.WithLabelValues(agent, outcome).Inc()
	CompletionDuration.WithLabelValues(agent).Observe(seconds)
}
