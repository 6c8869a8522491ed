// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriter_evaluations_completed_total",
			Help: "Total number of loan evaluations completed, by decision",
		},
		[]string{"decision"},
	)

	EvaluationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriter_evaluations_failed_total",
			Help: "Total number of loan evaluations that failed before producing a decision",
		},
		[]string{"error_code"},
	)

	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "underwriter_evaluation_duration_seconds",
			Help: "Duration of the full evaluation pipeline in seconds",
		},
		[]string{"decision"},
	)

	EvaluationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "underwriter_evaluations_active",
			Help: "Number of evaluations currently in flight",
		},
	)

	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriter_oracle_calls_total",
			Help: "Total number of compliance oracle calls, by outcome",
		},
		[]string{"status"},
	)

	OracleCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "underwriter_oracle_call_duration_seconds",
			Help: "Duration of compliance oracle calls in seconds",
		},
	)

	PolicyReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriter_policy_reloads_total",
			Help: "Total number of policy document reloads, by outcome",
		},
		[]string{"status"},
	)
)
