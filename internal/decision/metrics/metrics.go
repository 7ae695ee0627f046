// Package metrics provides observability for the decision engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks decision outcomes and evaluation latency.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	RiskLevels       *prometheus.CounterVec
	EvaluateDuration prometheus.Histogram
}

// New creates a Metrics instance with all decision metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_decisions_total",
			Help: "Total verification decisions by outcome",
		}, []string{"outcome"}),
		RiskLevels: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_decision_risk_levels_total",
			Help: "Total verification decisions by risk level",
		}, []string{"risk_level"}),
		EvaluateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veridoc_decision_evaluate_duration_seconds",
			Help:    "Duration of decision engine evaluations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// RecordDecision counts one decision outcome and its risk level.
func (m *Metrics) RecordDecision(passed bool, riskLevel string) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.Decisions.WithLabelValues(outcome).Inc()
	m.RiskLevels.WithLabelValues(riskLevel).Inc()
}

// ObserveEvaluate records the duration of one evaluation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveEvaluate(start time.Time) {
	m.EvaluateDuration.Observe(time.Since(start).Seconds())
}
