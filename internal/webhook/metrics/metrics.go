// Package metrics exposes Prometheus metrics for webhook delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the webhook delivery metric instruments.
type Metrics struct {
	Deliveries *prometheus.CounterVec
	Attempts   prometheus.Histogram
}

// New registers and returns the webhook metrics.
func New() *Metrics {
	return &Metrics{
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_webhook_deliveries_total",
			Help: "Webhook delivery outcomes by final state.",
		}, []string{"outcome"}),
		Attempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veridoc_webhook_delivery_attempts",
			Help:    "Attempts used per delivered webhook.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
	}
}

// RecordDelivery counts one finished delivery run.
func (m *Metrics) RecordDelivery(outcome string, attempts int) {
	m.Deliveries.WithLabelValues(outcome).Inc()
	m.Attempts.Observe(float64(attempts))
}
