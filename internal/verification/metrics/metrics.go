// Package metrics exposes Prometheus metrics for the verification service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the verification service metric instruments.
type Metrics struct {
	Created        *prometheus.CounterVec
	Uploads        *prometheus.CounterVec
	UploadRejected *prometheus.CounterVec
	RetriesSpawned prometheus.Counter
	RetryExhausted prometheus.Counter
	SubmitDuration prometheus.Histogram
}

// New registers and returns the verification metrics.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_verifications_created_total",
			Help: "Verifications created by type.",
		}, []string{"type"}),
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_uploads_total",
			Help: "Accepted uploads by kind.",
		}, []string{"kind"}),
		UploadRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veridoc_uploads_rejected_total",
			Help: "Rejected uploads by reason.",
		}, []string{"reason"}),
		RetriesSpawned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_retries_spawned_total",
			Help: "Chained retry verifications created.",
		}),
		RetryExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veridoc_retries_exhausted_total",
			Help: "Uploads or submissions rejected for exhausted retries.",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veridoc_submit_duration_seconds",
			Help:    "End-to-end decision latency on submission.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordCreated(vType string)          { m.Created.WithLabelValues(vType).Inc() }
func (m *Metrics) RecordUpload(kind string)            { m.Uploads.WithLabelValues(kind).Inc() }
func (m *Metrics) RecordUploadRejected(reason string)  { m.UploadRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) RecordRetrySpawned()                 { m.RetriesSpawned.Inc() }
func (m *Metrics) RecordRetryExhausted()               { m.RetryExhausted.Inc() }
func (m *Metrics) ObserveSubmit(elapsed time.Duration) { m.SubmitDuration.Observe(elapsed.Seconds()) }
