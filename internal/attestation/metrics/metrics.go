package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attestation gateway.
type Metrics struct {
	// Submission outcomes by terminal classification
	SubmissionOutcome *prometheus.CounterVec

	// End-to-end submit latency including quorum verification
	SubmitLatency prometheus.Histogram

	// Rollbacks taken after a failed audit emission
	Rollbacks prometheus.Counter
}

// New creates a new Metrics instance with all gateway metrics registered.
func New() *Metrics {
	return &Metrics{
		SubmissionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_attestation_submissions_total",
			Help: "Total attestation submissions by outcome",
		}, []string{"outcome"}), // outcome: "recorded" or the rejection code

		SubmitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attesto_attestation_submit_duration_seconds",
			Help:    "Duration of attestation submission including aggregate signature verification",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),

		Rollbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attesto_attestation_rollbacks_total",
			Help: "Total subject record rollbacks after a failed audit emission",
		}),
	}
}

// IncrementSubmission records a submission outcome.
func (m *Metrics) IncrementSubmission(outcome string) {
	if m != nil {
		m.SubmissionOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveSubmitLatency records the total submission duration.
func (m *Metrics) ObserveSubmitLatency(d time.Duration) {
	if m != nil {
		m.SubmitLatency.Observe(d.Seconds())
	}
}

// IncrementRollbacks records a record restore taken to keep the write and
// its audit event atomic.
func (m *Metrics) IncrementRollbacks() {
	if m != nil {
		m.Rollbacks.Inc()
	}
}
