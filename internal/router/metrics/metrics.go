package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy router.
type Metrics struct {
	// Eligibility check outcomes by strategy and terminal classification
	CheckOutcome *prometheus.CounterVec

	// End-to-end check latency by strategy, proof verification included
	CheckLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance with all router metrics registered.
func New() *Metrics {
	return &Metrics{
		CheckOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_router_checks_total",
			Help: "Total eligibility checks by strategy and outcome",
		}, []string{"strategy", "outcome"}), // strategy: "cached", "fresh"

		CheckLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attesto_router_check_duration_seconds",
			Help:    "Duration of eligibility checks including proof verification",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"strategy"}),
	}
}

// IncrementCheck records a check outcome.
func (m *Metrics) IncrementCheck(strategy, outcome string) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(strategy, outcome).Inc()
	}
}

// ObserveCheckLatency records the total check duration.
func (m *Metrics) ObserveCheckLatency(strategy string, d time.Duration) {
	if m != nil {
		m.CheckLatency.WithLabelValues(strategy).Observe(d.Seconds())
	}
}
