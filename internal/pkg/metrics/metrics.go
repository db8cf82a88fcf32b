package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SagaMetrics counts saga outcomes and times chain confirmation waits.
type SagaMetrics struct {
	outcomes     *prometheus.CounterVec
	confirmation *prometheus.HistogramVec
	reconciled   *prometheus.CounterVec
}

var (
	sagaMetricsOnce sync.Once
	sagaRegistry    *SagaMetrics
)

// Saga returns the lazily-initialised saga metrics registry.
func Saga() *SagaMetrics {
	sagaMetricsOnce.Do(func() {
		sagaRegistry = &SagaMetrics{
			outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "unicarbon",
				Subsystem: "saga",
				Name:      "outcomes_total",
				Help:      "Saga completions segmented by saga and outcome kind.",
			}, []string{"saga", "outcome"}),
			confirmation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "unicarbon",
				Subsystem: "chain",
				Name:      "confirmation_seconds",
				Help:      "Time spent waiting for transaction receipts.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 120},
			}, []string{"method", "result"}),
			reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "unicarbon",
				Subsystem: "reconcile",
				Name:      "events_total",
				Help:      "Decoded chain events by name and whether they changed the ledger.",
			}, []string{"event", "result"}),
		}
		prometheus.MustRegister(
			sagaRegistry.outcomes,
			sagaRegistry.confirmation,
			sagaRegistry.reconciled,
		)
	})
	return sagaRegistry
}

// RecordOutcome increments the outcome counter. Outcome should be "success" or an error kind.
func (m *SagaMetrics) RecordOutcome(saga, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "success"
	}
	m.outcomes.WithLabelValues(saga, outcome).Inc()
}

// ObserveConfirmation records how long a receipt wait took.
func (m *SagaMetrics) ObserveConfirmation(method, result string, d time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.confirmation.WithLabelValues(method, result).Observe(d.Seconds())
}

// RecordEvent counts a decoded event; result is "applied", "duplicate" or "skipped".
func (m *SagaMetrics) RecordEvent(event, result string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(event, result).Inc()
}
