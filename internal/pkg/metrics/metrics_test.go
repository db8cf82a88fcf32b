package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metrics:
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestSaga_RecordOutcome(t *testing.T) {
	m := Saga()
	assert.Same(t, m, Saga())

	labels := map[string]string{"saga": "offset", "outcome": "ChainSettlementFailed"}
	before := counterValue(t, "unicarbon_saga_outcomes_total", labels)
	m.RecordOutcome("offset", "ChainSettlementFailed")
	assert.Equal(t, before+1, counterValue(t, "unicarbon_saga_outcomes_total", labels))

	labels = map[string]string{"saga": "order", "outcome": "success"}
	before = counterValue(t, "unicarbon_saga_outcomes_total", labels)
	m.RecordOutcome("order", "")
	assert.Equal(t, before+1, counterValue(t, "unicarbon_saga_outcomes_total", labels))
}

func TestSaga_NilSafe(t *testing.T) {
	var m *SagaMetrics
	m.RecordOutcome("order", "success")
	m.ObserveConfirmation("withdraw", "confirmed", time.Second)
	m.RecordEvent("CreditsOffset", "applied")
}
