package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the sample of the named family whose labels include label, or
// the first sample when label is empty.
func value(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}

		for _, m := range mf.GetMetric() {
			if label != "" {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetValue() == label {
						found = true
					}
				}

				if !found {
					continue
				}
			}

			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	t.Fatalf("metric %s{%s} not found", name, label)

	return 0
}

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NoError(t, Register(reg))

	// Subsequent calls after success are no-ops.
	require.NoError(t, Register(reg))

	AddProposed(3)
	assert.GreaterOrEqual(t, value(t, reg, "hyperopt_trials_proposed_total", ""), 3.0)

	ObserveFinished("done", 0.25)
	assert.GreaterOrEqual(t, value(t, reg, "hyperopt_trials_finished_total", "done"), 1.0)
	assert.GreaterOrEqual(t, value(t, reg, "hyperopt_trials_evaluation_duration_seconds", "done"), 1.0)

	SetQueueLength(4)
	assert.Equal(t, 4.0, value(t, reg, "hyperopt_runner_queue_length", ""))

	SetBestLoss(0.5)
	assert.Equal(t, 0.5, value(t, reg, "hyperopt_runner_best_loss", ""))

	AddAbandoned(2)
	assert.GreaterOrEqual(t, value(t, reg, "hyperopt_trials_abandoned_total", ""), 2.0)

	IncStopped("callback")
	assert.GreaterOrEqual(t, value(t, reg, "hyperopt_runner_stops_total", "callback"), 1.0)
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
}
