package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.FanoutRuns.WithLabelValues("complete").Inc()
	m.EventsDropped.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["shelter_alerts_fanout_runs_total"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped))

	// a second set on the same registry collides
	assert.Panics(t, func() { NewMetricsWithRegistry(reg) })
	// a fresh registry does not
	assert.NotPanics(t, func() { NewMetricsWithRegistry(prometheus.NewRegistry()) })
}
