package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/sitewatch/internal/metrics"
)

func TestNew_RegistersAgainstGivenRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordFetch_IncrementsCounterAndHistogram(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordFetch("example.com", "success", 200*time.Millisecond)

	assert.Equal(t, float64(1), counterValue(t, m.FetchTotal.WithLabelValues("example.com", "success")))
}

func TestRecordRunFinished_UpdatesGaugeAndCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordRunStarted()
	assert.Equal(t, float64(1), gaugeValue(t, m.RunsInProgress))

	m.RecordRunFinished("site-1", "success", time.Second)
	assert.Equal(t, float64(0), gaugeValue(t, m.RunsInProgress))
	assert.Equal(t, float64(1), counterValue(t, m.RunsTotal.WithLabelValues("site-1", "success")))
}

func TestRecordChanges_AddsPerKind(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordChanges("site-1", map[string]int{"new": 3, "deleted": 1})

	assert.Equal(t, float64(3), counterValue(t, m.ChangesTotal.WithLabelValues("site-1", "new")))
	assert.Equal(t, float64(1), counterValue(t, m.ChangesTotal.WithLabelValues("site-1", "deleted")))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, c.Write(&metric))
	return metric.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, g.Write(&metric))
	return metric.GetGauge().GetValue()
}
