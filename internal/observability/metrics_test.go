package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCountersAccumulate(t *testing.T) {
	files := FilesProcessed.WithLabelValues("noon_orders", "ok")
	before := counterValue(t, files)
	files.Inc()
	files.Add(2)
	assert.Equal(t, before+3, counterValue(t, files))

	skipped := RowsSkipped.WithLabelValues("missing_id")
	before = counterValue(t, skipped)
	skipped.Inc()
	assert.Equal(t, before+1, counterValue(t, skipped))
}

func TestRecalcDurationObserves(t *testing.T) {
	var m dto.Metric
	require.NoError(t, RecalcDuration.Write(&m))
	before := m.GetHistogram().GetSampleCount()

	RecalcDuration.Observe(0.2)

	m.Reset()
	require.NoError(t, RecalcDuration.Write(&m))
	assert.Equal(t, before+1, m.GetHistogram().GetSampleCount())
}
