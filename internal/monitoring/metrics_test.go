//nolint:testpackage // requires internal access to unexported types and functions
package monitoring

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasure(t *testing.T) {
	m, err := Measure(func() error {
		buf := make([]byte, 1<<20)
		_ = buf
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.Duration, 5*time.Millisecond)
	assert.GreaterOrEqual(t, m.Allocated, int64(0))

	boom := errors.New("boom")
	m, err = Measure(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.GreaterOrEqual(t, m.Duration, time.Duration(0))
}

func TestMetricsCollector(t *testing.T) {
	t.Run("disabled collector records nothing", func(t *testing.T) {
		collector := NewMetricsCollector(false)
		assert.False(t, collector.IsEnabled())

		collector.Record(OperationMetrics{Operation: "eager", Success: true})
		assert.Empty(t, collector.GetMetrics())
		assert.Equal(t, 0, testutil.CollectAndCount(collector.duration))
	})

	t.Run("records measurements and gauges", func(t *testing.T) {
		collector := NewMetricsCollector(true)
		collector.Record(OperationMetrics{
			Operation: "eager", Timing: "query", Duration: 250 * time.Millisecond,
			Allocated: 2048, Groups: 7, Success: true,
		})
		collector.Record(OperationMetrics{Operation: "sqlite", Timing: "query", Duration: time.Second})

		require.Len(t, collector.GetMetrics(), 2)
		assert.InDelta(t, 0.25, testutil.ToFloat64(collector.duration.WithLabelValues("eager", "query")), 1e-9)
		assert.InDelta(t, 7, testutil.ToFloat64(collector.groups.WithLabelValues("eager", "query")), 1e-9)
		assert.InDelta(t, 2048, testutil.ToFloat64(collector.allocated.WithLabelValues("eager", "query")), 1e-9)
		assert.InDelta(t, 1, testutil.ToFloat64(collector.success.WithLabelValues("eager", "query")), 1e-9)
		assert.InDelta(t, 0, testutil.ToFloat64(collector.success.WithLabelValues("sqlite", "query")), 1e-9)

		collector.Clear()
		assert.Empty(t, collector.GetMetrics())
		assert.Equal(t, 0, testutil.CollectAndCount(collector.duration))
	})

	t.Run("toggle", func(t *testing.T) {
		collector := NewMetricsCollector(true)
		collector.SetEnabled(false)
		assert.False(t, collector.IsEnabled())
	})
}

func TestGetSummary(t *testing.T) {
	collector := NewMetricsCollector(true)
	assert.Equal(t, MetricsSummary{}, collector.GetSummary())

	collector.Record(OperationMetrics{Operation: "eager", Duration: 2 * time.Second, Allocated: 10, Success: true})
	collector.Record(OperationMetrics{Operation: "lazy", Duration: time.Second, Allocated: 5, Success: true})
	collector.Record(OperationMetrics{Operation: "gota", Duration: time.Millisecond, Success: false})

	summary := collector.GetSummary()
	assert.Equal(t, 3, summary.TotalOperations)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "lazy", summary.Fastest, "failed runs are not candidates")
	assert.Equal(t, "eager", summary.Slowest)
	assert.InDelta(t, 2.0, summary.Spread, 1e-9)
	assert.Equal(t, int64(15), summary.TotalAllocated)
}

func TestWriteTextfile(t *testing.T) {
	collector := NewMetricsCollector(true)
	collector.Record(OperationMetrics{Operation: "eager", Timing: "query", Duration: time.Second, Groups: 3, Success: true})

	path := filepath.Join(t.TempDir(), "groupbench.prom")
	require.NoError(t, collector.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `groupbench_strategy_retained_groups{strategy="eager",timing="query"} 3`)
	assert.Contains(t, string(data), "# TYPE groupbench_strategy_duration_seconds gauge")

	assert.Error(t, collector.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}

func TestHostStat(t *testing.T) {
	info := HostStat()
	assert.NotEmpty(t, info.Arch)
	assert.Positive(t, info.CPUCount)
	assert.NotEmpty(t, info.GoVersion)
}
