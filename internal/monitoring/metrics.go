// Package monitoring measures strategy runs and exports the measurements as
// Prometheus gauges. It also describes the host a benchmark ran on.
package monitoring

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "groupbench"

// OperationMetrics is the measurement of one strategy run.
type OperationMetrics struct {
	Operation   string        `json:"operation"`
	Timing      string        `json:"timing"`
	Duration    time.Duration `json:"duration"`
	Allocated   int64         `json:"allocated"`
	Allocations int64         `json:"allocations"`
	Groups      int           `json:"groups"`
	Success     bool          `json:"success"`
}

// Measurement is what Measure observed around a function call.
type Measurement struct {
	Duration    time.Duration
	Allocated   int64
	Allocations int64
}

// Measure runs fn and reports its wall time and heap allocation. The
// duration comes from the monotonic clock and is never negative. A GC runs
// first so that garbage left by earlier work is not collected on fn's time.
func Measure(fn func() error) (Measurement, error) {
	var memBefore, memAfter runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&memBefore)

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	runtime.ReadMemStats(&memAfter)

	if duration < 0 {
		duration = 0
	}
	return Measurement{
		Duration:    duration,
		Allocated:   int64(memAfter.TotalAlloc - memBefore.TotalAlloc), //nolint:gosec // monotonic counter
		Allocations: int64(memAfter.Mallocs - memBefore.Mallocs),       //nolint:gosec // monotonic counter
	}, err
}

// MetricsCollector keeps per-strategy measurements and mirrors them into a
// private Prometheus registry.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []OperationMetrics
	enabled bool

	registry  *prometheus.Registry
	duration  *prometheus.GaugeVec
	groups    *prometheus.GaugeVec
	allocated *prometheus.GaugeVec
	success   *prometheus.GaugeVec
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(enabled bool) *MetricsCollector {
	labels := []string{"strategy", "timing"}
	mc := &MetricsCollector{
		metrics:  make([]OperationMetrics, 0),
		enabled:  enabled,
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strategy_duration_seconds",
			Help:      "Wall time of the timed region of a strategy",
		}, labels),
		groups: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strategy_retained_groups",
			Help:      "Number of groups a strategy retained",
		}, labels),
		allocated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strategy_allocated_bytes",
			Help:      "Go heap bytes allocated during the timed region",
		}, labels),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strategy_success",
			Help:      "1 if the strategy produced a result, 0 otherwise",
		}, labels),
	}
	mc.registry.MustRegister(mc.duration, mc.groups, mc.allocated, mc.success)
	return mc
}

// IsEnabled returns whether metrics collection is enabled.
func (mc *MetricsCollector) IsEnabled() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// SetEnabled enables or disables metrics collection.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// Record stores one measurement. It is a no-op when collection is disabled.
func (mc *MetricsCollector) Record(m OperationMetrics) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.enabled {
		return
	}
	mc.metrics = append(mc.metrics, m)

	success := 0.0
	if m.Success {
		success = 1
		mc.groups.WithLabelValues(m.Operation, m.Timing).Set(float64(m.Groups))
	}
	mc.duration.WithLabelValues(m.Operation, m.Timing).Set(m.Duration.Seconds())
	mc.allocated.WithLabelValues(m.Operation, m.Timing).Set(float64(m.Allocated))
	mc.success.WithLabelValues(m.Operation, m.Timing).Set(success)
}

// GetMetrics returns a copy of all collected metrics.
func (mc *MetricsCollector) GetMetrics() []OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]OperationMetrics, len(mc.metrics))
	copy(result, mc.metrics)
	return result
}

// Clear removes all collected metrics.
func (mc *MetricsCollector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = mc.metrics[:0]
	mc.duration.Reset()
	mc.groups.Reset()
	mc.allocated.Reset()
	mc.success.Reset()
}

// Registry exposes the collector's gauges.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// WriteTextfile writes the gauges in the Prometheus text format, for the
// node exporter textfile collector.
func (mc *MetricsCollector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, mc.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

// GetSummary returns a summary of collected metrics.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.metrics) == 0 {
		return MetricsSummary{}
	}

	summary := MetricsSummary{TotalOperations: len(mc.metrics)}
	var fastest, slowest *OperationMetrics
	for i := range mc.metrics {
		m := &mc.metrics[i]
		summary.TotalDuration += m.Duration
		summary.TotalAllocated += m.Allocated
		if !m.Success {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		if fastest == nil || m.Duration < fastest.Duration {
			fastest = m
		}
		if slowest == nil || m.Duration > slowest.Duration {
			slowest = m
		}
	}
	if fastest != nil {
		summary.Fastest = fastest.Operation
		summary.Slowest = slowest.Operation
		if fastest.Duration > 0 {
			summary.Spread = float64(slowest.Duration) / float64(fastest.Duration)
		}
	}
	return summary
}

// MetricsSummary provides aggregate statistics for collected metrics.
type MetricsSummary struct {
	TotalOperations int           `json:"total_operations"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	TotalDuration   time.Duration `json:"total_duration"`
	TotalAllocated  int64         `json:"total_allocated"`
	Fastest         string        `json:"fastest,omitempty"`
	Slowest         string        `json:"slowest,omitempty"`
	// Spread is slowest over fastest duration among successful runs.
	Spread float64 `json:"spread,omitempty"`
}
