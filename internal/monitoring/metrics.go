// Package monitoring provides performance monitoring and metrics collection for pivot operations.
package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// Operation names recorded by the engine, the remote client and the reference service.
const (
	OpPivotBuild  = "pivot.build"
	OpRemotePivot = "remote.pivot"
	OpServePivot  = "server.pivot"
	OpLoadRecords = "io.load"
)

const defaultHistory = 1024

// OperationMetrics represents performance metrics for a single pivot operation.
type OperationMetrics struct {
	Duration         time.Duration `json:"duration"`
	RecordsProcessed int64         `json:"records_processed"`
	MemoryUsed       int64         `json:"memory_used"`
	Operation        string        `json:"operation"`
	Cached           bool          `json:"cached"`
	Failed           bool          `json:"failed"`
}

// MetricsCollector collects and stores performance metrics for pivot operations.
// Only the most recent operations are kept, up to the configured history.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []OperationMetrics
	history int
	enabled bool
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(enabled bool) *MetricsCollector {
	return &MetricsCollector{
		metrics: make([]OperationMetrics, 0),
		history: defaultHistory,
		enabled: enabled,
	}
}

// IsEnabled returns whether metrics collection is enabled.
// A nil collector is disabled.
func (mc *MetricsCollector) IsEnabled() bool {
	if mc == nil {
		return false
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// SetHistory bounds the number of retained operations. Values below one keep one.
func (mc *MetricsCollector) SetHistory(n int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.history = max(n, 1)
	mc.trimLocked()
}

// RecordOperation executes the given function and records performance metrics.
func (mc *MetricsCollector) RecordOperation(operation string, fn func() error) error {
	return mc.RecordRecords(operation, func() (int64, error) {
		return 0, fn()
	})
}

// RecordRecords executes fn, which reports the number of records it
// processed, and records performance metrics.
func (mc *MetricsCollector) RecordRecords(operation string, fn func() (int64, error)) error {
	if !mc.IsEnabled() {
		_, err := fn()
		return err
	}

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)
	start := time.Now()

	records, err := fn()

	duration := time.Since(start)
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	mc.Record(OperationMetrics{
		Duration:         duration,
		RecordsProcessed: records,
		MemoryUsed:       int64(memAfter.TotalAlloc - memBefore.TotalAlloc), //nolint:gosec // Memory values are expected to be safe
		Operation:        operation,
		Failed:           err != nil,
	})
	return err
}

// Record stores an externally measured operation.
func (mc *MetricsCollector) Record(m OperationMetrics) {
	if !mc.IsEnabled() {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = append(mc.metrics, m)
	mc.trimLocked()
}

func (mc *MetricsCollector) trimLocked() {
	if over := len(mc.metrics) - mc.history; over > 0 {
		mc.metrics = append(mc.metrics[:0], mc.metrics[over:]...)
	}
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
}

// SetEnabled enables or disables metrics collection.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// GetSummary returns a summary of collected metrics.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.metrics) == 0 {
		return MetricsSummary{}
	}

	var totalDuration time.Duration
	var totalMemory, totalRecords int64
	var cacheHits, failures int
	operationCounts := make(map[string]int)

	for _, metric := range mc.metrics {
		totalDuration += metric.Duration
		totalMemory += metric.MemoryUsed
		totalRecords += metric.RecordsProcessed
		operationCounts[metric.Operation]++
		if metric.Cached {
			cacheHits++
		}
		if metric.Failed {
			failures++
		}
	}

	return MetricsSummary{
		TotalOperations: len(mc.metrics),
		TotalDuration:   totalDuration,
		TotalMemory:     totalMemory,
		TotalRecords:    totalRecords,
		CacheHits:       cacheHits,
		Failures:        failures,
		OperationCounts: operationCounts,
		AverageDuration: totalDuration / time.Duration(len(mc.metrics)),
	}
}

// MetricsSummary provides aggregate statistics for collected metrics.
type MetricsSummary struct {
	TotalOperations int            `json:"total_operations"`
	TotalDuration   time.Duration  `json:"total_duration"`
	TotalMemory     int64          `json:"total_memory"`
	TotalRecords    int64          `json:"total_records"`
	CacheHits       int            `json:"cache_hits"`
	Failures        int            `json:"failures"`
	OperationCounts map[string]int `json:"operation_counts"`
	AverageDuration time.Duration  `json:"average_duration"`
}
