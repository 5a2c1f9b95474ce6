package monitoring

import (
	"sync"
)

//nolint:gochecknoglobals // Required for singleton pattern in monitoring system
var (
	globalCollector *MetricsCollector
	globalMutex     sync.RWMutex
)

// SetGlobalCollector sets the process-wide metrics collector used when a
// component is not given its own.
func SetGlobalCollector(collector *MetricsCollector) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalCollector = collector
}

// GetGlobalCollector returns the global metrics collector.
// Returns nil if no global collector has been set.
func GetGlobalCollector() *MetricsCollector {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalCollector
}

// Resolve returns collector when non-nil, otherwise the global collector
// (which may itself be nil, meaning metrics are off).
func Resolve(collector *MetricsCollector) *MetricsCollector {
	if collector != nil {
		return collector
	}
	return GetGlobalCollector()
}

// EnableGlobalMonitoring creates and sets a global metrics collector.
func EnableGlobalMonitoring() *MetricsCollector {
	collector := NewMetricsCollector(true)
	SetGlobalCollector(collector)
	return collector
}

// DisableGlobalMonitoring removes the global metrics collector.
func DisableGlobalMonitoring() {
	SetGlobalCollector(nil)
}
