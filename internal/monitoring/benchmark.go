package monitoring

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

const (
	defaultIterations = 10
	bytesToMB         = 1024 * 1024
)

// BenchmarkScenario is one timed operation, typically a pivot build or a
// render over a fixed record set.
type BenchmarkScenario struct {
	Name        string
	Description string
	// Records processed by one run of Operation, used for throughput.
	Records    int
	Iterations int
	Operation  func() error `json:"-"`
}

// BenchmarkResult contains the results of running a benchmark scenario.
type BenchmarkResult struct {
	Scenario          BenchmarkScenario `json:"scenario"`
	Duration          time.Duration     `json:"duration"`
	AverageDuration   time.Duration     `json:"average_duration"`
	MinDuration       time.Duration     `json:"min_duration"`
	MaxDuration       time.Duration     `json:"max_duration"`
	MemoryAllocated   int64             `json:"memory_allocated"`
	MemoryAllocations int64             `json:"memory_allocations"`
	RecordsPerSec     float64           `json:"records_per_sec"`
	Success           bool              `json:"success"`
	ErrorMessage      string            `json:"error_message,omitempty"`
}

// BenchmarkSuite runs scenarios in registration order.
type BenchmarkSuite struct {
	scenarios []BenchmarkScenario
	results   []BenchmarkResult
	collector *MetricsCollector
}

// NewBenchmarkSuite creates a suite. Every iteration is also recorded into
// collector when it is enabled.
func NewBenchmarkSuite(collector *MetricsCollector) *BenchmarkSuite {
	return &BenchmarkSuite{collector: collector}
}

// AddScenario adds a scenario; zero iterations run defaultIterations times.
func (bs *BenchmarkSuite) AddScenario(scenario BenchmarkScenario) {
	if scenario.Iterations <= 0 {
		scenario.Iterations = defaultIterations
	}
	bs.scenarios = append(bs.scenarios, scenario)
}

// Run executes all scenarios and returns their results.
func (bs *BenchmarkSuite) Run() []BenchmarkResult {
	bs.results = make([]BenchmarkResult, 0, len(bs.scenarios))
	for _, scenario := range bs.scenarios {
		bs.results = append(bs.results, bs.runScenario(scenario))
	}
	return bs.results
}

func (bs *BenchmarkSuite) runScenario(scenario BenchmarkScenario) BenchmarkResult {
	result := BenchmarkResult{Scenario: scenario, Success: true}
	var memBefore, memAfter runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&memBefore)

	runs := 0
	for i := range scenario.Iterations {
		start := time.Now()
		err := scenario.Operation()
		elapsed := time.Since(start)

		if bs.collector.IsEnabled() {
			bs.collector.Record(OperationMetrics{
				Operation:        "Benchmark." + scenario.Name,
				Duration:         elapsed,
				RecordsProcessed: int64(scenario.Records),
				Failed:           err != nil,
			})
		}
		if err != nil {
			result.Success = false
			result.ErrorMessage = fmt.Sprintf("iteration %d failed: %v", i+1, err)
			break
		}

		if runs == 0 || elapsed < result.MinDuration {
			result.MinDuration = elapsed
		}
		if elapsed > result.MaxDuration {
			result.MaxDuration = elapsed
		}
		result.Duration += elapsed
		runs++
	}

	runtime.GC()
	runtime.ReadMemStats(&memAfter)
	result.MemoryAllocated = int64(memAfter.TotalAlloc - memBefore.TotalAlloc) //nolint:gosec // Safe memory calculation
	result.MemoryAllocations = int64(memAfter.Mallocs - memBefore.Mallocs)     //nolint:gosec // Safe memory calculation

	if runs > 0 {
		result.AverageDuration = result.Duration / time.Duration(runs)
	}
	if result.AverageDuration > 0 {
		result.RecordsPerSec = float64(scenario.Records) / result.AverageDuration.Seconds()
	}
	return result
}

// GetResults returns the results of the last Run.
func (bs *BenchmarkSuite) GetResults() []BenchmarkResult {
	return bs.results
}

// GenerateReport renders the results of the last Run as markdown.
func (bs *BenchmarkSuite) GenerateReport() string {
	if len(bs.results) == 0 {
		return "# Benchmark Report\n\nNo benchmark results available.\n"
	}

	var report strings.Builder
	report.WriteString("# crosstab Benchmark Report\n\n")
	fmt.Fprintf(&report, "Generated: %s\n\n", time.Now().Format(time.RFC3339))

	report.WriteString("| Scenario | Records | Iterations | Avg Duration | Records/Sec | Memory (MB) | Status |\n")
	report.WriteString("|----------|---------|------------|--------------|-------------|-------------|--------|\n")
	failures := 0
	for _, result := range bs.results {
		status := "ok"
		if !result.Success {
			status = "FAILED"
			failures++
		}
		fmt.Fprintf(&report, "| %s | %d | %d | %v | %.0f | %.2f | %s |\n",
			result.Scenario.Name,
			result.Scenario.Records,
			result.Scenario.Iterations,
			result.AverageDuration,
			result.RecordsPerSec,
			float64(result.MemoryAllocated)/bytesToMB,
			status)
	}

	if failures > 0 {
		report.WriteString("\n## Failures\n\n")
		for _, result := range bs.results {
			if !result.Success {
				fmt.Fprintf(&report, "- **%s:** %s\n", result.Scenario.Name, result.ErrorMessage)
			}
		}
	}
	return report.String()
}

// Clear removes all scenarios and results from the suite.
func (bs *BenchmarkSuite) Clear() {
	bs.scenarios = bs.scenarios[:0]
	bs.results = bs.results[:0]
}
