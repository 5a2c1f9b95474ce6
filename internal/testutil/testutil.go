// Package testutil provides common testing utilities to reduce code duplication
// across test files in the crosstab pivot library.
//
// This package consolidates common patterns used by the package tests:
// - Standard record fixtures (sales scenario, employee dataset)
// - Memory allocator setup for Arrow and Parquet tests
// - Common pivot assertions
package testutil

import (
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// defaultRowCount is the default number of employee records.
	defaultRowCount = 4
)

// TestMemoryContext provides an Arrow allocator that reports leaks on release.
type TestMemoryContext struct {
	Allocator *memory.CheckedAllocator
	tb        testing.TB
}

// Release asserts that every Arrow buffer allocated through the context was freed.
func (tmc *TestMemoryContext) Release() {
	tmc.Allocator.AssertSize(tmc.tb, 0)
}

// SetupMemoryTest creates a checked Arrow allocator for tests.
//
// Example usage:
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewCheckedAllocator(memory.NewGoAllocator()),
		tb:        tb,
	}
}

// SalesRecords returns the three-record sales scenario:
//
//	North/A=100, North/B=50, South/A=30
func SalesRecords() pivot.Records {
	return pivot.Records{
		{"region": "North", "product": "A", "revenue": 100},
		{"region": "North", "product": "B", "revenue": 50},
		{"region": "South", "product": "A", "revenue": 30},
	}
}

// SalesConfig returns the rows=region, cols=product, Sum of revenue configuration.
func SalesConfig() pivot.Config {
	return pivot.Config{
		Rows:           []string{"region"},
		Cols:           []string{"product"},
		Vals:           []string{"revenue"},
		AggregatorName: "Sum",
	}
}

// TestRecordsOption configures employee record creation.
type TestRecordsOption func(*testRecordsConfig)

type testRecordsConfig struct {
	includeNulls bool
	rowCount     int
}

// WithNulls blanks every third salary.
func WithNulls() TestRecordsOption {
	return func(cfg *testRecordsConfig) {
		cfg.includeNulls = true
	}
}

// WithRowCount sets the number of records.
func WithRowCount(count int) TestRecordsOption {
	return func(cfg *testRecordsConfig) {
		cfg.rowCount = count
	}
}

// CreateTestRecords creates the standard employee dataset.
//
// Default records include:
// - name (string): ["Alice", "Bob", "Charlie", "David"]
// - age (int64): [25, 30, 35, 28]
// - department (string): ["Engineering", "Sales", "Engineering", "Marketing"]
// - salary (int64): [100000, 80000, 120000, 75000]
// - active (bool): [true, false, true, false]
func CreateTestRecords(opts ...TestRecordsOption) pivot.Records {
	cfg := &testRecordsConfig{rowCount: defaultRowCount}
	for _, opt := range opts {
		opt(cfg)
	}

	names := []string{"Alice", "Bob", "Charlie", "David"}
	ages := []int64{25, 30, 35, 28}
	departments := []string{"Engineering", "Sales", "Engineering", "Marketing"}
	salaries := []int64{100000, 80000, 120000, 75000}

	records := make(pivot.Records, cfg.rowCount)
	for i := range cfg.rowCount {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s_%d", name, i/len(names))
		}
		rec := pivot.Record{
			"name":       name,
			"age":        ages[i%len(ages)] + int64(i/len(ages)),
			"department": departments[i%len(departments)],
			"salary":     salaries[i%len(salaries)],
			"active":     i%2 == 0,
		}
		if cfg.includeNulls && i%3 == 2 {
			rec["salary"] = nil
		}
		records[i] = rec
	}
	return records
}

// BuildPivot builds a pivot and fails the test on error.
func BuildPivot(t *testing.T, source pivot.Source, cfg pivot.Config) *pivot.PivotData {
	t.Helper()
	p, err := pivot.New(source, cfg)
	require.NoError(t, err, "pivot construction should succeed")
	return p
}

// AssertCellValue asserts the value of one cell, margin or total.
func AssertCellValue(t *testing.T, lookup aggregator.Lookup, rowKey, colKey []string, expected any) {
	t.Helper()
	got := lookup.GetAggregator(rowKey, colKey).Value()
	if f, ok := expected.(float64); ok {
		require.IsType(t, 0.0, got, "cell %v/%v", rowKey, colKey)
		assert.InDelta(t, f, got.(float64), 1e-9, "cell %v/%v", rowKey, colKey)
		return
	}
	assert.Equal(t, expected, got, "cell %v/%v", rowKey, colKey)
}

// AssertMarginsConsistent checks that every Count margin equals the sum of
// its cells and that the grand total equals the number of records.
func AssertMarginsConsistent(t *testing.T, p *pivot.PivotData) {
	t.Helper()
	rowKeys, colKeys := p.RowKeys(), p.ColKeys()

	count := func(r, c []string) float64 {
		v, ok := p.GetAggregator(r, c).Value().(float64)
		require.True(t, ok, "count value for %v/%v", r, c)
		return v
	}

	if len(colKeys) > 0 {
		for _, r := range rowKeys {
			var sum float64
			for _, c := range colKeys {
				sum += count(r, c)
			}
			assert.InDelta(t, count(r, nil), sum, 1e-9, "row margin %v", r)
		}
	}
	if len(rowKeys) > 0 {
		for _, c := range colKeys {
			var sum float64
			for _, r := range rowKeys {
				sum += count(r, c)
			}
			assert.InDelta(t, count(nil, c), sum, 1e-9, "col margin %v", c)
		}
	}
	assert.InDelta(t, float64(p.NumRecords()), count(nil, nil), 1e-9, "grand total")
}
