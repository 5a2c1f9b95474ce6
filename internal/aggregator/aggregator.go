// Package aggregator implements the per-cell accumulators used by the pivot
// engine.
//
// An aggregator is described at three levels. A Factory binds the attribute
// names it reads (the pivot "vals"). The resulting Aggregator is called once
// per cell, with the cell identity, to create a fresh Instance. The Instance
// receives every matching record through Push, in input order, and reports
// its result through Value.
//
// Instances never fail: values that cannot be interpreted for a given kind
// (non-numeric input to Sum, missing attributes and so on) are skipped. An
// instance that saw no usable value reports nil rather than zero, with the
// exception of the count based kinds.
package aggregator

// Record exposes attribute values to an aggregator. Missing attributes
// return nil.
type Record interface {
	Get(attr string) any
}

// Map is a Record backed by a plain map.
type Map map[string]any

// Get implements Record.
func (m Map) Get(attr string) any {
	return m[attr]
}

// Instance is the mutable accumulator for a single cell.
type Instance interface {
	// Push folds one record into the accumulator.
	Push(rec Record)
	// Value returns the current result. It is idempotent and may return
	// nil when nothing usable was pushed. Non-nil results are float64,
	// string, bool or time.Time.
	Value() any
	// Format renders a value produced by Value for display.
	Format(v any) string
	// NumInputs is the number of attribute names the kind consumes.
	NumInputs() int
}

// Lookup gives identity aware aggregators access to other cells of the same
// pivot. An empty row key (or column key) addresses the corresponding margin,
// both empty address the grand total.
type Lookup interface {
	GetAggregator(rowKey, colKey []string) Instance
}

// Aggregator creates a fresh Instance for the cell identified by rowKey and
// colKey. lookup may be nil when the instance is used outside of a pivot.
type Aggregator func(lookup Lookup, rowKey, colKey []string) Instance

// Factory binds attribute names to an Aggregator.
type Factory func(attrs []string) Aggregator

// Kind enumerates the built-in aggregators.
type Kind int

const (
	KindCount Kind = iota
	KindCountUnique
	KindListUnique
	KindSum
	KindIntegerSum
	KindAverage
	KindMedian
	KindMode
	KindSampleVariance
	KindSampleStdDev
	KindVariance
	KindStdDev
	KindPercentile25
	KindPercentile75
	KindPercentile90
	KindPercentile95
	KindPercentile99
	KindMinimum
	KindMaximum
	KindFirst
	KindLast
	KindConcatenate
	KindAllTrue
	KindAnyTrue
	KindEarliestDate
	KindLatestDate
	KindDateRangeDays
	KindSumOverSum
	KindSumFractionTotal
	KindSumFractionRows
	KindSumFractionCols
	KindCountFractionTotal
	KindCountFractionRows
	KindCountFractionCols
)

type kindInfo struct {
	name      string
	code      string
	numInputs int
}

var kinds = [...]kindInfo{
	KindCount:              {"Count", "COUNT", 0},
	KindCountUnique:        {"Count Unique Values", "COUNT_UNIQUE", 1},
	KindListUnique:         {"List Unique Values", "LIST_UNIQUE", 1},
	KindSum:                {"Sum", "SUM", 1},
	KindIntegerSum:         {"Integer Sum", "INTEGER_SUM", 1},
	KindAverage:            {"Average", "AVERAGE", 1},
	KindMedian:             {"Median", "MEDIAN", 1},
	KindMode:               {"Mode", "MODE", 1},
	KindSampleVariance:     {"Sample Variance", "SAMPLE_VARIANCE", 1},
	KindSampleStdDev:       {"Sample Standard Deviation", "SAMPLE_STDDEV", 1},
	KindVariance:           {"Variance", "VARIANCE", 1},
	KindStdDev:             {"Standard Deviation", "STDDEV", 1},
	KindPercentile25:       {"25th Percentile (Q1)", "PERCENTILE_25", 1},
	KindPercentile75:       {"75th Percentile (Q3)", "PERCENTILE_75", 1},
	KindPercentile90:       {"90th Percentile", "PERCENTILE_90", 1},
	KindPercentile95:       {"95th Percentile", "PERCENTILE_95", 1},
	KindPercentile99:       {"99th Percentile", "PERCENTILE_99", 1},
	KindMinimum:            {"Minimum", "MIN", 1},
	KindMaximum:            {"Maximum", "MAX", 1},
	KindFirst:              {"First", "FIRST", 1},
	KindLast:               {"Last", "LAST", 1},
	KindConcatenate:        {"Concatenate", "STRING_CONCAT", 1},
	KindAllTrue:            {"All True", "BOOL_AND", 1},
	KindAnyTrue:            {"Any True", "BOOL_OR", 1},
	KindEarliestDate:       {"Earliest Date", "MIN_DATE", 1},
	KindLatestDate:         {"Latest Date", "MAX_DATE", 1},
	KindDateRangeDays:      {"Date Range (Days)", "DATE_RANGE_DAYS", 1},
	KindSumOverSum:         {"Sum over Sum", "SUM_OVER_SUM", 2},
	KindSumFractionTotal:   {"Sum as Fraction of Total", "SUM_FRACTION_TOTAL", 1},
	KindSumFractionRows:    {"Sum as Fraction of Rows", "SUM_FRACTION_ROWS", 1},
	KindSumFractionCols:    {"Sum as Fraction of Columns", "SUM_FRACTION_COLS", 1},
	KindCountFractionTotal: {"Count as Fraction of Total", "COUNT_FRACTION_TOTAL", 0},
	KindCountFractionRows:  {"Count as Fraction of Rows", "COUNT_FRACTION_ROWS", 0},
	KindCountFractionCols:  {"Count as Fraction of Columns", "COUNT_FRACTION_COLS", 0},
}

// Kinds returns every built-in kind in registration order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	for i := range kinds {
		out[i] = Kind(i)
	}
	return out
}

// Valid reports whether k is a built-in kind.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kinds)
}

// String returns the registry name, e.g. "Sum as Fraction of Total".
func (k Kind) String() string {
	if !k.Valid() {
		return "Unknown"
	}
	return kinds[k].name
}

// Code returns the upper case identifier used by the analytics service,
// e.g. "SUM_FRACTION_TOTAL".
func (k Kind) Code() string {
	if !k.Valid() {
		return ""
	}
	return kinds[k].code
}

// NumInputs returns the number of attribute names the kind reads.
func (k Kind) NumInputs() int {
	if !k.Valid() {
		return 0
	}
	return kinds[k].numInputs
}
