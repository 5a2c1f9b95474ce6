// Package render turns a computed pivot grid into presentation structures:
// a spanned table with optional heatmap colouring, HTML and TSV exports, and
// chart datasets with per-renderer chart configurations.
//
// Every transformer consumes the Grid interface, so a locally computed
// *pivot.PivotData and a remote.Result render identically.
package render

import (
	"strings"

	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/pivot"
)

// DefaultTotalsLabel labels the margin row and column.
const DefaultTotalsLabel = "Totals"

// Grid is a read-only pivot result. Has reports whether a cell was reached;
// transformers render unreached cells as gaps whatever the empty value of
// the aggregator is.
type Grid interface {
	aggregator.Lookup
	Has(rowKey, colKey []string) bool

	RowAttrs() []string
	ColAttrs() []string
	RowKeys() [][]string
	ColKeys() [][]string
	AggregatorName() string
	Vals() []string
}

var _ Grid = (*pivot.PivotData)(nil)

// orEmptyKey substitutes a single empty key for an empty key list, so that a
// grid without grouping still yields one series or row.
func orEmptyKey(keys [][]string) [][]string {
	if len(keys) == 0 {
		return [][]string{{}}
	}
	return keys
}

// cellValue is the raw value of a reached cell, nil for an unreached one.
func cellValue(g Grid, rowKey, colKey []string) (any, aggregator.Instance) {
	inst := g.GetAggregator(rowKey, colKey)
	if !g.Has(rowKey, colKey) {
		return nil, inst
	}
	return inst.Value(), inst
}

// valueLabel is "<aggregator> of <vals>" for aggregators that consume
// inputs, the bare aggregator name otherwise.
func valueLabel(g Grid) string {
	name := g.AggregatorName()
	n := g.GetAggregator(nil, nil).NumInputs()
	vals := g.Vals()
	if n == 0 || len(vals) == 0 {
		return name
	}
	if n > len(vals) {
		n = len(vals)
	}
	return name + " of " + strings.Join(vals[:n], ", ")
}
