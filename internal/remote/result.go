package remote

import (
	"slices"
	"strings"

	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/common"
	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/paveg/crosstab/internal/render"
	"github.com/paveg/crosstab/internal/sorter"
)

// Result is a remote response laid out as a pivot grid.
//
// With includeSubtotals the service returns rollup rows in which the
// rolled-up dimensions are null: those rows fill the margins and the grand
// total, and partially rolled-up rows are ignored. Without subtotals only the
// leaf rows are present, margins stay empty and the grand total comes from
// aggregatedData when the service sends it. A null leaf value is
// indistinguishable from a rollup row when subtotals are requested.
type Result struct {
	request  *Request
	response *Response

	name      string
	format    aggregator.Formatter
	numInputs int

	rowKeys   [][]string
	colKeys   [][]string
	cells     map[string]any
	rowTotals map[string]any
	colTotals map[string]any
	total     any
}

var _ render.Grid = (*Result)(nil)

// NewResult normalises resp, the answer to req. Aggregator names and value
// formatting resolve through reg, aggregator.DefaultRegistry when nil.
func NewResult(req *Request, resp *Response, reg *aggregator.Registry) (*Result, error) {
	const op = "NewResult"
	if req == nil || resp == nil {
		return nil, errors.NewInvalidInputError(op, "request and response are required")
	}
	if reg == nil {
		reg = aggregator.DefaultRegistry()
	}

	r := &Result{
		request:   req,
		response:  resp,
		name:      req.AggregatorName,
		format:    aggregator.USFormat.Formatter(),
		cells:     make(map[string]any),
		rowTotals: make(map[string]any),
		colTotals: make(map[string]any),
	}
	if resp.Metadata.AggregatorUsed != "" {
		r.name = resp.Metadata.AggregatorUsed
	}
	if r.name == "" {
		r.name = pivot.DefaultAggregator
	}
	if entry, err := reg.Lookup(r.name); err == nil {
		inst := entry.Factory(req.Vals)(nil, nil, nil)
		r.name = entry.Name
		r.format = inst.Format
		r.numInputs = inst.NumInputs()
	}

	var rowOrder, colOrder []string
	seenRows, seenCols := map[string]bool{}, map[string]bool{}
	addRow := func(key []string) string {
		flat := flatKey(key)
		if !seenRows[flat] {
			seenRows[flat] = true
			r.rowKeys = append(r.rowKeys, key)
			rowOrder = append(rowOrder, flat)
		}
		return flat
	}
	addCol := func(key []string) string {
		flat := flatKey(key)
		if !seenCols[flat] {
			seenCols[flat] = true
			r.colKeys = append(r.colKeys, key)
			colOrder = append(colOrder, flat)
		}
		return flat
	}

	hasRows, hasCols := len(req.Rows) > 0, len(req.Cols) > 0
	for _, row := range resp.Data {
		value := r.valueOf(row)
		rowKey, rowSet, rowNull := dims(row, req.Rows)
		colKey, colSet, colNull := dims(row, req.Cols)

		if req.IncludeSubtotals {
			switch {
			case rowNull && colNull:
				r.total = value
			case rowSet && colNull && hasRows:
				r.rowTotals[addRow(rowKey)] = value
			case rowNull && colSet && hasCols:
				r.colTotals[addCol(colKey)] = value
			case rowSet && colSet && hasRows && hasCols:
				r.cells[addRow(rowKey)+"\x01"+addCol(colKey)] = value
			}
			continue
		}

		rowKey, colKey = keyStrings(row, req.Rows), keyStrings(row, req.Cols)
		switch {
		case hasRows && hasCols:
			r.cells[addRow(rowKey)+"\x01"+addCol(colKey)] = value
		case hasRows:
			r.rowTotals[addRow(rowKey)] = value
		case hasCols:
			r.colTotals[addCol(colKey)] = value
		default:
			r.total = value
		}
	}
	if r.total == nil && resp.AggregatedData != nil {
		r.total = r.valueOf(resp.AggregatedData)
	}

	r.rowKeys = r.sortKeys(r.rowKeys, req.Rows, req.RowOrder, r.rowTotals)
	r.colKeys = r.sortKeys(r.colKeys, req.Cols, req.ColOrder, r.colTotals)
	return r, nil
}

func flatKey(key []string) string {
	return strings.Join(key, "\x00")
}

// dims reads the dimension values of a rollup row. set reports that every
// dimension is present, null that every dimension is null.
func dims(row map[string]any, attrs []string) (key []string, set, null bool) {
	key = make([]string, len(attrs))
	set, null = true, true
	for i, attr := range attrs {
		v := row[attr]
		if v == nil {
			set = false
		} else {
			null = false
		}
		key[i] = common.ToKey(v)
	}
	return key, set, null
}

func keyStrings(row map[string]any, attrs []string) []string {
	key := make([]string, len(attrs))
	for i, attr := range attrs {
		key[i] = common.ToKey(row[attr])
	}
	return key
}

func (r *Result) valueOf(row map[string]any) any {
	v, ok := row[ValueColumn]
	if !ok && len(r.request.Vals) > 0 {
		v = row[r.request.Vals[0]]
	}
	if common.IsNumeric(v) {
		if f, ok := common.ToFloat64(v); ok {
			return f
		}
		return nil
	}
	return v
}

// sortKeys applies the request order. Value orders need margins; without
// them the service's row order is kept.
func (r *Result) sortKeys(keys [][]string, attrs []string, order pivot.Order, margins map[string]any) [][]string {
	byKey := sorter.KeyComparator(nil, attrs)
	switch order {
	case pivot.OrderValueAToZ, pivot.OrderValueZToA:
		if len(margins) == 0 {
			return keys
		}
		descending := order == pivot.OrderValueZToA
		slices.SortStableFunc(keys, func(a, b []string) int {
			if c := sorter.CompareValues(margins[flatKey(a)], margins[flatKey(b)], descending); c != 0 {
				return c
			}
			return byKey(a, b)
		})
	default:
		slices.SortStableFunc(keys, byKey)
	}
	return keys
}

type staticInstance struct {
	value     any
	format    aggregator.Formatter
	numInputs int
}

func (s staticInstance) Push(aggregator.Record) {}
func (s staticInstance) Value() any            { return s.value }
func (s staticInstance) Format(v any) string   { return s.format(v) }
func (s staticInstance) NumInputs() int        { return s.numInputs }

// GetAggregator implements aggregator.Lookup. Missing cells have a nil value.
func (r *Result) GetAggregator(rowKey, colKey []string) aggregator.Instance {
	var v any
	switch {
	case len(rowKey) == 0 && len(colKey) == 0:
		v = r.total
	case len(rowKey) == 0:
		v = r.colTotals[flatKey(colKey)]
	case len(colKey) == 0:
		v = r.rowTotals[flatKey(rowKey)]
	default:
		v = r.cells[flatKey(rowKey)+"\x01"+flatKey(colKey)]
	}
	return staticInstance{value: v, format: r.format, numInputs: r.numInputs}
}

// Has reports whether the response carried the cell. The grand total always
// exists.
func (r *Result) Has(rowKey, colKey []string) bool {
	var ok bool
	switch {
	case len(rowKey) == 0 && len(colKey) == 0:
		return true
	case len(rowKey) == 0:
		_, ok = r.colTotals[flatKey(colKey)]
	case len(colKey) == 0:
		_, ok = r.rowTotals[flatKey(rowKey)]
	default:
		_, ok = r.cells[flatKey(rowKey)+"\x01"+flatKey(colKey)]
	}
	return ok
}

// RowAttrs returns the row grouping attributes.
func (r *Result) RowAttrs() []string { return slices.Clone(r.request.Rows) }

// ColAttrs returns the column grouping attributes.
func (r *Result) ColAttrs() []string { return slices.Clone(r.request.Cols) }

// RowKeys returns the row keys in display order.
func (r *Result) RowKeys() [][]string { return cloneKeys(r.rowKeys) }

// ColKeys returns the column keys in display order.
func (r *Result) ColKeys() [][]string { return cloneKeys(r.colKeys) }

// AggregatorName returns the aggregator the service used.
func (r *Result) AggregatorName() string { return r.name }

// Vals returns the value attributes of the request.
func (r *Result) Vals() []string { return slices.Clone(r.request.Vals) }

// Metadata returns the response metadata.
func (r *Result) Metadata() Metadata { return r.response.Metadata }

func cloneKeys(keys [][]string) [][]string {
	out := make([][]string, len(keys))
	for i, k := range keys {
		out[i] = slices.Clone(k)
	}
	return out
}
