// Package pivot implements the pivot data engine: it groups records by row
// and column key paths and accumulates one aggregator per cell, per row
// margin, per column margin and for the grand total.
//
// A PivotData is built once from a Config and a Source and is read-only
// afterwards, so it may be shared between goroutines once New returns.
package pivot

import (
	"log/slog"
	"slices"

	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/common"
	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/sorter"
)

type cellID struct {
	row, col int
}

// PivotData is the computed cell grid of one pivot configuration.
type PivotData struct {
	cfg    Config
	source Source
	entry  aggregator.Entry
	agg    aggregator.Aggregator

	rows      *keyIndex
	cols      *keyIndex
	cells     map[cellID]aggregator.Instance
	rowTotals []aggregator.Instance
	colTotals []aggregator.Instance
	allTotal  aggregator.Instance

	rowOrder []int
	colOrder []int

	exclude      map[string]map[string]struct{}
	include      map[string]map[string]struct{}
	derivedNames []string
	numRecords   int
}

// New validates cfg, scans source once and returns the computed grid.
// Configuration errors are returned before the source is read.
func New(source Source, cfg Config) (*PivotData, error) {
	cfg = cfg.Clone()
	entry, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	if source == nil {
		source = Records(nil)
	}

	p := &PivotData{
		cfg:     cfg,
		source:  source,
		entry:   entry,
		agg:     entry.Factory(cfg.Vals),
		rows:    newKeyIndex(),
		cols:    newKeyIndex(),
		cells:   make(map[cellID]aggregator.Instance),
		exclude: valueSets(cfg.ValueFilter),
		include: valueSets(cfg.Include),
	}
	for name := range cfg.DerivedAttributes {
		p.derivedNames = append(p.derivedNames, name)
	}
	slices.Sort(p.derivedNames)
	p.allTotal = p.agg(p, nil, nil)

	collector := monitoring.Resolve(cfg.Metrics)
	err = collector.RecordRecords(monitoring.OpPivotBuild, func() (int64, error) {
		scanErr := p.forEachRecord(func(rec Record) {
			if p.Filter(rec) {
				p.process(rec)
			}
		})
		return int64(p.numRecords), scanErr
	})
	if err != nil {
		return nil, errors.NewInternalError("NewPivotData", err)
	}

	p.rowOrder = p.sortKeys(p.rows, cfg.Rows, cfg.RowOrder.orDefault(), true)
	p.colOrder = p.sortKeys(p.cols, cfg.Cols, cfg.ColOrder.orDefault(), false)

	p.logger().Debug("pivot built",
		"aggregator", entry.Name,
		"records", p.numRecords,
		"rows", p.rows.size(),
		"cols", p.cols.size(),
		"cells", len(p.cells))
	return p, nil
}

func (p *PivotData) logger() *slog.Logger {
	l := p.cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "pivot")
}

func valueSets(filter map[string][]string) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(filter))
	for attr, values := range filter {
		if len(values) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		out[attr] = set
	}
	return out
}

// forEachRecord replays the source with derived attributes merged in. The
// caller's records are never modified.
func (p *PivotData) forEachRecord(fn func(Record)) error {
	if len(p.derivedNames) == 0 {
		return p.source.ForEach(fn)
	}
	return p.source.ForEach(func(rec Record) {
		merged := make(Record, len(rec)+len(p.derivedNames))
		for k, v := range rec {
			merged[k] = v
		}
		for _, name := range p.derivedNames {
			if v := p.cfg.DerivedAttributes[name](rec); v != nil {
				merged[name] = v
			}
		}
		fn(merged)
	})
}

// Filter reports whether rec survives the value filter and the include
// lists. Values are compared by their key string.
func (p *PivotData) Filter(rec Record) bool {
	for attr, excluded := range p.exclude {
		if _, ok := excluded[common.ToKey(rec[attr])]; ok {
			return false
		}
	}
	for attr, allowed := range p.include {
		if _, ok := allowed[common.ToKey(rec[attr])]; !ok {
			return false
		}
	}
	return true
}

func keyOf(rec Record, attrs []string) []string {
	key := make([]string, len(attrs))
	for i, attr := range attrs {
		key[i] = common.ToKey(rec[attr])
	}
	return key
}

func (p *PivotData) process(rec Record) {
	p.numRecords++
	rowKey := keyOf(rec, p.cfg.Rows)
	colKey := keyOf(rec, p.cfg.Cols)

	p.allTotal.Push(rec)

	rowID, colID := -1, -1
	if len(rowKey) > 0 {
		id, created := p.rows.insert(rowKey)
		if created {
			p.rowTotals = append(p.rowTotals, p.agg(p, rowKey, nil))
		}
		p.rowTotals[id].Push(rec)
		rowID = id
	}
	if len(colKey) > 0 {
		id, created := p.cols.insert(colKey)
		if created {
			p.colTotals = append(p.colTotals, p.agg(p, nil, colKey))
		}
		p.colTotals[id].Push(rec)
		colID = id
	}
	if rowID >= 0 && colID >= 0 {
		cid := cellID{rowID, colID}
		cell, ok := p.cells[cid]
		if !ok {
			cell = p.agg(p, rowKey, colKey)
			p.cells[cid] = cell
		}
		cell.Push(rec)
	}
}

// sortKeys returns the key ids of idx in display order. Key order compares
// paths level by level with the sorter of each attribute. Value orders rank
// whole paths by their margin value, so with nested attributes the groups of
// different parents may interleave; ties fall back to key order.
func (p *PivotData) sortKeys(idx *keyIndex, attrs []string, order Order, rows bool) []int {
	ids := make([]int, idx.size())
	for i := range ids {
		ids[i] = i
	}

	byKey := sorter.KeyComparator(p.cfg.Sorters, attrs)
	if order == OrderKeyAToZ {
		slices.SortStableFunc(ids, func(a, b int) int {
			return byKey(idx.keys[a], idx.keys[b])
		})
		return ids
	}

	totals := p.colTotals
	if rows {
		totals = p.rowTotals
	}
	values := make([]any, len(totals))
	for i, t := range totals {
		values[i] = t.Value()
	}
	descending := order == OrderValueZToA
	slices.SortStableFunc(ids, func(a, b int) int {
		if c := sorter.CompareValues(values[a], values[b], descending); c != 0 {
			return c
		}
		return byKey(idx.keys[a], idx.keys[b])
	})
	return ids
}

func orderedKeys(idx *keyIndex, order []int) [][]string {
	out := make([][]string, len(order))
	for i, id := range order {
		out[i] = slices.Clone(idx.keys[id])
	}
	return out
}

// RowKeys returns the distinct row key paths in display order. Each call
// returns a fresh copy.
func (p *PivotData) RowKeys() [][]string {
	return orderedKeys(p.rows, p.rowOrder)
}

// ColKeys returns the distinct column key paths in display order. Each call
// returns a fresh copy.
func (p *PivotData) ColKeys() [][]string {
	return orderedKeys(p.cols, p.colOrder)
}

// GetAggregator returns the instance for a cell. An empty rowKey addresses
// the column margin, an empty colKey the row margin, both empty the grand
// total. Cells no record reached get a fresh empty instance.
func (p *PivotData) GetAggregator(rowKey, colKey []string) aggregator.Instance {
	switch {
	case len(rowKey) == 0 && len(colKey) == 0:
		return p.allTotal
	case len(rowKey) == 0:
		if id, ok := p.cols.find(colKey); ok {
			return p.colTotals[id]
		}
	case len(colKey) == 0:
		if id, ok := p.rows.find(rowKey); ok {
			return p.rowTotals[id]
		}
	default:
		rowID, rowOK := p.rows.find(rowKey)
		colID, colOK := p.cols.find(colKey)
		if rowOK && colOK {
			if cell, ok := p.cells[cellID{rowID, colID}]; ok {
				return cell
			}
		}
	}
	return p.agg(p, rowKey, colKey)
}

// Has reports whether at least one record reached the cell. Margins exist
// for every observed key and the grand total always exists.
func (p *PivotData) Has(rowKey, colKey []string) bool {
	switch {
	case len(rowKey) == 0 && len(colKey) == 0:
		return true
	case len(rowKey) == 0:
		_, ok := p.cols.find(colKey)
		return ok
	case len(colKey) == 0:
		_, ok := p.rows.find(rowKey)
		return ok
	}
	rowID, rowOK := p.rows.find(rowKey)
	colID, colOK := p.cols.find(colKey)
	if !rowOK || !colOK {
		return false
	}
	_, ok := p.cells[cellID{rowID, colID}]
	return ok
}

// ForEachCell calls fn for every cell reached by at least one record, rows
// then columns in display order. Margins are not visited.
func (p *PivotData) ForEachCell(fn func(rowKey, colKey []string, inst aggregator.Instance)) {
	for _, rowID := range p.rowOrder {
		for _, colID := range p.colOrder {
			if cell, ok := p.cells[cellID{rowID, colID}]; ok {
				fn(slices.Clone(p.rows.keys[rowID]), slices.Clone(p.cols.keys[colID]), cell)
			}
		}
	}
}

// ForEachMatchingRecord rescans the source and calls fn for every record
// that survives the filter and whose attributes match criteria. Criteria
// values are key strings, "null" matching missing attributes.
func (p *PivotData) ForEachMatchingRecord(criteria map[string]string, fn func(Record)) error {
	return p.forEachRecord(func(rec Record) {
		if !p.Filter(rec) {
			return
		}
		for attr, want := range criteria {
			if common.ToKey(rec[attr]) != want {
				return
			}
		}
		fn(rec)
	})
}

// Config returns a copy of the configuration the grid was built with.
func (p *PivotData) Config() Config {
	return p.cfg.Clone()
}

// NumRecords returns the number of records that survived the filter.
func (p *PivotData) NumRecords() int {
	return p.numRecords
}

// RowAttrs returns the row grouping attributes.
func (p *PivotData) RowAttrs() []string {
	return slices.Clone(p.cfg.Rows)
}

// ColAttrs returns the column grouping attributes.
func (p *PivotData) ColAttrs() []string {
	return slices.Clone(p.cfg.Cols)
}

// AggregatorName returns the resolved aggregator name.
func (p *PivotData) AggregatorName() string {
	return p.entry.Name
}

// Vals returns the aggregator's value attributes.
func (p *PivotData) Vals() []string {
	return slices.Clone(p.cfg.Vals)
}
