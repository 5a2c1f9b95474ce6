package render

import (
	"fmt"
	"math"

	"github.com/paveg/crosstab/internal/common"
	"github.com/paveg/crosstab/internal/errors"
)

// HeatmapMode selects the scope over which heatmap intensities are
// normalised.
type HeatmapMode string

const (
	HeatmapNone HeatmapMode = ""
	HeatmapFull HeatmapMode = "full"
	HeatmapRow  HeatmapMode = "row"
	HeatmapCol  HeatmapMode = "col"
)

// Valid reports whether m is a known mode.
func (m HeatmapMode) Valid() bool {
	switch m {
	case HeatmapNone, HeatmapFull, HeatmapRow, HeatmapCol:
		return true
	default:
		return false
	}
}

// ColorScale maps an intensity in [0, 1] to a CSS colour.
type ColorScale func(intensity float64) string

// RedColorScale fades from white (0) to pure red (1).
func RedColorScale(intensity float64) string {
	nonRed := 255 - int(math.Round(255*intensity))
	return fmt.Sprintf("rgb(255,%d,%d)", nonRed, nonRed)
}

// Cell classes used by the table and the HTML export.
const (
	ClassAxisLabel  = "pvtAxisLabel"
	ClassColLabel   = "pvtColLabel"
	ClassRowLabel   = "pvtRowLabel"
	ClassTotalLabel = "pvtTotalLabel"
	ClassValue      = "pvtVal"
	ClassTotal      = "pvtTotal"
	ClassGrandTotal = "pvtGrandTotal"
)

// TableOptions controls table construction.
type TableOptions struct {
	Heatmap       HeatmapMode `json:"heatmap,omitempty" yaml:"heatmap,omitempty"`
	HideRowTotals bool        `json:"hideRowTotals,omitempty" yaml:"hide_row_totals,omitempty"`
	HideColTotals bool        `json:"hideColTotals,omitempty" yaml:"hide_col_totals,omitempty"`
	TotalsLabel   string      `json:"totalsLabel,omitempty" yaml:"totals_label,omitempty"`
	// Clickable adds the cell coordinates to the HTML export.
	Clickable bool `json:"clickable,omitempty" yaml:"clickable,omitempty"`

	ColorScale ColorScale `json:"-" yaml:"-"`
}

// HeaderCell is a label cell spanning one or more grid positions.
type HeaderCell struct {
	Text    string
	Class   string
	ColSpan int
	RowSpan int
}

// ValueCell is one body, margin or grand total cell.
type ValueCell struct {
	RowKey []string
	ColKey []string
	Value  any
	Text   string
	Class  string

	// Scaled is set when the heatmap assigned the cell an intensity.
	Scaled     bool
	Intensity  float64
	Background string
}

// TableRow is one rendered row: leading header cells followed by value
// cells. Header rows carry no value cells.
type TableRow struct {
	Headers []HeaderCell
	Cells   []ValueCell
}

// Table is the spanned layout of a grid.
type Table struct {
	Head      []TableRow
	Body      []TableRow
	Clickable bool
}

// NewTable lays out g as a table with column key headers merged by colspan
// and row key headers merged by rowspan, followed by the optional margin
// column and margin row.
func NewTable(g Grid, opts TableOptions) (*Table, error) {
	if !opts.Heatmap.Valid() {
		return nil, errors.NewInvalidInputError("NewTable", fmt.Sprintf("unsupported heatmap mode %q", opts.Heatmap))
	}
	if opts.TotalsLabel == "" {
		opts.TotalsLabel = DefaultTotalsLabel
	}
	if opts.ColorScale == nil {
		opts.ColorScale = RedColorScale
	}

	rowAttrs, colAttrs := g.RowAttrs(), g.ColAttrs()
	rowKeys, colKeys := g.RowKeys(), g.ColKeys()
	showRowTotals, showColTotals := !opts.HideRowTotals, !opts.HideColTotals

	t := &Table{Clickable: opts.Clickable}

	for j, attr := range colAttrs {
		var row TableRow
		if j == 0 && len(rowAttrs) > 0 {
			row.Headers = append(row.Headers, HeaderCell{ColSpan: len(rowAttrs), RowSpan: len(colAttrs)})
		}
		row.Headers = append(row.Headers, HeaderCell{Text: attr, Class: ClassAxisLabel, ColSpan: 1, RowSpan: 1})
		for i, colKey := range colKeys {
			span := spanSize(colKeys, i, j)
			if span < 0 {
				continue
			}
			rowSpan := 1
			if j == len(colAttrs)-1 && len(rowAttrs) > 0 {
				rowSpan = 2
			}
			row.Headers = append(row.Headers, HeaderCell{Text: colKey[j], Class: ClassColLabel, ColSpan: span, RowSpan: rowSpan})
		}
		if j == 0 && showRowTotals {
			rowSpan := len(colAttrs)
			if len(rowAttrs) > 0 {
				rowSpan++
			}
			row.Headers = append(row.Headers, HeaderCell{Text: opts.TotalsLabel, Class: ClassTotalLabel, ColSpan: 1, RowSpan: rowSpan})
		}
		t.Head = append(t.Head, row)
	}

	if len(rowAttrs) > 0 {
		var row TableRow
		for _, attr := range rowAttrs {
			row.Headers = append(row.Headers, HeaderCell{Text: attr, Class: ClassAxisLabel, ColSpan: 1, RowSpan: 1})
		}
		if len(colAttrs) == 0 && showRowTotals {
			row.Headers = append(row.Headers, HeaderCell{Text: opts.TotalsLabel, Class: ClassTotalLabel, ColSpan: 1, RowSpan: 1})
		}
		t.Head = append(t.Head, row)
	}

	for i, rowKey := range rowKeys {
		var row TableRow
		for j, text := range rowKey {
			span := spanSize(rowKeys, i, j)
			if span < 0 {
				continue
			}
			colSpan := 1
			if j == len(rowAttrs)-1 && len(colAttrs) > 0 {
				colSpan = 2
			}
			row.Headers = append(row.Headers, HeaderCell{Text: text, Class: ClassRowLabel, ColSpan: colSpan, RowSpan: span})
		}
		for _, colKey := range colKeys {
			row.Cells = append(row.Cells, valueCell(g, rowKey, colKey, ClassValue))
		}
		if showRowTotals {
			row.Cells = append(row.Cells, valueCell(g, rowKey, nil, ClassTotal))
		}
		t.Body = append(t.Body, row)
	}

	if showColTotals {
		colSpan := len(rowAttrs)
		if len(colAttrs) > 0 {
			colSpan++
		}
		row := TableRow{Headers: []HeaderCell{{Text: opts.TotalsLabel, Class: ClassTotalLabel, ColSpan: max(colSpan, 1), RowSpan: 1}}}
		for _, colKey := range colKeys {
			row.Cells = append(row.Cells, valueCell(g, nil, colKey, ClassTotal))
		}
		if showRowTotals {
			row.Cells = append(row.Cells, valueCell(g, nil, nil, ClassGrandTotal))
		}
		t.Body = append(t.Body, row)
	}

	if opts.Heatmap != HeatmapNone {
		t.applyHeatmap(opts.Heatmap, opts.ColorScale)
	}
	return t, nil
}

func valueCell(g Grid, rowKey, colKey []string, class string) ValueCell {
	v, inst := cellValue(g, rowKey, colKey)
	if v == nil && !g.Has(rowKey, colKey) {
		return ValueCell{RowKey: rowKey, ColKey: colKey, Class: class}
	}
	return ValueCell{RowKey: rowKey, ColKey: colKey, Value: v, Text: inst.Format(v), Class: class}
}

// spanSize returns how many consecutive keys starting at i share the prefix
// keys[i][:j+1], or -1 when key i continues the span of key i-1.
func spanSize(keys [][]string, i, j int) int {
	samePrefix := func(a, b []string) bool {
		for x := 0; x <= j; x++ {
			if a[x] != b[x] {
				return false
			}
		}
		return true
	}
	if i > 0 && samePrefix(keys[i-1], keys[i]) {
		return -1
	}
	n := 0
	for i+n < len(keys) && samePrefix(keys[i], keys[i+n]) {
		n++
	}
	return n
}

// scaleGroup collects the cells normalised together.
type scaleGroup []*ValueCell

func (sg scaleGroup) apply(scale ColorScale) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range sg {
		if x, ok := numericValue(c.Value); ok {
			lo, hi = min(lo, x), max(hi, x)
		}
	}
	for _, c := range sg {
		x, ok := numericValue(c.Value)
		if !ok {
			continue
		}
		intensity := 0.0
		if hi > lo {
			intensity = (x - lo) / (hi - lo)
		}
		c.Scaled = true
		c.Intensity = intensity
		c.Background = scale(intensity)
	}
}

func numericValue(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if _, isString := v.(string); isString {
		return 0, false
	}
	x, ok := common.ToFloat64(v)
	if !ok || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

// applyHeatmap colours body cells per mode. Row margins and column margins
// are each scaled against their own values; the grand total is left
// uncoloured.
func (t *Table) applyHeatmap(mode HeatmapMode, scale ColorScale) {
	var (
		full      scaleGroup
		byRow     = map[int]scaleGroup{}
		byCol     = map[int]scaleGroup{}
		rowMargin scaleGroup
		colMargin scaleGroup
	)

	for r := range t.Body {
		cells := t.Body[r].Cells
		col := 0
		for c := range cells {
			cell := &cells[c]
			switch cell.Class {
			case ClassValue:
				full = append(full, cell)
				byRow[r] = append(byRow[r], cell)
				byCol[col] = append(byCol[col], cell)
				col++
			case ClassTotal:
				if len(cell.ColKey) == 0 {
					rowMargin = append(rowMargin, cell)
				} else {
					colMargin = append(colMargin, cell)
				}
			}
		}
	}

	switch mode {
	case HeatmapFull:
		full.apply(scale)
	case HeatmapRow:
		for _, group := range byRow {
			group.apply(scale)
		}
	case HeatmapCol:
		for _, group := range byCol {
			group.apply(scale)
		}
	}
	rowMargin.apply(scale)
	colMargin.apply(scale)
}
