package render

import (
	"io"
	"strings"

	"github.com/paveg/crosstab/internal/common"
)

// TSV exports the grid as tab separated text: one header line with the row
// attributes and the column keys joined by "-", then one line per row key
// holding the raw cell values. Null values are empty.
func TSV(g Grid) string {
	var b strings.Builder
	_ = WriteTSV(&b, g)
	return b.String()
}

// WriteTSV writes the TSV export of g to w.
func WriteTSV(w io.Writer, g Grid) error {
	rowKeys := orEmptyKey(g.RowKeys())
	colKeys := orEmptyKey(g.ColKeys())

	lines := make([][]string, 0, len(rowKeys)+1)
	header := g.RowAttrs()
	if len(colKeys) == 1 && len(colKeys[0]) == 0 {
		header = append(header, g.AggregatorName())
	} else {
		for _, c := range colKeys {
			header = append(header, strings.Join(c, "-"))
		}
	}
	lines = append(lines, header)

	for _, r := range rowKeys {
		line := append([]string(nil), r...)
		for _, c := range colKeys {
			v, _ := cellValue(g, r, c)
			if v == nil {
				line = append(line, "")
				continue
			}
			line = append(line, common.ToKey(v))
		}
		lines = append(lines, line)
	}

	for i, line := range lines {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, strings.Join(line, "\t")); err != nil {
			return err
		}
	}
	return nil
}
