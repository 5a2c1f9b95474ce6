package io

import (
	"fmt"
	"io"
	"slices"

	"github.com/paveg/crosstab/internal/pivot"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads one sheet of a spreadsheet into records. Cells are read as
// their formatted text and typed like CSV columns.
func ReadXLSX(r io.Reader, opts XLSXOptions) (pivot.Records, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}
	sheet := sheets[0]
	if opts.Sheet != "" {
		if !slices.Contains(sheets, opts.Sheet) {
			return nil, fmt.Errorf("sheet %q not found (have %v)", opts.Sheet, sheets)
		}
		sheet = opts.Sheet
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return rowsToRecords(rows, opts.Header, opts.InferTypes), nil
}
