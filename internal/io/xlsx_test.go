package io_test

import (
	"bytes"
	"testing"

	"github.com/paveg/crosstab/internal/io"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// salesWorkbook builds a workbook with the sales fixture on the first sheet
// and a single row on a sheet named "Q2".
func salesWorkbook(t *testing.T) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"region", "product", "revenue"},
		{"North", "A", 100},
		{"North", "B", 50},
		{"South", "A", 30},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	_, err := f.NewSheet("Q2")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Q2", "A1", "region"))
	require.NoError(t, f.SetCellValue("Q2", "A2", "East"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadXLSX(t *testing.T) {
	data := salesWorkbook(t).Bytes()

	t.Run("first sheet by default", func(t *testing.T) {
		records, err := io.ReadXLSX(bytes.NewReader(data), io.DefaultXLSXOptions())
		require.NoError(t, err)
		assert.Equal(t, pivot.Records{
			{"region": "North", "product": "A", "revenue": int64(100)},
			{"region": "North", "product": "B", "revenue": int64(50)},
			{"region": "South", "product": "A", "revenue": int64(30)},
		}, records)
	})

	t.Run("named sheet", func(t *testing.T) {
		opts := io.DefaultXLSXOptions()
		opts.Sheet = "Q2"
		records, err := io.ReadXLSX(bytes.NewReader(data), opts)
		require.NoError(t, err)
		assert.Equal(t, pivot.Records{{"region": "East"}}, records)
	})

	t.Run("missing sheet", func(t *testing.T) {
		opts := io.DefaultXLSXOptions()
		opts.Sheet = "Q3"
		_, err := io.ReadXLSX(bytes.NewReader(data), opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `sheet "Q3" not found`)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := io.ReadXLSX(bytes.NewReader([]byte("plain text")), io.DefaultXLSXOptions())
		require.Error(t, err)
	})
}
