package io_test

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/io"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const salesCSV = "region,product,revenue\nNorth,A,100\nNorth,B,50\nSouth,A,30\n"

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path     string
		expected io.Format
	}{
		{"sales.csv", io.FormatCSV},
		{"SALES.CSV", io.FormatCSV},
		{"sales.csv.gz", io.FormatCSV},
		{"dir/sales.tsv.xz", io.FormatTSV},
		{"sales.tab", io.FormatTSV},
		{"sales.json", io.FormatJSON},
		{"sales.ndjson", io.FormatJSONLines},
		{"sales.jsonl.gz", io.FormatJSONLines},
		{"book.xlsx", io.FormatXLSX},
		{"data.parquet", io.FormatParquet},
		{"data.pq", io.FormatParquet},
		{"notes.txt", ""},
		{"sales", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, io.DetectFormat(tt.path))
		})
	}
}

func TestDecompress(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected io.Compression
	}{
		{"plain", []byte(salesCSV), io.CompressionNone},
		{"gzip", gzipBytes(t, salesCSV), io.CompressionGzip},
		{"xz", xzBytes(t, salesCSV), io.CompressionXZ},
		{"short plain", []byte("a"), io.CompressionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, c, err := io.Decompress(bytes.NewReader(tt.data))
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, tt.expected, c)
			assert.Equal(t, tt.expected.String(), c.String())
		})
	}

	t.Run("corrupt gzip", func(t *testing.T) {
		_, _, err := io.Decompress(bytes.NewReader([]byte{0x1f, 0x8b, 0x00}))
		require.Error(t, err)
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	expected := pivot.Records{
		{"region": "North", "product": "A", "revenue": int64(100)},
		{"region": "North", "product": "B", "revenue": int64(50)},
		{"region": "South", "product": "A", "revenue": int64(30)},
	}

	files := map[string][]byte{
		"sales.csv":    []byte(salesCSV),
		"sales.csv.gz": gzipBytes(t, salesCSV),
		"sales.tsv.xz": xzBytes(t, strings.ReplaceAll(salesCSV, ",", "\t")),
		"sales.jsonl": []byte(`{"region":"North","product":"A","revenue":100}
{"region":"North","product":"B","revenue":50}
{"region":"South","product":"A","revenue":30}
`),
	}

	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			writeFile(t, path, data)

			records, err := io.LoadFile(path, io.DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, expected, records)
		})
	}

	t.Run("format override", func(t *testing.T) {
		path := filepath.Join(dir, "export.dat")
		writeFile(t, path, []byte(salesCSV))

		opts := io.DefaultOptions()
		opts.Format = io.FormatCSV
		records, err := io.LoadFile(path, opts)
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("undetectable format", func(t *testing.T) {
		path := filepath.Join(dir, "export.dat")
		writeFile(t, path, []byte(salesCSV))

		_, err := io.LoadFile(path, io.DefaultOptions())
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := io.LoadFile(filepath.Join(dir, "missing.csv"), io.DefaultOptions())
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("metrics", func(t *testing.T) {
		collector := monitoring.NewMetricsCollector(true)
		path := filepath.Join(dir, "metrics.csv")
		writeFile(t, path, []byte(salesCSV))

		opts := io.DefaultOptions()
		opts.Metrics = collector
		_, err := io.LoadFile(path, opts)
		require.NoError(t, err)

		metrics := collector.GetMetrics()
		require.Len(t, metrics, 1)
		assert.Equal(t, monitoring.OpLoadRecords, metrics[0].Operation)
		assert.Equal(t, int64(3), metrics[0].RecordsProcessed)
		assert.False(t, metrics[0].Failed)
	})
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "2024", "b.csv"), []byte("region\nSouth\n"))
	writeFile(t, filepath.Join(dir, "2024", "a.csv"), []byte("region\nNorth\n"))
	writeFile(t, filepath.Join(dir, "2025", "q1", "c.csv"), []byte("region\nEast\n"))
	writeFile(t, filepath.Join(dir, "2025", "notes.txt"), []byte("ignored"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty.csv"), 0o755))

	t.Run("recursive pattern in path order", func(t *testing.T) {
		records, err := io.LoadGlob(filepath.Join(dir, "**", "*.csv"), io.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, pivot.Records{
			{"region": "North"},
			{"region": "South"},
			{"region": "East"},
		}, records)
	})

	t.Run("worker count keeps path order", func(t *testing.T) {
		for _, workers := range []int{1, 8} {
			opts := io.DefaultOptions()
			opts.Workers = workers
			records, err := io.LoadGlob(filepath.Join(dir, "**", "*.csv"), opts)
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, "North", records[0]["region"], "workers=%d", workers)
			assert.Equal(t, "East", records[2]["region"], "workers=%d", workers)
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, err := io.LoadGlob(filepath.Join(dir, "**", "*.parquet"), io.DefaultOptions())
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := io.LoadGlob(filepath.Join(dir, "[a"), io.DefaultOptions())
		require.Error(t, err)
	})

	t.Run("first failing file stops the load", func(t *testing.T) {
		sub := t.TempDir()
		writeFile(t, filepath.Join(sub, "bad.json"), []byte("{"))
		_, err := io.LoadGlob(filepath.Join(sub, "*.json"), io.DefaultOptions())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.json")
	})
}
