package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/crosstab/internal/config"
	cio "github.com/paveg/crosstab/internal/io"
	"github.com/paveg/crosstab/internal/server"
	"github.com/paveg/crosstab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "region,product,revenue\nNorth,A,100\nNorth,B,50\nSouth,A,30\n"

func writeSales(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o600))
	return path
}

func TestRunLocal(t *testing.T) {
	path := writeSales(t)

	tests := []struct {
		name     string
		args     []string
		expected string
		contains string
	}{
		{
			name:     "sum as tsv",
			args:     []string{"-rows", "region", "-cols", "product", "-vals", "revenue", "-aggregator", "Sum", "-tsv", path},
			expected: "region\tA\tB\nNorth\t100\t50\nSouth\t30\t\n",
		},
		{
			name:     "excluded value",
			args:     []string{"-rows", "region", "-exclude", "region=South", "-tsv", path},
			expected: "region\tCount\nNorth\t2\n",
		},
		{
			name:     "kept values",
			args:     []string{"-rows", "region,product", "-include", "product=B", "-tsv", path},
			expected: "region\tproduct\tCount\nNorth\tB\t1\n",
		},
		{
			name:     "heatmap html",
			args:     []string{"-rows", "region", "-renderer", "Table Heatmap", path},
			contains: `<table class="pvtTable">`,
		},
		{
			name:     "chart json",
			args:     []string{"-rows", "region", "-cols", "product", "-renderer", "Line Chart", path},
			contains: `"type": "line"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, runLocal(context.Background(), config.NewConfig(), tt.args, &out))
			if tt.expected != "" {
				assert.Equal(t, tt.expected, out.String())
			}
			if tt.contains != "" {
				assert.Contains(t, out.String(), tt.contains)
			}
		})
	}
}

func TestRunLocal_Errors(t *testing.T) {
	path := writeSales(t)

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{"no input", []string{"-rows", "region"}, "expected one input path, got 0"},
		{"unknown aggregator", []string{"-aggregator", "Nope", path}, `"Nope" is not registered`},
		{"missing file", []string{filepath.Join(t.TempDir(), "missing.csv")}, "no such file"},
		{"bad filter", []string{"-exclude", "region", path}, "want attr=value"},
		{"unknown renderer", []string{"-renderer", "Sparkline", path}, `unknown renderer "Sparkline"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runLocal(context.Background(), config.NewConfig(), tt.args, io.Discard)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestRunRemote(t *testing.T) {
	catalog := server.NewMemoryCatalog()
	catalog.Add("demo", "sales", testutil.SalesRecords())
	srv := httptest.NewServer(server.NewServer("", server.NewHandler(catalog,
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))).Handler)
	defer srv.Close()

	args := []string{
		"-url", srv.URL + server.BasePath,
		"-connection", "demo", "-table", "sales",
		"-rows", "region", "-cols", "product", "-vals", "revenue", "-aggregator", "Sum",
		"-tsv",
	}
	var out bytes.Buffer
	require.NoError(t, runRemote(context.Background(), config.NewConfig(), args, &out))
	assert.Equal(t, "region\tA\tB\nNorth\t100\t50\nSouth\t30\t\n", out.String())

	err := runRemote(context.Background(), config.NewConfig(), []string{"-url", srv.URL + server.BasePath, "-connection", "demo", "-table", "orders"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "orders" not found`)
}

func TestBuildCatalog(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeSales(t)

	dbPath := filepath.Join(dir, "warehouse.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE employees (name TEXT, department TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO employees VALUES ('Alice', 'Engineering')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	catalog, closeAll, err := buildCatalog(ctx, "local",
		[]string{csvPath, "orders=" + csvPath},
		[]string{"warehouse=" + dbPath},
		cio.DefaultOptions(), logger)
	defer closeAll()
	require.NoError(t, err)

	for _, tc := range []struct{ conn, table string }{{"local", "sales"}, {"local", "orders"}, {"warehouse", "employees"}} {
		table, err := catalog.Table(ctx, tc.conn, tc.table)
		require.NoError(t, err, "%s/%s", tc.conn, tc.table)
		assert.NotEmpty(t, table.Records)
	}

	_, closeBad, err := buildCatalog(ctx, "local", nil, []string{"warehouse"}, cio.DefaultOptions(), logger)
	defer closeBad()
	assert.ErrorContains(t, err, "want code=path")
}

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"data/sales.csv":       "sales",
		"data/sales.csv.gz":    "sales",
		"/tmp/events.jsonl.xz": "events",
		"orders":               "orders",
	}
	for path, expected := range tests {
		assert.Equal(t, expected, tableName(path), path)
	}
}

func TestFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var pf pivotFlags
	pf.register(fs, config.NewConfig())

	require.NoError(t, fs.Parse([]string{
		"-rows", "region, product", "-rows", "year",
		"-exclude", "region=South", "-exclude", "region=East",
		"-include", "product=",
		"-row-order", "value_z_to_a",
	}))

	cfg := pf.pivotConfig()
	assert.Equal(t, []string{"region", "product", "year"}, cfg.Rows)
	assert.Equal(t, map[string][]string{"region": {"South", "East"}}, cfg.ValueFilter)
	assert.Equal(t, map[string][]string{"product": {""}}, cfg.Include)
	assert.Equal(t, "Count", cfg.AggregatorName)
	assert.EqualValues(t, "value_z_to_a", cfg.RowOrder)
	assert.EqualValues(t, "key_a_to_z", cfg.ColOrder)
}

func TestRunAggregators(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runAggregators(&out))
	assert.Contains(t, out.String(), "Sum over Sum")
	assert.Contains(t, out.String(), "inputs=2")
}

func TestRunBench(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runBench(config.NewConfig(), []string{"-records", "200", "-iterations", "1"}, &out))

	report := out.String()
	assert.Contains(t, report, "# crosstab Benchmark Report")
	assert.Contains(t, report, "| sum over sum | 200 | 1 |")
	assert.Contains(t, report, "| heatmap html | 200 | 1 |")
	assert.NotContains(t, report, "FAILED")

	assert.ErrorContains(t, runBench(config.NewConfig(), []string{"-records", "0"}, io.Discard), "records must be positive")
}

func TestSyntheticRecords(t *testing.T) {
	records := syntheticRecords(16)
	require.Len(t, records, 16)
	assert.Equal(t, syntheticRecords(16), records)
	assert.Equal(t, "North", records[0]["region"])
	assert.Equal(t, "P07", records[1]["product"])
}
