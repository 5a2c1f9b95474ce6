package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/paveg/crosstab/internal/remote"
	"github.com/paveg/crosstab/internal/render"
	"github.com/paveg/crosstab/internal/server"
	"github.com/paveg/crosstab/internal/testutil"
	"github.com/paveg/crosstab/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	client    *remote.Client
	collector *monitoring.MetricsCollector
	baseURL   string
}

func newTestEnv(t *testing.T, opts ...server.Option) *testEnv {
	t.Helper()

	catalog := server.NewMemoryCatalog()
	catalog.Add("demo", "sales", testutil.SalesRecords())
	catalog.Add("demo", "employees", testutil.CreateTestRecords())

	collector := monitoring.NewMetricsCollector(true)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]server.Option{server.WithMetrics(collector), server.WithLogger(logger)}, opts...)

	srv := httptest.NewServer(server.NewServer("", server.NewHandler(catalog, opts...)).Handler)
	t.Cleanup(srv.Close)

	baseURL := srv.URL + server.BasePath
	return &testEnv{client: remote.NewClient(baseURL), collector: collector, baseURL: baseURL}
}

func (e *testEnv) pivot(t *testing.T, table string, cfg pivot.Config, subtotals bool) (*remote.Request, *remote.Response) {
	t.Helper()
	req, err := remote.BuildRequest("demo", table, cfg)
	require.NoError(t, err)
	req.IncludeSubtotals = subtotals
	resp, err := e.client.ExecutePivot(context.Background(), req, "")
	require.NoError(t, err)
	return req, resp
}

func TestPivot_RendersLikeLocalEngine(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		table   string
		records pivot.Records
		cfg     pivot.Config
	}{
		{"sales sum", "sales", testutil.SalesRecords(), testutil.SalesConfig()},
		{
			name:    "employee average salary",
			table:   "employees",
			records: testutil.CreateTestRecords(),
			cfg: pivot.Config{
				Rows:           []string{"department"},
				Cols:           []string{"active"},
				Vals:           []string{"salary"},
				AggregatorName: "Average",
			},
		},
		{
			name:    "value ordered rows",
			table:   "employees",
			records: testutil.CreateTestRecords(),
			cfg: pivot.Config{
				Rows:           []string{"department"},
				Cols:           []string{"active"},
				Vals:           []string{"salary"},
				AggregatorName: "Sum",
				RowOrder:       pivot.OrderValueZToA,
			},
		},
		{
			name:    "filtered",
			table:   "employees",
			records: testutil.CreateTestRecords(),
			cfg: pivot.Config{
				Rows:           []string{"department"},
				Cols:           []string{"active"},
				Vals:           []string{"age"},
				AggregatorName: "Maximum",
				Include:        map[string][]string{"department": {"Engineering", "Sales"}},
				ValueFilter:    map[string][]string{"name": {"Charlie"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := testutil.BuildPivot(t, tt.records, tt.cfg)
			req, resp := env.pivot(t, tt.table, tt.cfg, true)
			result, err := remote.NewResult(req, resp, nil)
			require.NoError(t, err)

			assert.Equal(t, local.RowKeys(), result.RowKeys())
			assert.Equal(t, local.ColKeys(), result.ColKeys())
			for _, heatmap := range []render.HeatmapMode{render.HeatmapNone, render.HeatmapFull, render.HeatmapRow, render.HeatmapCol} {
				want, err := render.NewTable(local, render.TableOptions{Heatmap: heatmap})
				require.NoError(t, err)
				got, err := render.NewTable(result, render.TableOptions{Heatmap: heatmap})
				require.NoError(t, err)
				assert.Equal(t, want.HTML(), got.HTML(), "heatmap=%s", heatmap)
			}
			assert.Equal(t, render.TSV(local), render.TSV(result))
		})
	}
}

func TestPivot_ResponseShape(t *testing.T) {
	env := newTestEnv(t)

	t.Run("leaf rows", func(t *testing.T) {
		_, resp := env.pivot(t, "sales", testutil.SalesConfig(), false)
		assert.Equal(t, []map[string]any{
			{"region": "North", "product": "A", "revenue": 100.0},
			{"region": "North", "product": "B", "revenue": 50.0},
			{"region": "South", "product": "A", "revenue": 30.0},
		}, resp.Data)
		assert.Equal(t, map[string]any{"revenue": 180.0}, resp.AggregatedData)
		assert.Equal(t, 3, resp.Metadata.RowCount)
		assert.Equal(t, "Sum", resp.Metadata.AggregatorUsed)
		assert.False(t, resp.Metadata.Cached)
		assert.Equal(t, []string{"product", "region", "revenue"}, resp.Metadata.AvailableColumns)
	})

	t.Run("rollup rows", func(t *testing.T) {
		_, resp := env.pivot(t, "sales", testutil.SalesConfig(), true)
		assert.Equal(t, []map[string]any{
			{"region": "North", "product": "A", "revenue": 100.0},
			{"region": "North", "product": "B", "revenue": 50.0},
			{"region": "South", "product": "A", "revenue": 30.0},
			{"region": "North", "product": nil, "revenue": 150.0},
			{"region": "South", "product": nil, "revenue": 30.0},
			{"region": nil, "product": "A", "revenue": 130.0},
			{"region": nil, "product": "B", "revenue": 50.0},
			{"region": nil, "product": nil, "revenue": 180.0},
		}, resp.Data)
	})

	t.Run("count without vals", func(t *testing.T) {
		_, resp := env.pivot(t, "sales", pivot.Config{Rows: []string{"region"}, AggregatorName: "count"}, false)
		assert.Equal(t, []map[string]any{
			{"region": "North", remote.ValueColumn: 2.0},
			{"region": "South", remote.ValueColumn: 1.0},
		}, resp.Data)
		assert.Equal(t, "Count", resp.Metadata.AggregatorUsed)
	})

	t.Run("no grouping", func(t *testing.T) {
		req, resp := env.pivot(t, "sales", pivot.Config{AggregatorName: "Count"}, false)
		assert.Equal(t, []map[string]any{{remote.ValueColumn: 3.0}}, resp.Data)

		result, err := remote.NewResult(req, resp, nil)
		require.NoError(t, err)
		assert.Equal(t, "Count\n3", render.TSV(result))
	})

	t.Run("limit", func(t *testing.T) {
		req, err := remote.BuildRequest("demo", "sales", testutil.SalesConfig())
		require.NoError(t, err)
		req.Limit = 2
		resp, err := env.client.ExecutePivot(context.Background(), req, "")
		require.NoError(t, err)
		assert.Len(t, resp.Data, 2)
		assert.Equal(t, 2, resp.Metadata.RowCount)
	})
}

func TestPivot_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		req     remote.Request
		status  int
		message string
	}{
		{
			name:    "missing connection code",
			req:     remote.Request{TableName: "sales"},
			status:  http.StatusBadRequest,
			message: "connectionCode is required",
		},
		{
			name:    "missing table name",
			req:     remote.Request{ConnectionCode: "demo"},
			status:  http.StatusBadRequest,
			message: "tableName is required",
		},
		{
			name:    "negative limit",
			req:     remote.Request{ConnectionCode: "demo", TableName: "sales", Limit: -1},
			status:  http.StatusBadRequest,
			message: "limit must not be negative",
		},
		{
			name:    "unknown aggregator",
			req:     remote.Request{ConnectionCode: "demo", TableName: "sales", AggregatorName: "Geometric Mean"},
			status:  http.StatusBadRequest,
			message: "Invalid request: ",
		},
		{
			name:    "attribute in rows and cols",
			req:     remote.Request{ConnectionCode: "demo", TableName: "sales", Rows: []string{"region"}, Cols: []string{"region"}},
			status:  http.StatusBadRequest,
			message: "Invalid request: ",
		},
		{
			name:    "missing vals",
			req:     remote.Request{ConnectionCode: "demo", TableName: "sales", AggregatorName: "Sum"},
			status:  http.StatusBadRequest,
			message: "Invalid request: ",
		},
		{
			name:    "invalid order",
			req:     remote.Request{ConnectionCode: "demo", TableName: "sales", RowOrder: "sideways"},
			status:  http.StatusBadRequest,
			message: "Invalid request: ",
		},
		{
			name:    "unknown table",
			req:     remote.Request{ConnectionCode: "demo", TableName: "orders"},
			status:  http.StatusNotFound,
			message: `table "orders" not found for connection "demo"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.ExecutePivot(context.Background(), &tt.req, "")
			require.Error(t, err)

			var se *remote.ServerError
			require.True(t, stderrors.As(err, &se), "expected a server error, got %v", err)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.True(t, strings.HasPrefix(se.Message, tt.message), "message %q", se.Message)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(env.baseURL+"/pivot", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body remote.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, strings.HasPrefix(body.Error, "Invalid request: "))
		assert.NotZero(t, body.Timestamp)
	})
}

func TestPivot_Cache(t *testing.T) {
	env := newTestEnv(t, server.WithCache(server.NewCache(10, 0)))
	ctx := context.Background()

	_, first := env.pivot(t, "sales", testutil.SalesConfig(), false)
	assert.False(t, first.Metadata.Cached)
	_, second := env.pivot(t, "sales", testutil.SalesConfig(), false)
	assert.True(t, second.Metadata.Cached)
	assert.Equal(t, first.Data, second.Data)

	stats, err := env.client.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.MaxSize)
	assert.Equal(t, int64(1), stats.Hits)

	require.NoError(t, env.client.ClearCache(ctx))
	stats, err = env.client.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Size)

	_, third := env.pivot(t, "sales", testutil.SalesConfig(), false)
	assert.False(t, third.Metadata.Cached)

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, server.WithCache(nil))
		env.pivot(t, "sales", testutil.SalesConfig(), false)
		_, resp := env.pivot(t, "sales", testutil.SalesConfig(), false)
		assert.False(t, resp.Metadata.Cached)
	})
}

func TestPivot_Metrics(t *testing.T) {
	env := newTestEnv(t, server.WithCache(nil))
	env.pivot(t, "sales", testutil.SalesConfig(), false)

	var served []monitoring.OperationMetrics
	for _, m := range env.collector.GetMetrics() {
		if m.Operation == monitoring.OpServePivot {
			served = append(served, m)
		}
	}
	require.Len(t, served, 1)
	assert.Equal(t, int64(3), served[0].RecordsProcessed)

	resp, err := http.Get(env.baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestMetadataRoutes(t *testing.T) {
	env := newTestEnv(t, server.WithServiceName("analytics-test"))
	ctx := context.Background()

	names, err := env.client.SupportedAggregators(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "Count")
	assert.Contains(t, names, "Sum over Sum")

	display, err := env.client.AggregatorDisplayNames(ctx)
	require.NoError(t, err)
	assert.Len(t, display, len(names))

	health, err := env.client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, remote.HealthStatus{Status: "UP", Service: "analytics-test", SupportedAggregators: len(names), Version: version.Version}, *health)
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.baseURL+"/health", http.NoBody)
	require.NoError(t, err)
	req.Header.Set(remote.RequestIDHeader, "editor-7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "editor-7", resp.Header.Get(remote.RequestIDHeader))

	resp, err = http.Get(env.baseURL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(remote.RequestIDHeader))
}

func TestRouting(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"unknown route", http.MethodGet, "/reports", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/pivot", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, env.baseURL+tt.path, http.NoBody)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestSwaggerDocument(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.baseURL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "/api/analytics", doc["basePath"])
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	for _, p := range []string{"/pivot", "/aggregators", "/health", "/cache/stats"} {
		assert.Contains(t, paths, p)
	}
}

func TestExecute_SQLCatalog(t *testing.T) {
	sqlCtx := testutil.SetupSQLTest(t)
	defer sqlCtx.Release()

	catalog := server.NewSQLCatalog()
	catalog.Register("warehouse", sqlCtx.DB)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := server.NewHandler(catalog, server.WithLogger(logger), server.WithMetrics(monitoring.NewMetricsCollector(false)))

	req, err := remote.BuildRequest("warehouse", "sales", testutil.SalesConfig())
	require.NoError(t, err)
	req.IncludeSubtotals = true
	resp, err := h.Execute(context.Background(), req)
	require.NoError(t, err)

	result, err := remote.NewResult(req, resp, nil)
	require.NoError(t, err)
	local := testutil.BuildPivot(t, testutil.SalesRecords(), testutil.SalesConfig())
	assert.Equal(t, render.TSV(local), render.TSV(result))

	_, err = h.Execute(context.Background(), &remote.Request{ConnectionCode: "warehouse", TableName: "missing"})
	assert.ErrorIs(t, err, errors.ErrUnknownTable)
}

func TestHandler_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := server.NewHandler(server.NewMemoryCatalog(), server.WithLogger(logger))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "server", entry["component"])
	assert.Equal(t, "/health", entry["path"])
	assert.InDelta(t, 200, entry["status"], 0)
	assert.NotEmpty(t, entry["request_id"])
}
