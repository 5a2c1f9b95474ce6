package remote_test

import (
	"testing"

	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/paveg/crosstab/internal/remote"
	"github.com/paveg/crosstab/internal/render"
	"github.com/paveg/crosstab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesRequest(subtotals bool) *remote.Request {
	req, _ := remote.BuildRequest("warehouse", "sales", testutil.SalesConfig())
	req.IncludeSubtotals = subtotals
	return req
}

// rollupResponse is what a grouping-sets query returns for the sales
// scenario: leaf cells, both margins and the grand total.
func rollupResponse() *remote.Response {
	return &remote.Response{
		Data: []map[string]any{
			{"region": "South", "product": "A", "revenue": 30},
			{"region": "North", "product": "A", "revenue": 100},
			{"region": "North", "product": "B", "revenue": 50.0},
			{"region": "North", "product": nil, "revenue": 150.0},
			{"region": "South", "product": nil, "revenue": 30.0},
			{"region": nil, "product": "A", "revenue": 130.0},
			{"region": nil, "product": "B", "revenue": 50.0},
			{"region": nil, "product": nil, "revenue": 180.0},
		},
		Metadata: remote.Metadata{RowCount: 8, AggregatorUsed: "Sum"},
	}
}

func TestNewResult_Subtotals(t *testing.T) {
	result, err := remote.NewResult(salesRequest(true), rollupResponse(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"region"}, result.RowAttrs())
	assert.Equal(t, []string{"product"}, result.ColAttrs())
	assert.Equal(t, [][]string{{"North"}, {"South"}}, result.RowKeys())
	assert.Equal(t, [][]string{{"A"}, {"B"}}, result.ColKeys())
	assert.Equal(t, "Sum", result.AggregatorName())
	assert.Equal(t, 8, result.Metadata().RowCount)

	tests := []struct {
		name   string
		row    []string
		col    []string
		value  any
		format string
	}{
		{"cell", []string{"North"}, []string{"A"}, 100.0, "100.00"},
		{"integer cell normalised", []string{"South"}, []string{"A"}, 30.0, "30.00"},
		{"missing cell", []string{"South"}, []string{"B"}, nil, ""},
		{"row margin", []string{"North"}, nil, 150.0, "150.00"},
		{"col margin", nil, []string{"A"}, 130.0, "130.00"},
		{"grand total", nil, nil, 180.0, "180.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := result.GetAggregator(tt.row, tt.col)
			assert.Equal(t, tt.value, inst.Value())
			assert.Equal(t, tt.format, inst.Format(inst.Value()))
			assert.Equal(t, 1, inst.NumInputs())
		})
	}
}

func TestNewResult_RendersLikeLocalPivot(t *testing.T) {
	local := testutil.BuildPivot(t, testutil.SalesRecords(), testutil.SalesConfig())
	result, err := remote.NewResult(salesRequest(true), rollupResponse(), nil)
	require.NoError(t, err)

	for _, heatmap := range []render.HeatmapMode{render.HeatmapNone, render.HeatmapFull, render.HeatmapRow, render.HeatmapCol} {
		t.Run("heatmap="+string(heatmap), func(t *testing.T) {
			want, err := render.NewTable(local, render.TableOptions{Heatmap: heatmap})
			require.NoError(t, err)
			got, err := render.NewTable(result, render.TableOptions{Heatmap: heatmap})
			require.NoError(t, err)
			assert.Equal(t, want.HTML(), got.HTML())
		})
	}

	assert.Equal(t, render.TSV(local), render.TSV(result))
	assert.Equal(t, render.Chart(local, render.ChartOptions{}), render.Chart(result, render.ChartOptions{}))
}

func TestNewResult_LeafRows(t *testing.T) {
	resp := salesResponse()
	resp.AggregatedData = map[string]any{"revenue": 180}

	result, err := remote.NewResult(salesRequest(false), resp, nil)
	require.NoError(t, err)

	testutil.AssertCellValue(t, result, []string{"North"}, []string{"B"}, 50.0)
	testutil.AssertCellValue(t, result, []string{"North"}, nil, nil)
	testutil.AssertCellValue(t, result, nil, []string{"A"}, nil)
	testutil.AssertCellValue(t, result, nil, nil, 180.0)

	assert.True(t, result.Has([]string{"North"}, []string{"B"}))
	assert.False(t, result.Has([]string{"South"}, []string{"B"}))
	assert.False(t, result.Has([]string{"North"}, nil))
	assert.True(t, result.Has(nil, nil))
}

func TestNewResult_SingleAxis(t *testing.T) {
	t.Run("rows only", func(t *testing.T) {
		req := &remote.Request{Rows: []string{"region"}, AggregatorName: "Count"}
		resp := &remote.Response{Data: []map[string]any{
			{"region": "South", remote.ValueColumn: 1},
			{"region": "North", remote.ValueColumn: 2},
		}}

		result, err := remote.NewResult(req, resp, nil)
		require.NoError(t, err)

		assert.Equal(t, [][]string{{"North"}, {"South"}}, result.RowKeys())
		assert.Empty(t, result.ColKeys())
		inst := result.GetAggregator([]string{"North"}, nil)
		assert.Equal(t, 2.0, inst.Value())
		assert.Equal(t, "2", inst.Format(inst.Value()))
		assert.Equal(t, 0, inst.NumInputs())
		assert.Equal(t, "region\tCount\nNorth\t2\nSouth\t1", render.TSV(result))
	})

	t.Run("cols only", func(t *testing.T) {
		req := &remote.Request{Cols: []string{"product"}, AggregatorName: "Count"}
		resp := &remote.Response{Data: []map[string]any{
			{"product": "A", remote.ValueColumn: 2},
			{"product": "B", remote.ValueColumn: 1},
		}}

		result, err := remote.NewResult(req, resp, nil)
		require.NoError(t, err)
		testutil.AssertCellValue(t, result, nil, []string{"B"}, 1.0)
	})

	t.Run("no grouping", func(t *testing.T) {
		req := &remote.Request{AggregatorName: "Count"}
		resp := &remote.Response{
			Data:           []map[string]any{{remote.ValueColumn: 3}},
			AggregatedData: map[string]any{remote.ValueColumn: 99},
		}

		result, err := remote.NewResult(req, resp, nil)
		require.NoError(t, err)
		testutil.AssertCellValue(t, result, nil, nil, 3.0)
		assert.Equal(t, "Count\n3", render.TSV(result))
	})
}

func TestNewResult_ValueOrders(t *testing.T) {
	tests := []struct {
		name  string
		order pivot.Order
		want  [][]string
	}{
		{"key order", pivot.OrderKeyAToZ, [][]string{{"North"}, {"South"}}},
		{"ascending totals", pivot.OrderValueAToZ, [][]string{{"South"}, {"North"}}},
		{"descending totals", pivot.OrderValueZToA, [][]string{{"North"}, {"South"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := salesRequest(true)
			req.RowOrder = tt.order
			result, err := remote.NewResult(req, rollupResponse(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.RowKeys())
		})
	}

	t.Run("without margins the service order is kept", func(t *testing.T) {
		req := salesRequest(false)
		req.ColOrder = pivot.OrderValueAToZ
		resp := &remote.Response{Data: []map[string]any{
			{"region": "North", "product": "B", "revenue": 50},
			{"region": "North", "product": "A", "revenue": 100},
		}}
		result, err := remote.NewResult(req, resp, nil)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"B"}, {"A"}}, result.ColKeys())
	})
}

func TestNewResult_AggregatorName(t *testing.T) {
	t.Run("unknown aggregator keeps the service name", func(t *testing.T) {
		resp := salesResponse()
		resp.Metadata.AggregatorUsed = "Geometric Mean"
		result, err := remote.NewResult(salesRequest(false), resp, nil)
		require.NoError(t, err)

		assert.Equal(t, "Geometric Mean", result.AggregatorName())
		inst := result.GetAggregator([]string{"North"}, []string{"A"})
		assert.Equal(t, "100.00", inst.Format(inst.Value()))
	})

	t.Run("request name when metadata is silent", func(t *testing.T) {
		resp := salesResponse()
		resp.Metadata.AggregatorUsed = ""
		result, err := remote.NewResult(salesRequest(false), resp, nil)
		require.NoError(t, err)
		assert.Equal(t, "Sum", result.AggregatorName())
	})

	t.Run("defaults to count", func(t *testing.T) {
		result, err := remote.NewResult(&remote.Request{}, &remote.Response{}, nil)
		require.NoError(t, err)
		assert.Equal(t, pivot.DefaultAggregator, result.AggregatorName())
		assert.Nil(t, result.GetAggregator(nil, nil).Value())
	})
}

func TestNewResult_KeysAreCopies(t *testing.T) {
	result, err := remote.NewResult(salesRequest(true), rollupResponse(), nil)
	require.NoError(t, err)

	keys := result.RowKeys()
	keys[0][0] = "mutated"
	assert.Equal(t, [][]string{{"North"}, {"South"}}, result.RowKeys())
}

func TestNewResult_RequiresRequestAndResponse(t *testing.T) {
	_, err := remote.NewResult(nil, &remote.Response{}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = remote.NewResult(&remote.Request{}, nil, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
