package remote_test

import (
	"encoding/json"
	"testing"

	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/paveg/crosstab/internal/remote"
	"github.com/paveg/crosstab/internal/sorter"
	"github.com/paveg/crosstab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	cfg := testutil.SalesConfig()
	cfg.ValueFilter = map[string][]string{"region": {"North"}, "product": {}}
	cfg.Include = map[string][]string{"product": {"A", "B"}}
	cfg.RowOrder = pivot.OrderValueZToA

	req, err := remote.BuildRequest("warehouse", "sales", cfg)
	require.NoError(t, err)

	assert.Equal(t, &remote.Request{
		ConnectionCode: "warehouse",
		TableName:      "sales",
		Rows:           []string{"region"},
		Cols:           []string{"product"},
		Vals:           []string{"revenue"},
		AggregatorName: "Sum",
		Filters:        map[string][]string{"product": {"A", "B"}},
		Exclusions:     map[string][]string{"region": {"North"}},
		RowOrder:       pivot.OrderValueZToA,
		ColOrder:       pivot.OrderKeyAToZ,
	}, req)

	back := req.PivotConfig()
	assert.Equal(t, cfg.Rows, back.Rows)
	assert.Equal(t, cfg.Cols, back.Cols)
	assert.Equal(t, cfg.Vals, back.Vals)
	assert.Equal(t, cfg.AggregatorName, back.AggregatorName)
	assert.Equal(t, map[string][]string{"region": {"North"}}, back.ValueFilter)
	assert.Equal(t, cfg.Include, back.Include)
	assert.Equal(t, pivot.OrderValueZToA, back.RowOrder)
}

func TestBuildRequest_ExclusionsOnTheWire(t *testing.T) {
	tests := []struct {
		name        string
		valueFilter map[string][]string
		present     bool
	}{
		{"no exclusions keep the base body", nil, false},
		{"empty lists are dropped", map[string][]string{"region": {}}, false},
		{"exclusions are sent", map[string][]string{"region": {"North"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutil.SalesConfig()
			cfg.ValueFilter = tt.valueFilter
			req, err := remote.BuildRequest("warehouse", "sales", cfg)
			require.NoError(t, err)

			b, err := json.Marshal(req)
			require.NoError(t, err)
			var body map[string]any
			require.NoError(t, json.Unmarshal(b, &body))

			_, ok := body["exclusions"]
			assert.Equal(t, tt.present, ok)
			assert.Equal(t, false, body["includeSubtotals"])
		})
	}
}

func TestBuildRequest_Defaults(t *testing.T) {
	req, err := remote.BuildRequest("warehouse", "sales", pivot.Config{})
	require.NoError(t, err)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"connectionCode": "warehouse",
		"tableName": "sales",
		"rows": [],
		"cols": [],
		"vals": [],
		"aggregatorName": "Count",
		"rowOrder": "key_a_to_z",
		"colOrder": "key_a_to_z",
		"includeSubtotals": false
	}`, string(b))
}

func TestBuildRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		conn     string
		table    string
		cfg      pivot.Config
		sentinel error
		attr     string
	}{
		{"missing connection", "", "sales", pivot.Config{}, errors.ErrInvalidInput, ""},
		{"missing table", "warehouse", "", pivot.Config{}, errors.ErrInvalidInput, ""},
		{
			name:  "derived attribute",
			conn:  "warehouse",
			table: "sales",
			cfg: pivot.Config{DerivedAttributes: map[string]pivot.DerivedAttribute{
				"bucket": pivot.Bin("revenue", 10),
				"alpha":  pivot.Bin("revenue", 5),
			}},
			sentinel: errors.ErrNotDelegable,
			attr:     "alpha",
		},
		{
			name:     "custom sorter",
			conn:     "warehouse",
			table:    "sales",
			cfg:      pivot.Config{Sorters: sorter.SorterMap{"region": sorter.NaturalSort}},
			sentinel: errors.ErrNotDelegable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := remote.BuildRequest(tt.conn, tt.table, tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var pe *errors.PivotError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.attr, pe.Attribute)
		})
	}
}
