package io_test

import (
	"strings"
	"testing"

	"github.com/paveg/crosstab/internal/io"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opts     io.JSONOptions
		expected pivot.Records
	}{
		{
			name:  "array of objects",
			input: `[{"region":"North","revenue":100},{"region":"South","revenue":30.5}]`,
			opts:  io.DefaultJSONOptions(),
			expected: pivot.Records{
				{"region": "North", "revenue": int64(100)},
				{"region": "South", "revenue": 30.5},
			},
		},
		{
			name:  "JSONPath selects the nested array",
			input: `{"data":{"items":[{"region":"North"},{"region":"South"}]}}`,
			opts:  io.JSONOptions{Format: io.JSONArray, Path: "$.data.items"},
			expected: pivot.Records{
				{"region": "North"},
				{"region": "South"},
			},
		},
		{
			name:  "JSONPath wildcard",
			input: `{"pages":[{"rows":[{"n":1}]},{"rows":[{"n":2}]}]}`,
			opts:  io.JSONOptions{Format: io.JSONArray, Path: "$.pages[*].rows[*]"},
			expected: pivot.Records{
				{"n": int64(1)},
				{"n": int64(2)},
			},
		},
		{
			name:  "nested values are kept as JSON text",
			input: `[{"region":"North","tags":["a","b"],"meta":{"k":1},"note":null}]`,
			opts:  io.DefaultJSONOptions(),
			expected: pivot.Records{
				{"region": "North", "tags": `["a","b"]`, "meta": `{"k":1}`, "note": nil},
			},
		},
		{
			name:  "max records",
			input: `[{"n":1},{"n":2},{"n":3}]`,
			opts:  io.JSONOptions{Format: io.JSONArray, MaxRecords: 2},
			expected: pivot.Records{
				{"n": int64(1)},
				{"n": int64(2)},
			},
		},
		{
			name:  "JSON lines skip blank lines",
			input: "{\"n\":1}\n\n  {\"n\":2}\n",
			opts:  io.JSONOptions{Format: io.JSONLines},
			expected: pivot.Records{
				{"n": int64(1)},
				{"n": int64(2)},
			},
		},
		{
			name:  "JSON lines max records",
			input: "{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n",
			opts:  io.JSONOptions{Format: io.JSONLines, MaxRecords: 1},
			expected: pivot.Records{
				{"n": int64(1)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := io.ReadJSON(strings.NewReader(tt.input), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, records)
		})
	}
}

func TestReadJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    io.JSONOptions
		wantErr string
	}{
		{"document is not an array", `{"n":1}`, io.DefaultJSONOptions(), "must be an array"},
		{"element is not an object", `[{"n":1}, 2]`, io.DefaultJSONOptions(), "element 1"},
		{"invalid JSON", `[{"n":`, io.DefaultJSONOptions(), "parsing JSON"},
		{"invalid JSONPath", `[]`, io.JSONOptions{Path: "$.a["}, "invalid JSONPath"},
		{"bad line", "{\"n\":1}\nnot json\n", io.JSONOptions{Format: io.JSONLines}, "line 2"},
		{"unknown layout", `[]`, io.JSONOptions{Format: io.JSONFormat(9)}, "unsupported JSON format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := io.ReadJSON(strings.NewReader(tt.input), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
