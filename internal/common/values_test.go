package common_test

import (
	"math"
	"testing"
	"time"

	"github.com/paveg/crosstab/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestToKey(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"nil", nil, "null"},
		{"string", "North", "North"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"uint8", uint8(3), "3"},
		{"float whole", 100.0, "100"},
		{"float fraction", 1.25, "1.25"},
		{"float32", float32(0.5), "0.5"},
		{"bool", true, "true"},
		{"time", ts, "2024-03-01T12:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, common.ToKey(tt.input))
		})
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   float64
		wantOK bool
	}{
		{"int", 10, 10, true},
		{"float", 2.5, 2.5, true},
		{"numeric string", " 20 ", 20, true},
		{"bad string", "bad", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
		{"NaN", math.NaN(), 0, false},
		{"uint64", uint64(9), 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := common.ToFloat64(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, common.IsNumeric(3))
	assert.True(t, common.IsNumeric(3.5))
	assert.False(t, common.IsNumeric("3"))
	assert.False(t, common.IsNumeric(nil))
}

func TestToTime(t *testing.T) {
	got, ok := common.ToTime("2024-02-29")
	assert.True(t, ok)
	assert.Equal(t, 29, got.Day())

	got, ok = common.ToTime("2024-02-29T10:30:00Z")
	assert.True(t, ok)
	assert.Equal(t, 10, got.Hour())

	_, ok = common.ToTime("not a date")
	assert.False(t, ok)

	_, ok = common.ToTime(17)
	assert.False(t, ok)
}
