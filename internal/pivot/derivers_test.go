package pivot_test

import (
	"testing"
	"time"

	"github.com/paveg/crosstab/internal/pivot"
	"github.com/stretchr/testify/assert"
)

func TestBin(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		width    float64
		expected any
	}{
		{"positive", 17, 10, 10.0},
		{"exact multiple", 20, 10, 20.0},
		{"below width", 3, 10, 0.0},
		{"negative keeps sign", -7, 5, -5.0},
		{"fractional", 2.75, 0.5, 2.5},
		{"numeric string", "42", 10, 40.0},
		{"text", "abc", 10, nil},
		{"missing", nil, 10, nil},
		{"zero width", 17, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derive := pivot.Bin("x", tt.width)
			assert.Equal(t, tt.expected, derive(pivot.Record{"x": tt.value}))
		})
	}
}

func TestDateFormat(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name     string
		pattern  string
		value    any
		expected string
	}{
		{"year month", "%y-%m", ts, "2024-03"},
		{"month name and day", "%n %d", ts, "Mar 05"},
		{"weekday", "%w (%x)", ts, "Tue (2)"},
		{"time of day", "%H:%M:%S", ts, "07:08:09"},
		{"unknown directive kept", "%q%y", ts, "%q2024"},
		{"trailing percent", "%y%", ts, "2024%"},
		{"string date", "%y/%m/%d", "2023-12-31", "2023/12/31"},
		{"not a date", "%y", "someday", ""},
		{"missing", "%y", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derive := pivot.DateFormat("d", tt.pattern, true)
			assert.Equal(t, tt.expected, derive(pivot.Record{"d": tt.value}))
		})
	}
}
