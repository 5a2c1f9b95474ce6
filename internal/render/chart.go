package render

import (
	"math"
	"strings"

	"github.com/paveg/crosstab/internal/common"
)

// Dataset is one chart series. Data holds nil for category and series
// combinations absent from the grid.
type Dataset struct {
	Label string     `json:"label"`
	Data  []*float64 `json:"data"`
	Fill  bool       `json:"fill,omitempty"`
}

// ChartData is the labels plus datasets shape consumed by the charting
// library.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// ChartOptions controls the chart transform.
type ChartOptions struct {
	// Transpose makes columns the series and rows the categories.
	Transpose bool
}

// Chart builds one dataset per row key (per column key when transposed)
// with one data point per column key (per row key). Keys are joined with
// "-"; an empty key is labelled with the value label.
func Chart(g Grid, opts ChartOptions) ChartData {
	rowKeys, colKeys := g.RowKeys(), g.ColKeys()
	traceKeys, datumKeys := rowKeys, colKeys
	if opts.Transpose {
		traceKeys, datumKeys = colKeys, rowKeys
	}
	traceKeys = orEmptyKey(traceKeys)
	datumKeys = orEmptyKey(datumKeys)

	label := valueLabel(g)
	keyLabel := func(key []string) string {
		if s := strings.Join(key, "-"); s != "" {
			return s
		}
		return label
	}

	out := ChartData{
		Labels:   make([]string, len(datumKeys)),
		Datasets: make([]Dataset, len(traceKeys)),
	}
	for i, dk := range datumKeys {
		out.Labels[i] = keyLabel(dk)
	}
	for i, tk := range traceKeys {
		data := make([]*float64, len(datumKeys))
		for j, dk := range datumKeys {
			rowKey, colKey := tk, dk
			if opts.Transpose {
				rowKey, colKey = dk, tk
			}
			v, _ := cellValue(g, rowKey, colKey)
			data[j] = chartPoint(v)
		}
		out.Datasets[i] = Dataset{Label: keyLabel(tk), Data: data}
	}
	return out
}

func chartPoint(v any) *float64 {
	x, ok := common.ToFloat64(v)
	if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// ChartScales configures stacked axes.
type ChartScales struct {
	X ScaleOptions `json:"x"`
	Y ScaleOptions `json:"y"`
}

// ScaleOptions configures one axis.
type ScaleOptions struct {
	Stacked bool `json:"stacked"`
}

// ChartJSOptions are the chart level options.
type ChartJSOptions struct {
	Responsive          bool         `json:"responsive"`
	MaintainAspectRatio bool         `json:"maintainAspectRatio"`
	Scales              *ChartScales `json:"scales,omitempty"`
	IndexAxis           string       `json:"indexAxis,omitempty"`
	ShowLine            *bool        `json:"showLine,omitempty"`
}

// ChartConfig is a complete chart description.
type ChartConfig struct {
	Type    string         `json:"type"`
	Data    ChartData      `json:"data"`
	Options ChartJSOptions `json:"options"`
}

type chartSpec struct {
	chartType  string
	transpose  bool
	stacked    bool
	horizontal bool
	fill       bool
	pointsOnly bool
}

var defaultChartSpec = chartSpec{chartType: "bar"}

// ChartConfigFor builds the chart configuration of a named chart renderer.
// Unknown names produce a grouped column chart.
func ChartConfigFor(rendererName string, g Grid) ChartConfig {
	spec := defaultChartSpec
	if r, ok := LookupRenderer(rendererName); ok && r.Kind == KindChart {
		spec = r.chart
	}

	data := Chart(g, ChartOptions{Transpose: spec.transpose})
	if spec.fill {
		for i := range data.Datasets {
			data.Datasets[i].Fill = true
		}
	}

	opts := ChartJSOptions{Responsive: true}
	if spec.stacked {
		opts.Scales = &ChartScales{X: ScaleOptions{Stacked: true}, Y: ScaleOptions{Stacked: true}}
	}
	if spec.horizontal {
		opts.IndexAxis = "y"
	}
	if spec.pointsOnly {
		showLine := false
		opts.ShowLine = &showLine
	}
	return ChartConfig{Type: spec.chartType, Data: data, Options: opts}
}
