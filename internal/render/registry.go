package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/paveg/crosstab/internal/errors"
)

// Kind distinguishes table renderers from chart renderers.
type Kind string

const (
	KindTable Kind = "table"
	KindChart Kind = "chart"
)

// Renderer describes one named presentation of a grid.
type Renderer struct {
	Name    string      `json:"name"`
	Kind    Kind        `json:"type"`
	Heatmap HeatmapMode `json:"heatmapMode,omitempty"`

	chart chartSpec
}

var renderers = []Renderer{
	{Name: "Table", Kind: KindTable},
	{Name: "Table Heatmap", Kind: KindTable, Heatmap: HeatmapFull},
	{Name: "Table Col Heatmap", Kind: KindTable, Heatmap: HeatmapCol},
	{Name: "Table Row Heatmap", Kind: KindTable, Heatmap: HeatmapRow},
	{Name: "Grouped Column Chart", Kind: KindChart, chart: chartSpec{chartType: "bar"}},
	{Name: "Stacked Column Chart", Kind: KindChart, chart: chartSpec{chartType: "bar", stacked: true}},
	{Name: "Grouped Bar Chart", Kind: KindChart, chart: chartSpec{chartType: "bar", transpose: true, horizontal: true}},
	{Name: "Stacked Bar Chart", Kind: KindChart, chart: chartSpec{chartType: "bar", transpose: true, horizontal: true, stacked: true}},
	{Name: "Line Chart", Kind: KindChart, chart: chartSpec{chartType: "line"}},
	{Name: "Dot Chart", Kind: KindChart, chart: chartSpec{chartType: "scatter", transpose: true, pointsOnly: true}},
	{Name: "Area Chart", Kind: KindChart, chart: chartSpec{chartType: "line", fill: true}},
	{Name: "Scatter Chart", Kind: KindChart, chart: chartSpec{chartType: "scatter"}},
	{Name: "Pie Chart", Kind: KindChart, chart: chartSpec{chartType: "pie", transpose: true}},
	{Name: "Doughnut Chart", Kind: KindChart, chart: chartSpec{chartType: "doughnut", transpose: true}},
}

// DefaultRenderer is used when no renderer name is given.
const DefaultRenderer = "Table"

// Renderers returns every registered renderer in display order.
func Renderers() []Renderer {
	return append([]Renderer(nil), renderers...)
}

// LookupRenderer finds a renderer by name, ignoring case.
func LookupRenderer(name string) (Renderer, bool) {
	for _, r := range renderers {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Renderer{}, false
}

// RendererNames returns the renderer names of the given kind, or all names
// when kind is empty.
func RendererNames(kind Kind) []string {
	var names []string
	for _, r := range renderers {
		if kind == "" || r.Kind == kind {
			names = append(names, r.Name)
		}
	}
	return names
}

// Render writes g to w with the named renderer: table renderers emit HTML,
// chart renderers emit the chart configuration as JSON.
func Render(w io.Writer, name string, g Grid, opts TableOptions) error {
	if name == "" {
		name = DefaultRenderer
	}
	r, ok := LookupRenderer(name)
	if !ok {
		return errors.NewInvalidInputError("Render", fmt.Sprintf("unknown renderer %q", name))
	}

	switch r.Kind {
	case KindChart:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ChartConfigFor(r.Name, g))
	default:
		if opts.Heatmap == HeatmapNone {
			opts.Heatmap = r.Heatmap
		}
		t, err := NewTable(g, opts)
		if err != nil {
			return err
		}
		return t.WriteHTML(w)
	}
}
