package render

import (
	"encoding/json"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/paveg/crosstab/internal/common"
)

// HTML renders the table as a <table class="pvtTable"> element. All text is
// escaped.
func (t *Table) HTML() string {
	var b strings.Builder
	_ = t.WriteHTML(&b)
	return b.String()
}

// WriteHTML writes the HTML rendering of the table to w.
func (t *Table) WriteHTML(w io.Writer) error {
	hw := &htmlWriter{w: w}
	hw.str(`<table class="pvtTable">`)

	hw.str("<thead>")
	for _, row := range t.Head {
		hw.row(row, t.Clickable)
	}
	hw.str("</thead>")

	hw.str("<tbody>")
	for _, row := range t.Body {
		hw.row(row, t.Clickable)
	}
	hw.str("</tbody>")

	hw.str("</table>")
	return hw.err
}

type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) str(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (hw *htmlWriter) row(row TableRow, clickable bool) {
	hw.str("<tr>")
	for _, h := range row.Headers {
		hw.str("<th")
		if h.Class != "" {
			hw.str(` class="` + h.Class + `"`)
		}
		if h.ColSpan > 1 {
			hw.str(` colspan="` + strconv.Itoa(h.ColSpan) + `"`)
		}
		if h.RowSpan > 1 {
			hw.str(` rowspan="` + strconv.Itoa(h.RowSpan) + `"`)
		}
		hw.str(">" + html.EscapeString(h.Text) + "</th>")
	}
	for _, c := range row.Cells {
		class := c.Class
		if clickable && c.Class == ClassValue {
			class += " pvtClickable"
		}
		hw.str(`<td class="` + class + `"`)
		if c.Background != "" {
			hw.str(` style="background-color:` + html.EscapeString(c.Background) + `"`)
		}
		if clickable && c.Class == ClassValue {
			hw.str(` data-row="` + html.EscapeString(jsonKey(c.RowKey)) + `"`)
			hw.str(` data-col="` + html.EscapeString(jsonKey(c.ColKey)) + `"`)
			hw.str(` data-value="` + html.EscapeString(common.ToKey(c.Value)) + `"`)
		}
		hw.str(">" + html.EscapeString(c.Text) + "</td>")
	}
	hw.str("</tr>")
}

func jsonKey(key []string) string {
	if key == nil {
		key = []string{}
	}
	b, err := json.Marshal(key)
	if err != nil {
		return "[]"
	}
	return string(b)
}
