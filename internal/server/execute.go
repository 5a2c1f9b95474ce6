package server

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/paveg/crosstab/internal/remote"
)

// Execute answers one pivot request. Validation and configuration errors
// are returned before the table is read; identical requests are served
// from the cache while it holds them.
func (h *Handler) Execute(ctx context.Context, req *remote.Request) (*remote.Response, error) {
	const op = "ExecutePivot"
	start := time.Now()

	if req.ConnectionCode == "" {
		return nil, errors.NewInvalidInputError(op, "connectionCode is required")
	}
	if req.TableName == "" {
		return nil, errors.NewInvalidInputError(op, "tableName is required")
	}
	if req.Limit < 0 {
		return nil, errors.NewInvalidInputError(op, "limit must not be negative")
	}

	cfg := req.PivotConfig()
	cfg.Registry = h.registry
	cfg.Logger = h.logger
	cfg.Metrics = h.metrics
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	entry, err := h.registry.Lookup(cfg.AggregatorName)
	if err != nil {
		return nil, err
	}

	key, err := Fingerprint(req)
	cacheable := err == nil
	if cacheable {
		if resp, ok := h.cache.Get(key); ok {
			h.logger.Debug("cache hit", "table", req.TableName)
			return resp, nil
		}
	}

	table, err := h.catalog.Table(ctx, req.ConnectionCode, req.TableName)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var resp *remote.Response
	err = monitoring.Resolve(h.metrics).RecordRecords(monitoring.OpServePivot, func() (int64, error) {
		p, err := pivot.New(table.Records, cfg)
		if err != nil {
			return 0, err
		}
		resp = buildResponse(p, req)
		return int64(p.NumRecords()), nil
	})
	if err != nil {
		return nil, err
	}

	resp.Metadata = remote.Metadata{
		ExecutionTimeMs:  time.Since(start).Milliseconds(),
		RowCount:         len(resp.Data),
		AggregatorUsed:   entry.Name,
		AvailableColumns: slices.Clone(table.Columns),
	}
	if cacheable {
		h.cache.Put(key, resp)
	}
	return resp, nil
}

// valueColumn names the aggregate in every data row: the first value
// attribute, or remote.ValueColumn when there is none or it collides with a
// dimension.
func valueColumn(req *remote.Request) string {
	if len(req.Vals) == 0 {
		return remote.ValueColumn
	}
	name := req.Vals[0]
	if slices.Contains(req.Rows, name) || slices.Contains(req.Cols, name) {
		return remote.ValueColumn
	}
	return name
}

// buildResponse lays the grid out as grouped rows in display order. Cells
// come first; with subtotals the row margins, column margins and the grand
// total follow as rollup rows whose rolled up dimensions are null.
func buildResponse(p *pivot.PivotData, req *remote.Request) *remote.Response {
	column := valueColumn(req)
	row := func(rowKey, colKey []string, inst aggregator.Instance) map[string]any {
		out := make(map[string]any, len(req.Rows)+len(req.Cols)+1)
		for i, attr := range req.Rows {
			out[attr] = dimValue(rowKey, i)
		}
		for i, attr := range req.Cols {
			out[attr] = dimValue(colKey, i)
		}
		out[column] = jsonValue(inst.Value())
		return out
	}

	hasRows, hasCols := len(req.Rows) > 0, len(req.Cols) > 0
	data := []map[string]any{}
	switch {
	case hasRows && hasCols:
		p.ForEachCell(func(rowKey, colKey []string, inst aggregator.Instance) {
			data = append(data, row(rowKey, colKey, inst))
		})
	case hasRows:
		for _, rk := range p.RowKeys() {
			data = append(data, row(rk, nil, p.GetAggregator(rk, nil)))
		}
	case hasCols:
		for _, ck := range p.ColKeys() {
			data = append(data, row(nil, ck, p.GetAggregator(nil, ck)))
		}
	}

	total := p.GetAggregator(nil, nil)
	if req.IncludeSubtotals && hasRows && hasCols {
		for _, rk := range p.RowKeys() {
			data = append(data, row(rk, nil, p.GetAggregator(rk, nil)))
		}
		for _, ck := range p.ColKeys() {
			data = append(data, row(nil, ck, p.GetAggregator(nil, ck)))
		}
	}
	if req.IncludeSubtotals || (!hasRows && !hasCols) {
		data = append(data, row(nil, nil, total))
	}

	if req.Limit > 0 && len(data) > req.Limit {
		data = data[:req.Limit]
	}
	return &remote.Response{
		Data:           data,
		AggregatedData: map[string]any{column: jsonValue(total.Value())},
	}
}

func dimValue(key []string, i int) any {
	if key == nil {
		return nil
	}
	return key[i]
}

// jsonValue replaces values JSON cannot carry with null.
func jsonValue(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
