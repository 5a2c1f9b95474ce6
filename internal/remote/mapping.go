package remote

import (
	"maps"
	"slices"

	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/pivot"
)

// BuildRequest maps a pivot configuration to a request for the given table.
// Configurations carrying derived attributes or custom sorters cannot cross
// the wire and are rejected with ErrNotDelegable.
//
// Include travels in filters. ValueFilter travels in exclusions, a field the
// reference service in internal/server honours but the base service contract
// does not define: a service that only knows the base contract ignores it and
// returns the excluded values. Callers targeting such a service should
// express the filter as an Include list instead. IncludeSubtotals is left
// unset.
func BuildRequest(connectionCode, tableName string, cfg pivot.Config) (*Request, error) {
	const op = "BuildRequest"

	if connectionCode == "" {
		return nil, errors.NewInvalidInputError(op, "connectionCode is required")
	}
	if tableName == "" {
		return nil, errors.NewInvalidInputError(op, "tableName is required")
	}
	if len(cfg.DerivedAttributes) > 0 {
		names := slices.Sorted(maps.Keys(cfg.DerivedAttributes))
		return nil, errors.NewNotDelegableError(op, names[0], "derived attributes are evaluated locally only")
	}
	if cfg.Sorters != nil {
		return nil, errors.NewNotDelegableError(op, "", "custom sorters are evaluated locally only")
	}

	aggregatorName := cfg.AggregatorName
	if aggregatorName == "" {
		aggregatorName = pivot.DefaultAggregator
	}
	return &Request{
		ConnectionCode: connectionCode,
		TableName:      tableName,
		Rows:           nonNil(cfg.Rows),
		Cols:           nonNil(cfg.Cols),
		Vals:           nonNil(cfg.Vals),
		AggregatorName: aggregatorName,
		Filters:        compactFilter(cfg.Include),
		Exclusions:     compactFilter(cfg.ValueFilter),
		RowOrder:       orDefault(cfg.RowOrder),
		ColOrder:       orDefault(cfg.ColOrder),
	}, nil
}

// PivotConfig maps the request back to the configuration it was built from.
func (r *Request) PivotConfig() pivot.Config {
	cfg := pivot.Config{
		Rows:           slices.Clone(r.Rows),
		Cols:           slices.Clone(r.Cols),
		Vals:           slices.Clone(r.Vals),
		AggregatorName: r.AggregatorName,
		ValueFilter:    compactFilter(r.Exclusions),
		Include:        compactFilter(r.Filters),
		RowOrder:       r.RowOrder,
		ColOrder:       r.ColOrder,
	}
	if cfg.AggregatorName == "" {
		cfg.AggregatorName = pivot.DefaultAggregator
	}
	return cfg
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func orDefault(o pivot.Order) pivot.Order {
	if o == "" {
		return pivot.OrderKeyAToZ
	}
	return o
}

// compactFilter drops empty entries, which mean "keep every value".
func compactFilter(f map[string][]string) map[string][]string {
	var out map[string][]string
	for attr, values := range f {
		if len(values) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string][]string, len(f))
		}
		out[attr] = slices.Clone(values)
	}
	return out
}
