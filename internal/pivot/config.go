package pivot

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/sorter"
)

// Order selects how row or column keys are sorted.
type Order string

const (
	OrderKeyAToZ   Order = "key_a_to_z"
	OrderValueAToZ Order = "value_a_to_z"
	OrderValueZToA Order = "value_z_to_a"
)

// DefaultAggregator is used when Config.AggregatorName is empty.
const DefaultAggregator = "Count"

// Valid reports whether o is a known order. The empty order is valid and
// means OrderKeyAToZ.
func (o Order) Valid() bool {
	switch o {
	case "", OrderKeyAToZ, OrderValueAToZ, OrderValueZToA:
		return true
	default:
		return false
	}
}

func (o Order) orDefault() Order {
	if o == "" {
		return OrderKeyAToZ
	}
	return o
}

// Config is an immutable snapshot of a pivot configuration.
type Config struct {
	Rows           []string `json:"rows" yaml:"rows"`
	Cols           []string `json:"cols" yaml:"cols"`
	Vals           []string `json:"vals" yaml:"vals"`
	AggregatorName string   `json:"aggregatorName" yaml:"aggregator_name"`

	// ValueFilter lists, per attribute, the values to exclude.
	ValueFilter map[string][]string `json:"valueFilter,omitempty" yaml:"value_filter,omitempty"`
	// Include lists, per attribute, the only values to keep. A missing or
	// empty entry keeps every value.
	Include map[string][]string `json:"include,omitempty" yaml:"include,omitempty"`

	RowOrder Order `json:"rowOrder,omitempty" yaml:"row_order,omitempty"`
	ColOrder Order `json:"colOrder,omitempty" yaml:"col_order,omitempty"`

	Sorters           sorter.Sorters              `json:"-" yaml:"-"`
	DerivedAttributes map[string]DerivedAttribute `json:"-" yaml:"-"`

	// Registry resolves AggregatorName, aggregator.DefaultRegistry when nil.
	Registry *aggregator.Registry `json:"-" yaml:"-"`
	// Metrics receives build timings, the global collector when nil.
	Metrics *monitoring.MetricsCollector `json:"-" yaml:"-"`
	Logger  *slog.Logger                 `json:"-" yaml:"-"`
}

// Clone returns a deep copy of the serialisable parts of c. Function valued
// fields are shared.
func (c Config) Clone() Config {
	out := c
	out.Rows = slices.Clone(c.Rows)
	out.Cols = slices.Clone(c.Cols)
	out.Vals = slices.Clone(c.Vals)
	out.ValueFilter = cloneFilter(c.ValueFilter)
	out.Include = cloneFilter(c.Include)
	out.DerivedAttributes = maps.Clone(c.DerivedAttributes)
	return out
}

func cloneFilter(f map[string][]string) map[string][]string {
	if f == nil {
		return nil
	}
	out := make(map[string][]string, len(f))
	for k, v := range f {
		out[k] = slices.Clone(v)
	}
	return out
}

func (c Config) registry() *aggregator.Registry {
	if c.Registry != nil {
		return c.Registry
	}
	return aggregator.DefaultRegistry()
}

func (c Config) aggregatorName() string {
	if c.AggregatorName == "" {
		return DefaultAggregator
	}
	return c.AggregatorName
}

// Validate reports the first configuration error, if any. It resolves the
// aggregator so that unknown names fail before any record is read.
func (c Config) Validate() error {
	_, err := c.resolve()
	return err
}

func (c Config) resolve() (aggregator.Entry, error) {
	const op = "NewPivotData"

	entry, err := c.registry().Lookup(c.aggregatorName())
	if err != nil {
		return aggregator.Entry{}, errors.NewUnknownAggregatorError(op, c.aggregatorName())
	}
	if len(c.Vals) < entry.NumInputs {
		return aggregator.Entry{}, errors.NewMissingInputError(op, entry.Name, entry.NumInputs, len(c.Vals))
	}

	if attr, ok := duplicate(c.Rows); ok {
		return aggregator.Entry{}, errors.NewAmbiguousAttributeError(op, attr, "listed more than once in rows")
	}
	if attr, ok := duplicate(c.Cols); ok {
		return aggregator.Entry{}, errors.NewAmbiguousAttributeError(op, attr, "listed more than once in cols")
	}
	for _, attr := range c.Rows {
		if slices.Contains(c.Cols, attr) {
			return aggregator.Entry{}, errors.NewAmbiguousAttributeError(op, attr, "listed in both rows and cols")
		}
	}

	if !c.RowOrder.Valid() {
		return aggregator.Entry{}, errors.NewInvalidOrderError(op, string(c.RowOrder))
	}
	if !c.ColOrder.Valid() {
		return aggregator.Entry{}, errors.NewInvalidOrderError(op, string(c.ColOrder))
	}
	return entry, nil
}

func duplicate(attrs []string) (string, bool) {
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if _, ok := seen[a]; ok {
			return a, true
		}
		seen[a] = struct{}{}
	}
	return "", false
}
