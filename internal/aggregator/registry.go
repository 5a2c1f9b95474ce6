package aggregator

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/paveg/crosstab/internal/errors"
)

// Entry is a named aggregator known to a Registry.
type Entry struct {
	Name      string
	Code      string
	NumInputs int
	Factory   Factory
}

// Registry maps aggregator names to factories. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the shared registry holding every built-in kind.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewBuiltinRegistry()
	})
	return defaultRegistry
}

// NewBuiltinRegistry returns a new registry populated with every built-in
// kind, independent of DefaultRegistry.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, k := range Kinds() {
		r.add(Entry{Name: k.String(), Code: k.Code(), NumInputs: k.NumInputs(), Factory: k.Factory()})
	}
	return r
}

// Factory returns the factory of a built-in kind, or nil for an invalid
// kind.
func (k Kind) Factory() Factory {
	us := USFormat.Formatter()
	usInt := USIntFormat.Formatter()
	pct := USPercentFormat.Formatter()

	switch k {
	case KindCount:
		return Count(usInt)
	case KindCountUnique:
		return CountUnique(usInt)
	case KindListUnique:
		return ListUnique(ListSeparator)
	case KindSum:
		return Sum(us)
	case KindIntegerSum:
		return Sum(usInt)
	case KindAverage:
		return Average(us)
	case KindMedian:
		return Quantile(0.5, us)
	case KindMode:
		return Mode(us)
	case KindSampleVariance:
		return Variance(1, us)
	case KindSampleStdDev:
		return StdDev(1, us)
	case KindVariance:
		return Variance(0, us)
	case KindStdDev:
		return StdDev(0, us)
	case KindPercentile25:
		return Quantile(0.25, us)
	case KindPercentile75:
		return Quantile(0.75, us)
	case KindPercentile90:
		return Quantile(0.90, us)
	case KindPercentile95:
		return Quantile(0.95, us)
	case KindPercentile99:
		return Quantile(0.99, us)
	case KindMinimum:
		return Min(us)
	case KindMaximum:
		return Max(us)
	case KindFirst:
		return First(us)
	case KindLast:
		return Last(us)
	case KindConcatenate:
		return Concatenate(ListSeparator)
	case KindAllTrue:
		return AllTrue()
	case KindAnyTrue:
		return AnyTrue()
	case KindEarliestDate:
		return EarliestDate()
	case KindLatestDate:
		return LatestDate()
	case KindDateRangeDays:
		return DateRangeDays(usInt)
	case KindSumOverSum:
		return SumOverSum(us)
	case KindSumFractionTotal:
		return FractionOf(Sum(us), ScopeTotal, pct)
	case KindSumFractionRows:
		return FractionOf(Sum(us), ScopeRow, pct)
	case KindSumFractionCols:
		return FractionOf(Sum(us), ScopeCol, pct)
	case KindCountFractionTotal:
		return FractionOf(Count(usInt), ScopeTotal, pct)
	case KindCountFractionRows:
		return FractionOf(Count(usInt), ScopeRow, pct)
	case KindCountFractionCols:
		return FractionOf(Count(usInt), ScopeCol, pct)
	default:
		return nil
	}
}

// Register adds or replaces a named aggregator. The code is derived from the
// name when the name is not a built-in one.
func (r *Registry) Register(name string, numInputs int, factory Factory) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewInvalidInputError("Register", "aggregator name must not be empty")
	}
	if factory == nil {
		return errors.NewInvalidInputError("Register", fmt.Sprintf("aggregator %q has no factory", name))
	}
	if numInputs < 0 {
		return errors.NewInvalidInputError("Register", fmt.Sprintf("numInputs must be non-negative, got %d", numInputs))
	}

	code := strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(name))
	r.mu.RLock()
	if existing, ok := r.entries[name]; ok && existing.Code != "" {
		code = existing.Code
	}
	r.mu.RUnlock()

	r.add(Entry{Name: name, Code: code, NumInputs: numInputs, Factory: factory})
	return nil
}

func (r *Registry) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.Name]; !ok {
		r.order = append(r.order, e.Name)
	}
	r.entries[e.Name] = e
}

// Lookup resolves an aggregator by exact name, then by case-insensitive name
// or code.
func (r *Registry) Lookup(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[name]; ok {
		return e, nil
	}
	for _, n := range r.order {
		e := r.entries[n]
		if strings.EqualFold(e.Name, name) || strings.EqualFold(e.Code, name) {
			return e, nil
		}
	}
	return Entry{}, errors.NewUnknownAggregatorError("Lookup", name)
}

// Has reports whether name resolves to an aggregator.
func (r *Registry) Has(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Names returns every registered name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// DisplayNames maps each aggregator code to its human readable name.
func (r *Registry) DisplayNames() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.entries))
	for _, e := range r.entries {
		out[e.Code] = e.Name
	}
	return out
}
