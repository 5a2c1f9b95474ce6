package aggregator

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/paveg/crosstab/internal/common"
	"github.com/paveg/crosstab/internal/sorter"
)

// ListSeparator joins the values of List Unique Values and Concatenate.
const ListSeparator = ", "

func attrAt(attrs []string, i int) string {
	if i < len(attrs) {
		return attrs[i]
	}
	return ""
}

func numberAt(rec Record, attr string) (float64, bool) {
	if attr == "" {
		return 0, false
	}
	return common.ToFloat64(rec.Get(attr))
}

func numeric(v float64, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

// count

type countInstance struct {
	n      int
	format Formatter
}

func (c *countInstance) Push(Record)         { c.n++ }
func (c *countInstance) Value() any          { return float64(c.n) }
func (c *countInstance) Format(v any) string { return c.format(v) }
func (c *countInstance) NumInputs() int      { return 0 }

// Count counts the records pushed. It ignores its attributes.
func Count(format Formatter) Factory {
	return func([]string) Aggregator {
		return func(Lookup, []string, []string) Instance {
			return &countInstance{format: format}
		}
	}
}

// distinct values

type uniquesInstance struct {
	attr   string
	seen   map[string]struct{}
	keys   []string
	result func(keys []string) any
	format Formatter
}

func (u *uniquesInstance) Push(rec Record) {
	v := rec.Get(u.attr)
	if v == nil {
		return
	}
	k := common.ToKey(v)
	if _, ok := u.seen[k]; ok {
		return
	}
	u.seen[k] = struct{}{}
	u.keys = append(u.keys, k)
}

func (u *uniquesInstance) Value() any          { return u.result(u.keys) }
func (u *uniquesInstance) Format(v any) string { return u.format(v) }
func (u *uniquesInstance) NumInputs() int      { return 1 }

func uniques(result func(keys []string) any, format Formatter) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &uniquesInstance{attr: attr, seen: make(map[string]struct{}), result: result, format: format}
		}
	}
}

// CountUnique counts the distinct non-nil values of one attribute. A record
// missing the attribute is skipped like any invalid input and does not count
// as a value of its own.
func CountUnique(format Formatter) Factory {
	return uniques(func(keys []string) any { return float64(len(keys)) }, format)
}

// ListUnique joins the distinct non-nil values of one attribute in natural
// order. Records missing the attribute are skipped.
func ListUnique(sep string) Factory {
	return uniques(func(keys []string) any {
		if len(keys) == 0 {
			return nil
		}
		sorted := slices.Clone(keys)
		slices.SortFunc(sorted, sorter.NaturalSort)
		return strings.Join(sorted, sep)
	}, formatPlain)
}

// sum

type sumInstance struct {
	attr   string
	sum    float64
	valid  bool
	format Formatter
}

func (s *sumInstance) Push(rec Record) {
	if x, ok := numberAt(rec, s.attr); ok {
		s.sum += x
		s.valid = true
	}
}

func (s *sumInstance) Value() any          { return numeric(s.sum, s.valid) }
func (s *sumInstance) Format(v any) string { return s.format(v) }
func (s *sumInstance) NumInputs() int      { return 1 }

// Sum adds the numeric values of one attribute.
func Sum(format Formatter) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &sumInstance{attr: attr, format: format}
		}
	}
}

// running statistics

type statMode int

const (
	statMean statMode = iota
	statVariance
	statStdDev
)

// statInstance keeps Welford's running mean and sum of squared deviations.
type statInstance struct {
	attr   string
	mode   statMode
	ddof   int
	n      int
	mean   float64
	m2     float64
	format Formatter
}

func (s *statInstance) Push(rec Record) {
	x, ok := numberAt(rec, s.attr)
	if !ok {
		return
	}
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
}

func (s *statInstance) Value() any {
	if s.n == 0 {
		return nil
	}
	if s.mode == statMean {
		return s.mean
	}
	if s.n <= s.ddof {
		return 0.0
	}
	variance := s.m2 / float64(s.n-s.ddof)
	if s.mode == statStdDev {
		return math.Sqrt(variance)
	}
	return variance
}

func (s *statInstance) Format(v any) string { return s.format(v) }
func (s *statInstance) NumInputs() int      { return 1 }

func runningStat(mode statMode, ddof int, format Formatter) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &statInstance{attr: attr, mode: mode, ddof: ddof, format: format}
		}
	}
}

// Average is the mean of the valid numeric values of one attribute.
func Average(format Formatter) Factory { return runningStat(statMean, 1, format) }

// Variance is the variance with ddof delta degrees of freedom.
func Variance(ddof int, format Formatter) Factory { return runningStat(statVariance, ddof, format) }

// StdDev is the standard deviation with ddof delta degrees of freedom.
func StdDev(ddof int, format Formatter) Factory { return runningStat(statStdDev, ddof, format) }

// quantiles

type quantileInstance struct {
	attr   string
	q      float64
	vals   []float64
	format Formatter
}

func (s *quantileInstance) Push(rec Record) {
	if x, ok := numberAt(rec, s.attr); ok {
		s.vals = append(s.vals, x)
	}
}

// Value interpolates linearly between the two closest ranks.
func (s *quantileInstance) Value() any {
	if len(s.vals) == 0 {
		return nil
	}
	sorted := slices.Clone(s.vals)
	slices.Sort(sorted)
	pos := float64(len(sorted)-1) * s.q
	lo, hi := int(math.Floor(pos)), int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func (s *quantileInstance) Format(v any) string { return s.format(v) }
func (s *quantileInstance) NumInputs() int      { return 1 }

// Quantile returns the q-th quantile (0..1) of one attribute.
func Quantile(q float64, format Formatter) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &quantileInstance{attr: attr, q: q, format: format}
		}
	}
}

// mode

type modeInstance struct {
	attr   string
	counts map[string]int
	first  map[string]any
	order  []string
	format Formatter
}

func (m *modeInstance) Push(rec Record) {
	v := rec.Get(m.attr)
	if v == nil {
		return
	}
	k := common.ToKey(v)
	if _, ok := m.counts[k]; !ok {
		m.first[k] = v
		m.order = append(m.order, k)
	}
	m.counts[k]++
}

// Value returns the most frequent value, the earliest seen on ties.
func (m *modeInstance) Value() any {
	best, bestCount := "", 0
	for _, k := range m.order {
		if c := m.counts[k]; c > bestCount {
			best, bestCount = k, c
		}
	}
	if bestCount == 0 {
		return nil
	}
	return normalize(m.first[best])
}

func (m *modeInstance) Format(v any) string { return m.format(v) }
func (m *modeInstance) NumInputs() int      { return 1 }

// Mode returns the most frequent value of one attribute.
func Mode(format Formatter) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &modeInstance{attr: attr, counts: make(map[string]int), first: make(map[string]any), format: format}
		}
	}
}

// extremes

type extremeMode int

const (
	extremeMin extremeMode = iota
	extremeMax
)

type extremeInstance struct {
	attr   string
	mode   extremeMode
	val    float64
	valid  bool
	format Formatter
}

func (e *extremeInstance) Push(rec Record) {
	x, ok := numberAt(rec, e.attr)
	if !ok {
		return
	}
	switch {
	case !e.valid:
		e.val, e.valid = x, true
	case e.mode == extremeMin:
		e.val = math.Min(e.val, x)
	default:
		e.val = math.Max(e.val, x)
	}
}

func (e *extremeInstance) Value() any          { return numeric(e.val, e.valid) }
func (e *extremeInstance) Format(v any) string { return e.format(v) }
func (e *extremeInstance) NumInputs() int      { return 1 }

func extremes(mode extremeMode, format Formatter) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &extremeInstance{attr: attr, mode: mode, format: format}
		}
	}
}

// Min is the smallest numeric value of one attribute.
func Min(format Formatter) Factory { return extremes(extremeMin, format) }

// Max is the largest numeric value of one attribute.
func Max(format Formatter) Factory { return extremes(extremeMax, format) }

// positional

type positionInstance struct {
	attr   string
	last   bool
	val    any
	seen   bool
	format Formatter
}

func (p *positionInstance) Push(rec Record) {
	v := rec.Get(p.attr)
	if v == nil {
		return
	}
	if !p.seen || p.last {
		p.val, p.seen = v, true
	}
}

func (p *positionInstance) Value() any {
	if !p.seen {
		return nil
	}
	return normalize(p.val)
}

func (p *positionInstance) Format(v any) string { return p.format(v) }
func (p *positionInstance) NumInputs() int      { return 1 }

func position(last bool, format Formatter) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &positionInstance{attr: attr, last: last, format: format}
		}
	}
}

// First keeps the value of the first pushed record carrying the attribute.
func First(format Formatter) Factory { return position(false, format) }

// Last keeps the value of the last pushed record carrying the attribute.
func Last(format Formatter) Factory { return position(true, format) }

// concatenation

type concatInstance struct {
	attr  string
	sep   string
	parts []string
}

func (c *concatInstance) Push(rec Record) {
	if v := rec.Get(c.attr); v != nil {
		c.parts = append(c.parts, formatPlain(v))
	}
}

func (c *concatInstance) Value() any {
	if len(c.parts) == 0 {
		return nil
	}
	return strings.Join(c.parts, c.sep)
}

func (c *concatInstance) Format(v any) string { return formatPlain(v) }
func (c *concatInstance) NumInputs() int      { return 1 }

// Concatenate joins every non-nil value of one attribute in push order.
func Concatenate(sep string) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &concatInstance{attr: attr, sep: sep}
		}
	}
}

// booleans

type boolInstance struct {
	attr    string
	anyTrue bool
	acc     bool
	valid   bool
}

func (b *boolInstance) Push(rec Record) {
	x, ok := toBool(rec.Get(b.attr))
	if !ok {
		return
	}
	switch {
	case !b.valid:
		b.acc, b.valid = x, true
	case b.anyTrue:
		b.acc = b.acc || x
	default:
		b.acc = b.acc && x
	}
}

func (b *boolInstance) Value() any {
	if !b.valid {
		return nil
	}
	return b.acc
}

func (b *boolInstance) Format(v any) string { return formatPlain(v) }
func (b *boolInstance) NumInputs() int      { return 1 }

func boolean(anyTrue bool) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &boolInstance{attr: attr, anyTrue: anyTrue}
		}
	}
}

// AllTrue reports whether every boolean value of one attribute is true.
func AllTrue() Factory { return boolean(false) }

// AnyTrue reports whether at least one boolean value of one attribute is true.
func AnyTrue() Factory { return boolean(true) }

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	default:
		return false, false
	}
}

// dates

type dateMode int

const (
	dateEarliest dateMode = iota
	dateLatest
	dateRangeDays
)

type dateInstance struct {
	attr     string
	mode     dateMode
	min, max time.Time
	valid    bool
	format   Formatter
}

func (d *dateInstance) Push(rec Record) {
	t, ok := common.ToTime(rec.Get(d.attr))
	if !ok {
		return
	}
	if !d.valid {
		d.min, d.max, d.valid = t, t, true
		return
	}
	if t.Before(d.min) {
		d.min = t
	}
	if t.After(d.max) {
		d.max = t
	}
}

func (d *dateInstance) Value() any {
	if !d.valid {
		return nil
	}
	switch d.mode {
	case dateEarliest:
		return d.min
	case dateLatest:
		return d.max
	default:
		return math.Floor(d.max.Sub(d.min).Hours() / 24)
	}
}

func (d *dateInstance) Format(v any) string { return d.format(v) }
func (d *dateInstance) NumInputs() int      { return 1 }

func dates(mode dateMode, format Formatter) Factory {
	return func(attrs []string) Aggregator {
		attr := attrAt(attrs, 0)
		return func(Lookup, []string, []string) Instance {
			return &dateInstance{attr: attr, mode: mode, format: format}
		}
	}
}

// EarliestDate is the minimum date value of one attribute.
func EarliestDate() Factory { return dates(dateEarliest, formatPlain) }

// LatestDate is the maximum date value of one attribute.
func LatestDate() Factory { return dates(dateLatest, formatPlain) }

// DateRangeDays is the number of whole days between the earliest and latest
// date values of one attribute.
func DateRangeDays(format Formatter) Factory { return dates(dateRangeDays, format) }

// ratios

type sumOverSumInstance struct {
	num, denom       string
	sumNum, sumDenom float64
	format           Formatter
}

func (s *sumOverSumInstance) Push(rec Record) {
	if x, ok := numberAt(rec, s.num); ok {
		s.sumNum += x
	}
	if x, ok := numberAt(rec, s.denom); ok {
		s.sumDenom += x
	}
}

func (s *sumOverSumInstance) Value() any {
	if s.sumDenom == 0 {
		return nil
	}
	return s.sumNum / s.sumDenom
}

func (s *sumOverSumInstance) Format(v any) string { return s.format(v) }
func (s *sumOverSumInstance) NumInputs() int      { return 2 }

// SumOverSum divides the sum of the first attribute by the sum of the second.
func SumOverSum(format Formatter) Factory {
	return func(attrs []string) Aggregator {
		num, denom := attrAt(attrs, 0), attrAt(attrs, 1)
		return func(Lookup, []string, []string) Instance {
			return &sumOverSumInstance{num: num, denom: denom, format: format}
		}
	}
}

// Scope selects the denominator of a fraction aggregator.
type Scope int

const (
	ScopeTotal Scope = iota
	ScopeRow
	ScopeCol
)

type fractionInstance struct {
	inner   Instance
	scope   Scope
	lookup  Lookup
	rowKey  []string
	colKey  []string
	format  Formatter
	numArgs int
}

func (f *fractionInstance) Push(rec Record) { f.inner.Push(rec) }

func (f *fractionInstance) Value() any {
	num, ok := common.ToFloat64(f.inner.Value())
	if !ok || f.lookup == nil {
		return nil
	}

	var rowKey, colKey []string
	switch f.scope {
	case ScopeRow:
		rowKey = f.rowKey
	case ScopeCol:
		colKey = f.colKey
	}

	denomInst := f.lookup.GetAggregator(rowKey, colKey)
	if denomInst == nil {
		return nil
	}
	var denomValue any
	if other, isFraction := denomInst.(*fractionInstance); isFraction {
		denomValue = other.inner.Value()
	} else {
		denomValue = denomInst.Value()
	}
	denom, ok := common.ToFloat64(denomValue)
	if !ok || denom == 0 {
		return nil
	}
	return num / denom
}

func (f *fractionInstance) Format(v any) string { return f.format(v) }
func (f *fractionInstance) NumInputs() int      { return f.numArgs }

// FractionOf divides the wrapped aggregator's value by the same aggregator
// evaluated over the grand total, the cell's row or the cell's column.
func FractionOf(wrapped Factory, scope Scope, format Formatter) Factory {
	return func(attrs []string) Aggregator {
		inner := wrapped(attrs)
		return func(lookup Lookup, rowKey, colKey []string) Instance {
			in := inner(lookup, rowKey, colKey)
			return &fractionInstance{
				inner:   in,
				scope:   scope,
				lookup:  lookup,
				rowKey:  rowKey,
				colKey:  colKey,
				format:  format,
				numArgs: in.NumInputs(),
			}
		}
	}
}

// normalize converts integer and float32 values to float64 so that results
// have a uniform numeric type.
func normalize(v any) any {
	if !common.IsNumeric(v) {
		return v
	}
	if f, ok := common.ToFloat64(v); ok {
		return f
	}
	return nil
}
