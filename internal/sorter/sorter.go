// Package sorter provides the comparator strategies used to order pivot keys.
//
// A Sorter compares two attribute values taken from key paths. Key paths are
// ordered level by level: the first grouping attribute decides, the next one
// breaks ties within the same parent group, and so on. This makes the order
// of children inside one parent independent of sibling groups.
package sorter

import (
	"cmp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/paveg/crosstab/internal/common"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sorter compares two attribute values with standard comparator semantics.
type Sorter func(a, b string) int

// Sorters resolves per-attribute comparator overrides. SorterFor returns nil
// when the attribute should keep the default natural order.
type Sorters interface {
	SorterFor(attr string) Sorter
}

// SorterMap overrides the comparator for specific attributes.
type SorterMap map[string]Sorter

// SorterFor implements Sorters.
func (m SorterMap) SorterFor(attr string) Sorter {
	return m[attr]
}

// SorterFunc builds comparators on demand from the attribute name.
type SorterFunc func(attr string) Sorter

// SorterFor implements Sorters.
func (f SorterFunc) SorterFor(attr string) Sorter {
	if f == nil {
		return nil
	}
	return f(attr)
}

// Get returns the comparator for attr, falling back to NaturalSort.
func Get(sorters Sorters, attr string) Sorter {
	if sorters != nil {
		if s := sorters.SorterFor(attr); s != nil {
			return s
		}
	}
	return NaturalSort
}

// NaturalSort orders numbers numerically (and before text), and text
// case-insensitively with embedded digit runs compared by value, so that
// "item 2" sorts before "item 10".
func NaturalSort(a, b string) int {
	if a == b {
		return 0
	}

	na, aNum := parseNumber(a)
	nb, bNum := parseNumber(b)
	switch {
	case aNum && bNum:
		return cmp.Compare(na, nb)
	case aNum:
		return -1
	case bNum:
		return 1
	}

	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 0
	}
	if !hasDigit(la) || !hasDigit(lb) {
		return strings.Compare(la, lb)
	}

	ca, cb := chunks(la), chunks(lb)
	for i := 0; i < len(ca) && i < len(cb); i++ {
		x, y := ca[i], cb[i]
		if x == y {
			continue
		}
		if isDigits(x) && isDigits(y) {
			fx, _ := strconv.ParseFloat(x, 64)
			fy, _ := strconv.ParseFloat(y, 64)
			if c := cmp.Compare(fx, fy); c != 0 {
				return c
			}
			// Equal magnitude with different leading zeros.
			return cmp.Compare(len(x), len(y))
		}
		return strings.Compare(x, y)
	}
	return cmp.Compare(len(ca), len(cb))
}

// SortAs orders the listed values first, in the given order, matching
// case-insensitively as a fallback. Unlisted values follow in natural order.
func SortAs(order []string) Sorter {
	exact := make(map[string]int, len(order))
	lower := make(map[string]int, len(order))
	for i, v := range order {
		if _, ok := exact[v]; !ok {
			exact[v] = i
		}
		if _, ok := lower[strings.ToLower(v)]; !ok {
			lower[strings.ToLower(v)] = i
		}
	}

	rank := func(v string) (int, bool) {
		if i, ok := exact[v]; ok {
			return i, true
		}
		i, ok := lower[strings.ToLower(v)]
		return i, ok
	}

	return func(a, b string) int {
		ia, aOK := rank(a)
		ib, bOK := rank(b)
		switch {
		case aOK && bOK:
			return cmp.Compare(ia, ib)
		case aOK:
			return -1
		case bOK:
			return 1
		}
		return NaturalSort(a, b)
	}
}

// NumericSorter compares values as numbers. Values that do not parse sort
// after every number and among themselves in natural order.
func NumericSorter(a, b string) int {
	na, aOK := parseNumber(a)
	nb, bOK := parseNumber(b)
	switch {
	case aOK && bOK:
		return cmp.Compare(na, nb)
	case aOK:
		return -1
	case bOK:
		return 1
	default:
		return NaturalSort(a, b)
	}
}

// DateSorter compares values as dates. Values that do not parse sort after
// every date.
func DateSorter(a, b string) int {
	ta, aOK := parseDate(a)
	tb, bOK := parseDate(b)
	switch {
	case aOK && bOK:
		return ta.Compare(tb)
	case aOK:
		return -1
	case bOK:
		return 1
	default:
		return NaturalSort(a, b)
	}
}

// Reverse inverts a comparator.
func Reverse(s Sorter) Sorter {
	return func(a, b string) int {
		return -s(a, b)
	}
}

// LocaleSorter compares text with the collation rules of the given language,
// ignoring case and ordering digit runs numerically.
func LocaleSorter(tag language.Tag) Sorter {
	var mu sync.Mutex
	c := collate.New(tag, collate.IgnoreCase, collate.Numeric)
	return func(a, b string) int {
		mu.Lock()
		defer mu.Unlock()
		return c.CompareString(a, b)
	}
}

// KeyComparator orders key paths attribute by attribute using the resolved
// per-attribute sorters. Paths equal under every sorter are ordered by their
// raw bytes so the result is deterministic.
func KeyComparator(sorters Sorters, attrs []string) func(a, b []string) int {
	resolved := make([]Sorter, len(attrs))
	for i, attr := range attrs {
		resolved[i] = Get(sorters, attr)
	}

	return func(a, b []string) int {
		for i, s := range resolved {
			if i >= len(a) || i >= len(b) {
				break
			}
			if c := s(a[i], b[i]); c != 0 {
				return c
			}
		}
		if c := cmp.Compare(len(a), len(b)); c != 0 {
			return c
		}
		return strings.Compare(strings.Join(a, "\x00"), strings.Join(b, "\x00"))
	}
}

// CompareValues orders aggregated values: numbers numerically, anything else
// by natural order of its key string. Nil values are placed last whatever
// the direction.
func CompareValues(a, b any, descending bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	var c int
	fa, aOK := common.ToFloat64(a)
	fb, bOK := common.ToFloat64(b)
	if aOK && bOK {
		c = cmp.Compare(fa, fb)
	} else {
		c = NaturalSort(common.ToKey(a), common.ToKey(b))
	}
	if descending {
		return -c
	}
	return c
}

func parseNumber(s string) (float64, bool) {
	if s == "" || s == common.NullKey {
		return 0, false
	}
	f, ok := common.ToFloat64(s)
	return f, ok
}

func parseDate(s string) (time.Time, bool) {
	if s == common.NullKey {
		return time.Time{}, false
	}
	return common.ToTime(s)
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func isDigits(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}

// chunks splits s into alternating runs of digits and non-digits.
func chunks(s string) []string {
	var out []string
	start := 0
	prevDigit := false
	for i, r := range s {
		digit := unicode.IsDigit(r)
		if i > 0 && digit != prevDigit {
			out = append(out, s[start:i])
			start = i
		}
		prevDigit = digit
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
