package pivot

import (
	"github.com/paveg/crosstab/internal/common"
)

// Record is one input row: attribute name to scalar value.
type Record map[string]any

// Get implements aggregator.Record.
func (r Record) Get(attr string) any {
	return r[attr]
}

// Source produces the records of a pivot. ForEach may be called more than
// once (drill-down rescans the input) and must replay the same records in
// the same order.
type Source interface {
	ForEach(fn func(Record)) error
}

// Records is a Source over a slice of records.
type Records []Record

// ForEach implements Source.
func (rs Records) ForEach(fn func(Record)) error {
	for _, r := range rs {
		fn(r)
	}
	return nil
}

// Matrix is a Source over rows of values whose first row holds the
// attribute names. Short rows leave the trailing attributes missing.
type Matrix [][]any

// ForEach implements Source.
func (m Matrix) ForEach(fn func(Record)) error {
	if len(m) == 0 {
		return nil
	}
	header := make([]string, len(m[0]))
	for i, h := range m[0] {
		header[i] = common.ToKey(h)
	}
	for _, row := range m[1:] {
		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		fn(rec)
	}
	return nil
}

// SourceFunc is a push-style producer: it calls emit once per record.
type SourceFunc func(emit func(Record)) error

// ForEach implements Source.
func (f SourceFunc) ForEach(fn func(Record)) error {
	return f(fn)
}

// DerivedAttribute computes a pseudo-attribute from a source record. It must
// be pure. A nil result leaves the attribute unset.
type DerivedAttribute func(Record) any
