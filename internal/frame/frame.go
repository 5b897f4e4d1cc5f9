// Package frame provides the immutable columnar table that flows between
// pipeline stages.
//
// A Frame is keyed by entity and date. Numeric columns use NaN for missing
// values; text columns keep raw strings. Every operation returns a new Frame
// and never writes into an existing column slice, so frames may share column
// storage freely.
package frame

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is an immutable (entity, date) keyed table.
type Frame struct {
	entities []string
	dates    []time.Time
	numeric  map[string][]float64
	text     map[string][]string
	order    []string
}

// New creates a Frame with key columns only. The slices are copied.
func New(entities []string, dates []time.Time) (*Frame, error) {
	if len(entities) != len(dates) {
		return nil, fmt.Errorf("frame: %d entities but %d dates", len(entities), len(dates))
	}
	return &Frame{
		entities: append([]string(nil), entities...),
		dates:    append([]time.Time(nil), dates...),
		numeric:  map[string][]float64{},
		text:     map[string][]string{},
	}, nil
}

// Empty returns a Frame with no rows and no columns.
func Empty() *Frame {
	return &Frame{numeric: map[string][]float64{}, text: map[string][]string{}}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.entities) }

// Entity returns the entity of row i.
func (f *Frame) Entity(i int) string { return f.entities[i] }

// Date returns the date of row i.
func (f *Frame) Date(i int) time.Time { return f.dates[i] }

// Columns returns column names in insertion order, excluding the key.
func (f *Frame) Columns() []string { return append([]string(nil), f.order...) }

// HasColumn reports whether name is a numeric or text column.
func (f *Frame) HasColumn(name string) bool {
	_, n := f.numeric[name]
	_, t := f.text[name]
	return n || t
}

// IsNumeric reports whether name is a numeric column.
func (f *Frame) IsNumeric(name string) bool {
	_, ok := f.numeric[name]
	return ok
}

// Numeric returns the numeric column name. The slice must not be modified.
func (f *Frame) Numeric(name string) ([]float64, bool) {
	col, ok := f.numeric[name]
	return col, ok
}

// Text returns the text column name. The slice must not be modified.
func (f *Frame) Text(name string) ([]string, bool) {
	col, ok := f.text[name]
	return col, ok
}

// Value returns the numeric value at row i, or NaN when the column is absent.
func (f *Frame) Value(name string, i int) float64 {
	col, ok := f.numeric[name]
	if !ok {
		return math.NaN()
	}
	return col[i]
}

// String returns the text value at row i, or "" when the column is absent.
func (f *Frame) String(name string, i int) string {
	col, ok := f.text[name]
	if !ok {
		return ""
	}
	return col[i]
}

// WithNumeric returns a new Frame with the numeric column added or replaced.
// The values slice is owned by the returned Frame afterwards.
func (f *Frame) WithNumeric(name string, values []float64) (*Frame, error) {
	if len(values) != f.Len() {
		return nil, fmt.Errorf("frame: column %s has %d values for %d rows", name, len(values), f.Len())
	}
	if _, ok := f.text[name]; ok {
		return nil, fmt.Errorf("frame: column %s already exists as text", name)
	}
	out := f.shallowCopy()
	if _, ok := out.numeric[name]; !ok {
		out.order = append(out.order, name)
	}
	out.numeric[name] = values
	return out, nil
}

// WithText returns a new Frame with the text column added or replaced.
func (f *Frame) WithText(name string, values []string) (*Frame, error) {
	if len(values) != f.Len() {
		return nil, fmt.Errorf("frame: column %s has %d values for %d rows", name, len(values), f.Len())
	}
	if _, ok := f.numeric[name]; ok {
		return nil, fmt.Errorf("frame: column %s already exists as numeric", name)
	}
	out := f.shallowCopy()
	if _, ok := out.text[name]; !ok {
		out.order = append(out.order, name)
	}
	out.text[name] = values
	return out, nil
}

// Take returns a new Frame holding the rows at idx, in that order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{
		entities: make([]string, len(idx)),
		dates:    make([]time.Time, len(idx)),
		numeric:  make(map[string][]float64, len(f.numeric)),
		text:     make(map[string][]string, len(f.text)),
		order:    append([]string(nil), f.order...),
	}
	for j, i := range idx {
		out.entities[j] = f.entities[i]
		out.dates[j] = f.dates[i]
	}
	for name, col := range f.numeric {
		dst := make([]float64, len(idx))
		for j, i := range idx {
			dst[j] = col[i]
		}
		out.numeric[name] = dst
	}
	for name, col := range f.text {
		dst := make([]string, len(idx))
		for j, i := range idx {
			dst[j] = col[i]
		}
		out.text[name] = dst
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	idx := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return f.Take(idx)
}

// Complete reports whether row i has a non-missing value in every column.
// A missing column counts as missing.
func (f *Frame) Complete(i int, columns []string) bool {
	for _, name := range columns {
		if math.IsNaN(f.Value(name, i)) {
			return false
		}
	}
	return true
}

// DistinctEntities returns the sorted set of entities present.
func (f *Frame) DistinctEntities() []string {
	seen := make(map[string]struct{})
	for _, e := range f.entities {
		seen[e] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// DateRange returns the earliest and latest dates. ok is false for an empty frame.
func (f *Frame) DateRange() (first, last time.Time, ok bool) {
	if f.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = f.dates[0], f.dates[0]
	for _, d := range f.dates[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last, true
}

func (f *Frame) shallowCopy() *Frame {
	out := &Frame{
		entities: f.entities,
		dates:    f.dates,
		numeric:  make(map[string][]float64, len(f.numeric)+1),
		text:     make(map[string][]string, len(f.text)+1),
		order:    append([]string(nil), f.order...),
	}
	for k, v := range f.numeric {
		out.numeric[k] = v
	}
	for k, v := range f.text {
		out.text[k] = v
	}
	return out
}
