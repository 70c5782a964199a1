package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrColumnNotFound is returned when a named column is absent from the frame
	ErrColumnNotFound = errors.New("column not found")
	// ErrEmptyDataset is returned when the input holds no data rows
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrWrongKind is returned when a numeric accessor is used on a categorical column or vice versa
	ErrWrongKind = errors.New("column has the wrong kind")
)

// Kind is the inferred type of a column
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "float64"
	}
	return "object"
}

// Column holds one column of the frame. Numeric columns use NaN for missing
// values, categorical columns use the empty string.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// Missing reports whether row i is missing
func (c *Column) Missing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Floats[i])
	}
	return c.Strings[i] == ""
}

// Format returns row i as text, empty when missing
func (c *Column) Format(i int) string {
	if c.Kind == Categorical {
		return c.Strings[i]
	}
	v := c.Floats[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Frame is an in-memory column store of agency-year records
type Frame struct {
	columns      []*Column
	index        map[string]int
	rows         int
	placeholders map[string]int
}

// NewFrame creates an empty frame with a fixed row count
func NewFrame(rows int) *Frame {
	return &Frame{
		index:        make(map[string]int),
		rows:         rows,
		placeholders: make(map[string]int),
	}
}

// Len returns the number of rows
func (f *Frame) Len() int { return f.rows }

// Shape returns rows and columns
func (f *Frame) Shape() (int, int) { return f.rows, len(f.columns) }

// Columns returns the column names in file order
func (f *Frame) Columns() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether every named column exists
func (f *Frame) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := f.index[n]; !ok {
			return false
		}
	}
	return true
}

// Column returns the named column
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return f.columns[i], nil
}

// Numeric returns the values of a numeric column
func (f *Frame) Numeric(name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongKind, name, c.Kind)
	}
	return c.Floats, nil
}

// Categorical returns the values of a categorical column. A numeric column
// is formatted so it can still be used as a grouping key.
func (f *Frame) Categorical(name string) ([]string, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind == Categorical {
		return c.Strings, nil
	}
	out := make([]string, f.rows)
	for i := range out {
		out[i] = c.Format(i)
	}
	return out, nil
}

// NumericColumns returns the names of numeric columns in file order
func (f *Frame) NumericColumns() []string {
	return f.columnsOfKind(Numeric)
}

// CategoricalColumns returns the names of categorical columns in file order
func (f *Frame) CategoricalColumns() []string {
	return f.columnsOfKind(Categorical)
}

func (f *Frame) columnsOfKind(k Kind) []string {
	var names []string
	for _, c := range f.columns {
		if c.Kind == k {
			names = append(names, c.Name)
		}
	}
	return names
}

// Row returns row i formatted as text
func (f *Frame) Row(i int) []string {
	out := make([]string, len(f.columns))
	for j, c := range f.columns {
		out[j] = c.Format(i)
	}
	return out
}

// Head returns up to n formatted rows
func (f *Frame) Head(n int) [][]string {
	if n > f.rows {
		n = f.rows
	}
	out := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.Row(i))
	}
	return out
}

// PlaceholderCounts returns the number of sentinel values seen per numeric
// column at load time. Columns without sentinels are omitted.
func (f *Frame) PlaceholderCounts() map[string]int {
	out := make(map[string]int, len(f.placeholders))
	for k, v := range f.placeholders {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

// MissingCounts returns the number of missing cells per column
func (f *Frame) MissingCounts() map[string]int {
	out := make(map[string]int, len(f.columns))
	for _, c := range f.columns {
		n := 0
		for i := 0; i < f.rows; i++ {
			if c.Missing(i) {
				n++
			}
		}
		out[c.Name] = n
	}
	return out
}

// DuplicateRows counts rows that repeat an earlier row exactly
func (f *Frame) DuplicateRows() int {
	seen := make(map[string]struct{}, f.rows)
	dups := 0
	for i := 0; i < f.rows; i++ {
		key := strings.Join(f.Row(i), "\x1f")
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// CompleteRows counts rows with no missing cell
func (f *Frame) CompleteRows() int {
	n := 0
	for i := 0; i < f.rows; i++ {
		complete := true
		for _, c := range f.columns {
			if c.Missing(i) {
				complete = false
				break
			}
		}
		if complete {
			n++
		}
	}
	return n
}

// MemoryBytes estimates the in-memory size of the frame
func (f *Frame) MemoryBytes() int64 {
	var total int64
	for _, c := range f.columns {
		if c.Kind == Numeric {
			total += int64(len(c.Floats)) * 8
			continue
		}
		for _, s := range c.Strings {
			total += int64(len(s)) + 16
		}
	}
	return total
}

// DtypeCounts returns the number of columns per kind
func (f *Frame) DtypeCounts() map[string]int {
	out := make(map[string]int)
	for _, c := range f.columns {
		out[c.Kind.String()]++
	}
	return out
}

// Filter returns a new frame with the rows for which keep returns true
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	var idx []int
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return f.Take(idx)
}

// Take returns a new frame with the given rows in the given order
func (f *Frame) Take(idx []int) *Frame {
	out := NewFrame(len(idx))
	for k, v := range f.placeholders {
		out.placeholders[k] = v
	}
	for _, c := range f.columns {
		nc := &Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Numeric {
			nc.Floats = make([]float64, len(idx))
			for j, i := range idx {
				nc.Floats[j] = c.Floats[i]
			}
		} else {
			nc.Strings = make([]string, len(idx))
			for j, i := range idx {
				nc.Strings[j] = c.Strings[i]
			}
		}
		out.add(nc)
	}
	return out
}

// AddNumeric adds or replaces a numeric column
func (f *Frame) AddNumeric(name string, values []float64) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), f.rows)
	}
	c := &Column{Name: name, Kind: Numeric, Floats: values}
	if i, ok := f.index[name]; ok {
		f.columns[i] = c
		return nil
	}
	f.add(c)
	return nil
}

// AddCategorical adds or replaces a categorical column
func (f *Frame) AddCategorical(name string, values []string) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), f.rows)
	}
	c := &Column{Name: name, Kind: Categorical, Strings: values}
	if i, ok := f.index[name]; ok {
		f.columns[i] = c
		return nil
	}
	f.add(c)
	return nil
}

// SortedBy returns row indices ordered by a numeric column. Missing values sort last.
func (f *Frame) SortedBy(name string, desc bool) ([]int, error) {
	vals, err := f.Numeric(name)
	if err != nil {
		return nil, err
	}
	idx := make([]int, f.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := vals[idx[a]], vals[idx[b]]
		if math.IsNaN(va) {
			return false
		}
		if math.IsNaN(vb) {
			return true
		}
		if desc {
			return va > vb
		}
		return va < vb
	})
	return idx, nil
}

func (f *Frame) add(c *Column) {
	f.index[c.Name] = len(f.columns)
	f.columns = append(f.columns, c)
}
