package stats

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"agency-insights/internal/dataset"
)

// AggFunc is a reduction applied to one column of a group
type AggFunc int

const (
	SumOf AggFunc = iota
	MeanOf
	MedianOf
	CountOf
	NUniqueOf
	MinOf
	MaxOf
)

func (a AggFunc) String() string {
	switch a {
	case SumOf:
		return "sum"
	case MeanOf:
		return "mean"
	case MedianOf:
		return "median"
	case CountOf:
		return "count"
	case NUniqueOf:
		return "nunique"
	case MinOf:
		return "min"
	case MaxOf:
		return "max"
	}
	return "unknown"
}

// Agg names one output column of Aggregate
type Agg struct {
	Column string
	Func   AggFunc
	// As is the output name; empty means COLUMN_func
	As string
}

func (a Agg) name() string {
	if a.As != "" {
		return a.As
	}
	return a.Column + "_" + a.Func.String()
}

// Group is the set of rows sharing one key
type Group struct {
	Key  []string
	Rows []int
}

// GroupBy partitions rows by the values of the key columns. Rows with an empty
// key are dropped. Groups come back sorted by key.
func GroupBy(f *dataset.Frame, keys ...string) ([]Group, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("group by needs at least one key")
	}
	cols := make([][]string, len(keys))
	for i, k := range keys {
		vals, err := f.Categorical(k)
		if err != nil {
			return nil, err
		}
		cols[i] = vals
	}

	byKey := make(map[string]*Group)
	var order []string
	for r := 0; r < f.Len(); r++ {
		key := make([]string, len(keys))
		skip := false
		for i := range keys {
			key[i] = cols[i][r]
			if key[i] == "" {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		joined := strings.Join(key, "\x1f")
		g, ok := byKey[joined]
		if !ok {
			g = &Group{Key: key}
			byKey[joined] = g
			order = append(order, joined)
		}
		g.Rows = append(g.Rows, r)
	}

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		groups = append(groups, *byKey[k])
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return lessKey(groups[a].Key, groups[b].Key)
	})
	return groups, nil
}

// lessKey orders numerically when both parts parse as numbers
func lessKey(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		fa, errA := strconv.ParseFloat(a[i], 64)
		fb, errB := strconv.ParseFloat(b[i], 64)
		if errA == nil && errB == nil && fa != fb {
			return fa < fb
		}
		return a[i] < b[i]
	}
	return false
}

// GroupRow is one aggregated group
type GroupRow struct {
	Key    []string
	Values []float64
	Rows   []int
}

// Grouped is the result of Aggregate: one row per group, one column per Agg
type Grouped struct {
	KeyNames []string   `json:"keys"`
	Columns  []string   `json:"columns"`
	Rows     []GroupRow `json:"rows"`
}

// Aggregate reduces each group with the given aggregations
func Aggregate(f *dataset.Frame, keyNames []string, groups []Group, aggs []Agg) (*Grouped, error) {
	out := &Grouped{KeyNames: keyNames}
	cols := make([]*dataset.Column, len(aggs))
	for i, a := range aggs {
		c, err := f.Column(a.Column)
		if err != nil {
			return nil, err
		}
		if c.Kind != dataset.Numeric && a.Func != CountOf && a.Func != NUniqueOf {
			return nil, fmt.Errorf("%w: cannot %s %s", dataset.ErrWrongKind, a.Func, a.Column)
		}
		cols[i] = c
		out.Columns = append(out.Columns, a.name())
	}

	for _, g := range groups {
		row := GroupRow{Key: g.Key, Rows: g.Rows, Values: make([]float64, len(aggs))}
		for i, a := range aggs {
			row.Values[i] = reduce(cols[i], g.Rows, a.Func)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// GroupAggregate is GroupBy followed by Aggregate
func GroupAggregate(f *dataset.Frame, keys []string, aggs []Agg) (*Grouped, error) {
	groups, err := GroupBy(f, keys...)
	if err != nil {
		return nil, err
	}
	return Aggregate(f, keys, groups, aggs)
}

func reduce(c *dataset.Column, rows []int, fn AggFunc) float64 {
	switch fn {
	case CountOf:
		n := 0
		for _, r := range rows {
			if !c.Missing(r) {
				n++
			}
		}
		return float64(n)
	case NUniqueOf:
		seen := make(map[string]struct{})
		for _, r := range rows {
			if !c.Missing(r) {
				seen[c.Format(r)] = struct{}{}
			}
		}
		return float64(len(seen))
	}

	vals := make([]float64, len(rows))
	for i, r := range rows {
		vals[i] = c.Floats[r]
	}
	switch fn {
	case SumOf:
		return Sum(vals)
	case MeanOf:
		return Mean(vals)
	case MedianOf:
		return Median(vals)
	case MinOf:
		lo, _ := MinMax(vals)
		return lo
	case MaxOf:
		_, hi := MinMax(vals)
		return hi
	}
	return math.NaN()
}

// Col returns the index of a value column, or -1
func (g *Grouped) Col(name string) int {
	for i, c := range g.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the named value of row i, NaN when the column is unknown
func (g *Grouped) Value(i int, name string) float64 {
	c := g.Col(name)
	if c < 0 {
		return math.NaN()
	}
	return g.Rows[i].Values[c]
}

// Values returns one value column
func (g *Grouped) Values(name string) []float64 {
	c := g.Col(name)
	out := make([]float64, len(g.Rows))
	for i, r := range g.Rows {
		if c < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = r.Values[c]
	}
	return out
}

// Labels returns the joined key of every row
func (g *Grouped) Labels() []string {
	out := make([]string, len(g.Rows))
	for i, r := range g.Rows {
		out[i] = strings.Join(r.Key, " / ")
	}
	return out
}

// AddColumn appends a computed column
func (g *Grouped) AddColumn(name string, fn func(row GroupRow) float64) {
	g.Columns = append(g.Columns, name)
	for i := range g.Rows {
		g.Rows[i].Values = append(g.Rows[i].Values, fn(g.Rows[i]))
	}
}

// SortBy orders rows by a value column. NaN sorts last either way.
func (g *Grouped) SortBy(name string, desc bool) *Grouped {
	c := g.Col(name)
	if c < 0 {
		return g
	}
	sort.SliceStable(g.Rows, func(a, b int) bool {
		va, vb := g.Rows[a].Values[c], g.Rows[b].Values[c]
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
	return g
}

// Head returns a copy holding at most n rows
func (g *Grouped) Head(n int) *Grouped {
	if n > len(g.Rows) {
		n = len(g.Rows)
	}
	out := &Grouped{KeyNames: g.KeyNames, Columns: append([]string(nil), g.Columns...)}
	for _, r := range g.Rows[:n] {
		out.Rows = append(out.Rows, r.clone())
	}
	return out
}

// Filter returns a copy holding the rows keep accepts
func (g *Grouped) Filter(keep func(row GroupRow) bool) *Grouped {
	out := &Grouped{KeyNames: g.KeyNames, Columns: append([]string(nil), g.Columns...)}
	for _, r := range g.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r.clone())
		}
	}
	return out
}

func (r GroupRow) clone() GroupRow {
	r.Values = append([]float64(nil), r.Values...)
	return r
}
