// Package analysis implements the batch analyses over the agency dataset
package analysis

import (
	"agency-insights/internal/dataset"
	"agency-insights/internal/stats"
)

// ColumnInfo describes one column of the dataset
type ColumnInfo struct {
	Name    string `json:"name"`
	Dtype   string `json:"dtype"`
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique"`
}

// ColumnSummary pairs a numeric column with its descriptive statistics
type ColumnSummary struct {
	Name    string        `json:"name"`
	Summary stats.Summary `json:"summary"`
}

// StructureReport is the overview of the dataset layout
type StructureReport struct {
	Rows        int             `json:"rows"`
	Columns     int             `json:"columns"`
	Dtypes      map[string]int  `json:"dtypes"`
	MemoryBytes int64           `json:"memory_bytes"`
	Info        []ColumnInfo    `json:"info"`
	Header      []string        `json:"header"`
	Head        [][]string      `json:"head"`
	Summary     []ColumnSummary `json:"summary"`
}

// Structure describes the shape, types and first rows of the frame
func Structure(f *dataset.Frame) StructureReport {
	rows, cols := f.Shape()
	r := StructureReport{
		Rows:        rows,
		Columns:     cols,
		Dtypes:      f.DtypeCounts(),
		MemoryBytes: f.MemoryBytes(),
		Header:      f.Columns(),
		Head:        f.Head(5),
		Summary:     Describe(f),
	}

	missing := f.MissingCounts()
	for _, name := range f.Columns() {
		c, _ := f.Column(name)
		vals, _ := f.Categorical(name)
		r.Info = append(r.Info, ColumnInfo{
			Name:    name,
			Dtype:   c.Kind.String(),
			NonNull: rows - missing[name],
			Missing: missing[name],
			Unique:  stats.NUnique(vals),
		})
	}
	return r
}

// Describe summarises every numeric column
func Describe(f *dataset.Frame) []ColumnSummary {
	var out []ColumnSummary
	for _, name := range f.NumericColumns() {
		vals, _ := f.Numeric(name)
		out = append(out, ColumnSummary{Name: name, Summary: stats.Describe(vals)})
	}
	return out
}
