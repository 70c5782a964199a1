package stats

import (
	"math"

	"agency-insights/internal/dataset"
)

// Matrix is a square correlation matrix
type Matrix struct {
	Names  []string    `json:"names"`
	Values [][]float64 `json:"values"`
}

// Correlation computes pairwise-complete Pearson correlations between the
// numeric columns among cols. Absent or non-numeric columns are skipped.
func Correlation(f *dataset.Frame, cols []string) Matrix {
	var names []string
	var data [][]float64
	for _, c := range cols {
		vals, err := f.Numeric(c)
		if err != nil {
			continue
		}
		names = append(names, c)
		data = append(data, vals)
	}

	m := Matrix{Names: names, Values: make([][]float64, len(names))}
	for i := range names {
		m.Values[i] = make([]float64, len(names))
	}
	for i := range names {
		for j := i; j < len(names); j++ {
			r := Pearson(data[i], data[j])
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

// Get returns the correlation between two named columns
func (m Matrix) Get(a, b string) (float64, bool) {
	ia, ib := -1, -1
	for i, n := range m.Names {
		if n == a {
			ia = i
		}
		if n == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return 0, false
	}
	return m.Values[ia][ib], true
}
