// Package stats implements the descriptive statistics used by the analyses.
// Every function ignores NaN values.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// Summary mirrors a describe() row for one numeric column
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// Present returns the non-NaN values
func Present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func sortedPresent(values []float64) []float64 {
	out := Present(values)
	sort.Float64s(out)
	return out
}

// Describe summarises values. All fields but Count are NaN when nothing is present.
func Describe(values []float64) Summary {
	s := sortedPresent(values)
	if len(s) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Std: nan, Min: nan, Q25: nan, Median: nan, Q75: nan, Max: nan}
	}
	return Summary{
		Count:  len(s),
		Mean:   stat.Mean(s, nil),
		Std:    sampleStd(s),
		Min:    s[0],
		Q25:    quantileSorted(s, 0.25),
		Median: quantileSorted(s, 0.5),
		Q75:    quantileSorted(s, 0.75),
		Max:    s[len(s)-1],
	}
}

// Quantile returns the p-quantile with linear interpolation between closest ranks
func Quantile(values []float64, p float64) float64 {
	return quantileSorted(sortedPresent(values), p)
}

// quantileSorted interpolates between the two nearest order statistics,
// the same definition pandas uses by default.
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Mean returns the mean of present values, NaN when none
func Mean(values []float64) float64 {
	p := Present(values)
	if len(p) == 0 {
		return math.NaN()
	}
	return stat.Mean(p, nil)
}

// Sum returns the sum of present values
func Sum(values []float64) float64 {
	return floats.Sum(Present(values))
}

// Median returns the median of present values
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Std returns the sample standard deviation of present values
func Std(values []float64) float64 {
	return sampleStd(Present(values))
}

func sampleStd(p []float64) float64 {
	if len(p) < 2 {
		return math.NaN()
	}
	return stat.StdDev(p, nil)
}

// MinMax returns the smallest and largest present values
func MinMax(values []float64) (float64, float64) {
	p := Present(values)
	if len(p) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Min(p), floats.Max(p)
}

// Count returns the number of present values
func Count(values []float64) int {
	return len(Present(values))
}

// NUnique counts distinct non-empty strings
func NUnique(values []string) int {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// Unique returns the sorted distinct non-empty strings
func Unique(values []string) []string {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Pearson returns the correlation of x and y over rows where both are present
func Pearson(x, y []float64) float64 {
	var xs, ys []float64
	for i := range x {
		if i >= len(y) {
			break
		}
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if floats.Min(xs) == floats.Max(xs) || floats.Min(ys) == floats.Max(ys) {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

// IQROutliers counts values outside the 1.5×IQR fences
func IQROutliers(values []float64) (count int, lower, upper float64) {
	s := sortedPresent(values)
	if len(s) == 0 {
		return 0, math.NaN(), math.NaN()
	}
	q1 := quantileSorted(s, 0.25)
	q3 := quantileSorted(s, 0.75)
	iqr := q3 - q1
	lower = q1 - 1.5*iqr
	upper = q3 + 1.5*iqr
	for _, v := range s {
		if v < lower || v > upper {
			count++
		}
	}
	return count, lower, upper
}

// MinMaxNormalize rescales present values onto 0..100. A column without
// spread maps to 50. Missing values stay NaN.
func MinMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	lo, hi := MinMax(values)
	flat := Count(values) < 2 || lo == hi
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case flat:
			out[i] = 50
		default:
			out[i] = (v - lo) / (hi - lo) * 100
		}
	}
	return out
}

// Round rounds to the given number of decimals
func Round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return scalar.Round(v, decimals)
}
