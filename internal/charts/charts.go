// Package charts renders the analysis charts as PNG files
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when nothing plottable is left after dropping missing values
var ErrNoData = errors.New("no data to chart")

const (
	width  = 1200
	height = 720
)

type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func save(path string, r renderable) error {
	var buf bytes.Buffer
	if err := r.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

func chartValues(labels []string, values []float64) []chart.Value {
	var out []chart.Value
	for i, v := range values {
		if i >= len(labels) || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, chart.Value{Label: labels[i], Value: v})
	}
	return out
}

func padding() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

// Bar renders one bar per label
func Bar(path, title string, labels []string, values []float64) error {
	bars := chartValues(labels, values)
	if len(bars) == 0 {
		return ErrNoData
	}
	lo, hi := bounds(valuesOf(bars))
	c := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth(len(bars)),
		Background: padding(),
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: math.Min(0, lo), Max: hi},
		},
		Bars: bars,
	}
	return save(path, c)
}

// Pie renders the share of each label. Non-positive values are dropped.
func Pie(path, title string, labels []string, values []float64) error {
	var slices []chart.Value
	for _, v := range chartValues(labels, values) {
		if v.Value > 0 {
			slices = append(slices, v)
		}
	}
	if len(slices) == 0 {
		return ErrNoData
	}
	c := chart.PieChart{
		Title:      title,
		Width:      height,
		Height:     height,
		Background: padding(),
		Values:     slices,
	}
	return save(path, c)
}

// Line renders ys against xs joined by a line
func Line(path, title string, xs, ys []float64) error {
	px, py := pairs(xs, ys)
	if len(px) == 0 {
		return ErrNoData
	}
	series := chart.ContinuousSeries{
		Name:    title,
		XValues: px,
		YValues: py,
		Style: chart.Style{
			StrokeWidth: 3,
			StrokeColor: chart.ColorBlue,
			DotWidth:    5,
			DotColor:    chart.ColorBlue,
		},
	}
	return save(path, xyChart(title, px, py, series))
}

// Scatter renders points only
func Scatter(path, title string, xs, ys []float64) error {
	px, py := pairs(xs, ys)
	if len(px) == 0 {
		return ErrNoData
	}
	series := chart.ContinuousSeries{
		Name:    title,
		XValues: px,
		YValues: py,
		Style:   pointStyle(chart.ColorRed),
	}
	return save(path, xyChart(title, px, py, series))
}

// Histogram buckets values into equal-width bins and renders them as bars
func Histogram(path, title string, values []float64, bins int) error {
	labels, counts := bucket(values, bins)
	if len(counts) == 0 {
		return ErrNoData
	}
	return Bar(path, title, labels, counts)
}

// pointStyle renders points without connecting lines
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		DotWidth:    4,
		DotColor:    col,
	}
}

func xyChart(title string, xs, ys []float64, series chart.Series) chart.Chart {
	xlo, xhi := bounds(xs)
	ylo, yhi := bounds(ys)
	return chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: padding(),
		XAxis:      chart.XAxis{Range: &chart.ContinuousRange{Min: xlo, Max: xhi}},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: ylo, Max: yhi}},
		Series:     []chart.Series{series},
	}
}

func pairs(xs, ys []float64) ([]float64, []float64) {
	var px, py []float64
	for i := range xs {
		if i >= len(ys) {
			break
		}
		if !finite(xs[i]) || !finite(ys[i]) {
			continue
		}
		px = append(px, xs[i])
		py = append(py, ys[i])
	}
	return px, py
}

// bucket counts finite values into bins of equal width
func bucket(values []float64, bins int) ([]string, []float64) {
	if bins < 1 {
		bins = 10
	}
	var present []float64
	for _, v := range values {
		if finite(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}
	lo, hi := present[0], present[0]
	for _, v := range present {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []string{formatNum(lo)}, []float64{float64(len(present))}
	}
	step := (hi - lo) / float64(bins)
	counts := make([]float64, bins)
	for _, v := range present {
		i := int((v - lo) / step)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	labels := make([]string, bins)
	for i := range labels {
		labels[i] = formatNum(lo + step*float64(i))
	}
	return labels, counts
}

// bounds returns a non-degenerate range covering vals
func bounds(vals []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		pad := math.Max(math.Abs(lo)*0.1, 1)
		return lo - pad, hi + pad
	}
	return lo, hi
}

func valuesOf(vs []chart.Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Value
	}
	return out
}

func barWidth(n int) int {
	w := (width - 100) / (n * 2)
	if w < 8 {
		return 8
	}
	if w > 80 {
		return 80
	}
	return w
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
