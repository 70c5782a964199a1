// Package report writes analysis output as CSV, Markdown, HTML and console tables
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"agency-insights/internal/dataset"
	"agency-insights/internal/stats"
)

// Table is a rectangular block of formatted cells
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of rows
func (t Table) Len() int { return len(t.Rows) }

// FromGrouped converts an aggregated result into a table. Values are rounded
// to the given number of decimals.
func FromGrouped(g *stats.Grouped, decimals int) Table {
	t := Table{}
	t.Headers = append(t.Headers, g.KeyNames...)
	t.Headers = append(t.Headers, g.Columns...)
	for _, r := range g.Rows {
		row := append([]string(nil), r.Key...)
		for _, v := range r.Values {
			row = append(row, FormatFloat(v, decimals))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// FromFrame converts every row of a frame into a table
func FromFrame(f *dataset.Frame) Table {
	t := Table{Headers: f.Columns()}
	for i := 0; i < f.Len(); i++ {
		t.Rows = append(t.Rows, f.Row(i))
	}
	return t
}

// FormatFloat formats v with fixed decimals, trailing zeros trimmed. NaN is empty.
func FormatFloat(v float64, decimals int) string {
	if math.IsNaN(v) {
		return ""
	}
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsInf(v, -1) {
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

// FormatMoney formats v as whole dollars with thousands separators
func FormatMoney(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	neg := v < 0
	s := strconv.FormatFloat(math.Abs(math.Round(v)), 'f', 0, 64)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

// WriteCSV writes the table to w
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// SaveCSV writes the table to path, creating parent directories
func SaveCSV(path string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// MarkdownTable renders the table as a GitHub-flavoured Markdown table
func MarkdownTable(t Table) string {
	if len(t.Headers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(escapeCells(t.Headers), " | ") + " |\n")
	seps := make([]string, len(t.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	for _, r := range t.Rows {
		cells := make([]string, len(t.Headers))
		copy(cells, r)
		b.WriteString("| " + strings.Join(escapeCells(cells), " | ") + " |\n")
	}
	return b.String()
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(strings.ReplaceAll(c, "|", "\\|"), "\n", " ")
	}
	return out
}

// PrintTable writes the table to a terminal
func PrintTable(w io.Writer, t Table) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.Headers)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, r := range t.Rows {
		table.Append(r)
	}
	table.Render()
}
