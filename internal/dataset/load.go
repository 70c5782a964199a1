package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// DefaultSentinel encodes a missing numeric observation in the source files
const DefaultSentinel = 99999

// Options controls how a CSV file is turned into a Frame
type Options struct {
	Sentinel        float64
	ReplaceSentinel bool
	Delimiter       rune
}

// DefaultOptions returns the options used for the agency dataset
func DefaultOptions() Options {
	return Options{
		Sentinel:        DefaultSentinel,
		ReplaceSentinel: true,
		Delimiter:       ',',
	}
}

// Load reads a CSV file into a Frame
func Load(ctx context.Context, path string, opts Options) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer file.Close()

	frame, err := Parse(ctx, file, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}
	return frame, nil
}

// Parse reads CSV data with a header row into a Frame. Every column whose
// non-empty cells all parse as numbers becomes numeric.
func Parse(ctx context.Context, r io.Reader, opts Options) (*Frame, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	cells := make([][]string, len(header))
	rows := 0
	for {
		if rows%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rows+2, err)
		}
		for j := range header {
			v := ""
			if j < len(record) {
				v = strings.TrimSpace(record[j])
			}
			cells[j] = append(cells[j], v)
		}
		rows++
	}
	if rows == 0 {
		return nil, ErrEmptyDataset
	}

	frame := NewFrame(rows)
	for j, name := range header {
		col, placeholders := buildColumn(name, cells[j], opts)
		if _, dup := frame.index[name]; dup {
			col.Name = fmt.Sprintf("%s.%d", name, j)
		}
		if col.Kind == Numeric {
			frame.placeholders[col.Name] = placeholders
		}
		frame.add(col)
	}
	return frame, nil
}

func buildColumn(name string, values []string, opts Options) (*Column, int) {
	floats := make([]float64, len(values))
	for i, v := range values {
		if v == "" {
			floats[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &Column{Name: name, Kind: Categorical, Strings: values}, 0
		}
		floats[i] = f
	}

	placeholders := 0
	for i, f := range floats {
		if f == opts.Sentinel {
			placeholders++
			if opts.ReplaceSentinel {
				floats[i] = math.NaN()
			}
		}
	}
	return &Column{Name: name, Kind: Numeric, Floats: floats}, placeholders
}
