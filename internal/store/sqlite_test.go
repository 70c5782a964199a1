package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-insights/internal/dataset"
	"agency-insights/internal/dataset/datasettest"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestImportFrame(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	n, err := s.ImportFrame(ctx, datasettest.Frame(t), "agency_records")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	var total float64
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT SUM("WRTN_PREM_AMT") FROM agency_records WHERE "STATE_ABBR" = 'IN'`).Scan(&total))
	assert.Equal(t, 745000.0, total)

	var nulls int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM agency_records WHERE "LOSS_RATIO" IS NULL`).Scan(&nulls))
	assert.Equal(t, 2, nulls, "sentinel and empty cells are stored as NULL")
}

func TestImportFrameReplacesTable(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	f := datasettest.Frame(t)

	_, err := s.ImportFrame(ctx, f, "records")
	require.NoError(t, err)
	_, err = s.ImportFrame(ctx, f.Take([]int{0, 1}), "records")
	require.NoError(t, err)

	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSchema(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "agency.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	f := datasettest.DerivedFrame(t)
	_, err = s.ImportFrame(ctx, f, "agency_records")
	require.NoError(t, err)

	tables, err := s.Schema(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "agency_records", tables[0].Name)
	assert.Equal(t, f.Columns(), tables[0].Columns)
	require.Len(t, tables[0].Types, len(tables[0].Columns))
	for i, name := range tables[0].Columns {
		c, err := f.Column(name)
		require.NoError(t, err)
		want := "TEXT"
		if c.Kind == dataset.Numeric {
			want = "REAL"
		}
		assert.Equal(t, want, tables[0].Types[i], name)
	}
	assert.Equal(t, int64(12), tables[0].RowCount)
}

func TestImportFrameInvalidTable(t *testing.T) {
	s := openMemory(t)

	_, err := s.ImportFrame(context.Background(), datasettest.Frame(t), "records; DROP TABLE x")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestImportFrameNoColumns(t *testing.T) {
	s := openMemory(t)

	_, err := s.ImportFrame(context.Background(), dataset.NewFrame(0), "empty")
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)

	tables, err := s.Schema(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables)
}
