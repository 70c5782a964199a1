// Package store exports agency datasets into SQLite
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"agency-insights/internal/dataset"
)

// ErrInvalidName is returned for table names that are not plain identifiers
var ErrInvalidName = errors.New("invalid table name")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store wraps a SQLite database
type Store struct {
	db   *sql.DB
	path string
}

// TableInfo describes one table of the database
type TableInfo struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	Types    []string `json:"types"`
	RowCount int64    `json:"row_count"`
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close() // nolint:errcheck
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// DB exposes the underlying handle
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

// ImportFrame replaces table with the rows of f in one transaction. Numeric
// columns become REAL, categorical columns TEXT and missing values NULL.
func (s *Store) ImportFrame(ctx context.Context, f *dataset.Frame, table string) (int, error) {
	if !identifier.MatchString(table) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	names := f.Columns()
	if len(names) == 0 {
		return 0, dataset.ErrEmptyDataset
	}
	cols := make([]*dataset.Column, len(names))
	defs := make([]string, len(names))
	for i, name := range names {
		c, err := f.Column(name)
		if err != nil {
			return 0, err
		}
		cols[i] = c
		typ := "TEXT"
		if c.Kind == dataset.Numeric {
			typ = "REAL"
		}
		defs[i] = quote(name) + " " + typ
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		tx.Rollback() // nolint:errcheck
		return 0, fmt.Errorf("error dropping table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(defs, ", "))); err != nil {
		tx.Rollback() // nolint:errcheck
		return 0, fmt.Errorf("error creating table %s: %w", table, err)
	}

	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quote(name)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")))
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return 0, fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	args := make([]any, len(cols))
	for i := 0; i < f.Len(); i++ {
		for j, c := range cols {
			args[j] = value(c, i)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback() // nolint:errcheck
			return 0, fmt.Errorf("error inserting row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing transaction: %w", err)
	}
	return f.Len(), nil
}

// Schema lists the user tables with their columns and row counts
func (s *Store) Schema(ctx context.Context) ([]TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("error listing tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close() // nolint:errcheck
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close() // nolint:errcheck
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TableInfo, 0, len(names))
	for _, name := range names {
		info := TableInfo{Name: name}
		if info.Columns, info.Types, err = s.columns(ctx, name); err != nil {
			return nil, err
		}
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(name)).Scan(&info.RowCount); err != nil {
			return nil, fmt.Errorf("error counting %s: %w", name, err)
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *Store) columns(ctx context.Context, table string) ([]string, []string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading columns of %s: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck
	var cols, types []string
	for rows.Next() {
		var c, typ string
		if err := rows.Scan(&c, &typ); err != nil {
			return nil, nil, err
		}
		cols = append(cols, c)
		types = append(types, typ)
	}
	return cols, types, rows.Err()
}

func value(c *dataset.Column, i int) any {
	if c.Kind == dataset.Numeric {
		v := c.Floats[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	}
	if c.Strings[i] == "" {
		return nil
	}
	return c.Strings[i]
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
