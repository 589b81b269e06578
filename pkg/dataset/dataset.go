// Package dataset loads the freelancer earnings CSV into an in-process
// DuckDB table and exposes a read-only, parameterized query surface.
// The table is built once at startup and never mutated afterwards, so it
// is safe for concurrent readers without synchronization.
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

const DefaultTable = "freelancers"

// Config holds the configuration for loading a dataset.
type Config struct {
	Logger  *slog.Logger
	CSVPath string
	Table   string // defaults to DefaultTable
}

func (c *Config) Validate() error {
	if c.CSVPath == "" {
		return fmt.Errorf("CSV path is required")
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	return nil
}

// Dataset is an immutable, loaded-once table backed by DuckDB.
type Dataset struct {
	log   *slog.Logger
	db    *sql.DB
	table string
}

// Column describes a single dataset column as reported by the engine.
type Column struct {
	Name string
	Type string
}

// QueryRow is a single result row keyed by column name.
type QueryRow map[string]any

// QueryResponse holds the rows returned by a query.
type QueryResponse struct {
	Columns []string
	Rows    []QueryRow
	Count   int
}

// Load reads the CSV at cfg.CSVPath into a fresh in-memory DuckDB table.
// A load failure is fatal for the process; nothing downstream can proceed
// without the dataset, so there is no retry here.
func Load(ctx context.Context, cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate dataset config: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createSQL := fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM read_csv_auto(?)`, quoteIdent(cfg.Table))
	if _, err := db.ExecContext(ctx, createSQL, cfg.CSVPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load CSV %q: %w", cfg.CSVPath, err)
	}

	d := &Dataset{
		log:   cfg.Logger,
		db:    db,
		table: cfg.Table,
	}

	columns, err := d.Columns(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(columns) == 0 {
		db.Close()
		return nil, fmt.Errorf("dataset has zero columns")
	}

	count, err := d.RowCount(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("dataset is empty")
	}

	if d.log != nil {
		d.log.Info("dataset: loaded", "table", cfg.Table, "rows", count, "columns", len(columns))
	}

	return d, nil
}

// Table returns the name of the loaded table.
func (d *Dataset) Table() string {
	return d.table
}

// Close releases the underlying database.
func (d *Dataset) Close() error {
	return d.db.Close()
}

// Columns returns the dataset's columns in table order.
func (d *Dataset) Columns(ctx context.Context) ([]Column, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`,
		d.table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return columns, nil
}

// RowCount returns the number of rows in the dataset.
func (d *Dataset) RowCount(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, quoteIdent(d.table))
	if err := d.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

// Query executes a parameterized SQL query against the dataset and
// returns the rows keyed by column name.
func (d *Dataset) Query(ctx context.Context, query string, args ...any) (QueryResponse, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResponse{}, fmt.Errorf("failed to get columns: %w", err)
	}

	var resultRows []QueryRow
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return QueryResponse{}, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(QueryRow)
		for i, col := range columns {
			val := values[i]
			if val == nil {
				row[col] = nil
			} else {
				switch v := val.(type) {
				case []byte:
					row[col] = string(v)
				default:
					row[col] = val
				}
			}
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return QueryResponse{}, fmt.Errorf("error iterating rows: %w", err)
	}

	return QueryResponse{
		Columns: columns,
		Rows:    resultRows,
		Count:   len(resultRows),
	}, nil
}

// quoteIdent quotes a SQL identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
