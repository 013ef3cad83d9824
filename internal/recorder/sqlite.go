package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteSink persists tables to a SQLite database file.
type SQLiteSink struct {
	db *sqlx.DB
}

// NewSQLiteSink opens (or creates) the database and switches it to WAL mode.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// NewSQLiteSinkFromDB wraps an already opened handle.
func NewSQLiteSinkFromDB(db *sqlx.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

func (s *SQLiteSink) Name() string { return "sqlite" }

// Write stores the table in a single transaction.
func (s *SQLiteSink) Write(ctx context.Context, table Table, mode WriteMode) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if mode == Replace {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteSQLite(table.Name)); err != nil {
			return fmt.Errorf("drop %s: %w", table.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(table.Name, table.Columns, quoteSQLite, sqliteType)); err != nil {
		return fmt.Errorf("create %s: %w", table.Name, err)
	}

	stmt, err := tx.PreparexContext(ctx, insertSQL(table))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", table.Name, err)
	}
	defer stmt.Close()

	args := make([]any, len(table.Columns))
	for i, row := range table.Rows {
		for j, v := range row {
			args[j] = sqliteValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table.Name, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table.Name, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func insertSQL(table Table) string {
	cols := make([]string, len(table.Columns))
	marks := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = quoteSQLite(c.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteSQLite(table.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqliteType(t ColumnType) string {
	switch t {
	case Real:
		return "REAL"
	case Integer, Boolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// sqliteValue stores dates as ISO strings so they sort and compare as text.
func sqliteValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.DateOnly)
	}
	return v
}
