package recorder

import (
	"context"
	"fmt"
	"strings"
)

// WriteMode controls what happens to an existing table.
type WriteMode string

const (
	// Replace drops and recreates the table.
	Replace WriteMode = "replace"
	// Append inserts rows without deduplication.
	Append WriteMode = "append"
)

// ParseWriteMode validates a mode name.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(strings.ToLower(strings.TrimSpace(s))) {
	case Replace:
		return Replace, nil
	case Append:
		return Append, nil
	}
	return "", fmt.Errorf("unknown write mode %q", s)
}

// ColumnType is the portable column type; each sink maps it to its own dialect.
type ColumnType int

const (
	Text ColumnType = iota
	Date
	Real
	Integer
	Boolean
)

// Column describes one table column.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a named set of rows. Row values are nil, string, time.Time,
// float64, int64 or bool, in column order.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Sink persists tables to a relational store.
type Sink interface {
	Write(ctx context.Context, table Table, mode WriteMode) error
	Name() string
	Close() error
}

func createTableSQL(name string, cols []Column, quote func(string) string, typeName func(ColumnType) string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quote(c.Name) + " " + typeName(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(name), strings.Join(defs, ",\n\t"))
}
