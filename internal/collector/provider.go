package collector

import (
	"context"
	"sort"
	"strings"

	"StockETL/internal/model"
)

// Provider supplies raw daily bars for a set of tickers.
type Provider interface {
	Fetch(ctx context.Context, tickers []string, period, interval string) (model.RawTable, error)
	Name() string
}

// normalizeColumns lowercases names, drops duplicates and orders them with the
// required columns first, then any extras alphabetically.
func normalizeColumns(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			seen[c] = true
		}
	}

	out := make([]string, 0, len(seen))
	for _, c := range model.RequiredColumns {
		if seen[c] {
			out = append(out, c)
			delete(seen, c)
		}
	}
	extras := make([]string, 0, len(seen))
	for c := range seen {
		extras = append(extras, c)
	}
	sort.Strings(extras)
	return append(out, extras...)
}

// mergeTables concatenates per-ticker tables. Columns are the union, like a
// dataframe concat.
func mergeTables(tables []model.RawTable) model.RawTable {
	var cols []string
	var rows []model.RawBar
	for _, t := range tables {
		cols = append(cols, t.Columns...)
		rows = append(rows, t.Rows...)
	}
	if len(rows) == 0 {
		return model.RawTable{}
	}
	return model.RawTable{Columns: normalizeColumns(cols), Rows: rows}
}
