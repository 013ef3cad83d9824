// Package validator gates and screens raw price tables before any feature work:
// schema presence checks, null/negative-price screening and return-based outlier flags.
package validator

import (
	"strings"

	"StockETL/internal/model"
)

// ValidateSchema reports whether every required column is present in the table.
// Only column existence is checked; values and types are not inspected.
func ValidateSchema(table model.RawTable) bool {
	return len(MissingColumns(table)) == 0
}

// MissingColumns returns the required columns absent from the table, in required order.
func MissingColumns(table model.RawTable) []string {
	have := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		have[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var missing []string
	for _, c := range model.RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
