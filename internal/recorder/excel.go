package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet = "Sheet1"
	maxSheetName = 31
	scratchSheet = "__replace"
)

// ExcelSink writes each table to its own sheet of one workbook.
type ExcelSink struct {
	path string
	mu   sync.Mutex
}

// NewExcelSink prepares the directory for the workbook.
func NewExcelSink(path string) (*ExcelSink, error) {
	if path == "" {
		return nil, errors.New("excel: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("excel: create dir: %w", err)
		}
	}
	return &ExcelSink{path: path}, nil
}

func (s *ExcelSink) Name() string { return "excel" }

// Write rewrites the workbook with the table's sheet replaced or extended.
func (s *ExcelSink) Write(ctx context.Context, table Table, mode WriteMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := sheetName(table.Name)
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("excel: sheet %s: %w", sheet, err)
	}

	if idx >= 0 && mode == Replace {
		// a workbook must keep one sheet, so swap through a scratch sheet
		if _, err := f.NewSheet(scratchSheet); err != nil {
			return fmt.Errorf("excel: new sheet: %w", err)
		}
		if err := f.DeleteSheet(sheet); err != nil {
			return fmt.Errorf("excel: delete sheet %s: %w", sheet, err)
		}
		if err := f.SetSheetName(scratchSheet, sheet); err != nil {
			return fmt.Errorf("excel: rename sheet: %w", err)
		}
	} else if idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("excel: new sheet: %w", err)
		}
	}

	existing, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("excel: read %s: %w", sheet, err)
	}
	next := len(existing) + 1
	if len(existing) == 0 {
		header := make([]any, len(table.Columns))
		for i, c := range table.Columns {
			header[i] = c.Name
		}
		if err := setRow(f, sheet, next, header); err != nil {
			return err
		}
		next++
	}

	for _, row := range table.Rows {
		vals := make([]any, len(row))
		for i, v := range row {
			if t, ok := v.(time.Time); ok {
				v = t.Format(time.DateOnly)
			}
			vals[i] = v
		}
		if err := setRow(f, sheet, next, vals); err != nil {
			return err
		}
		next++
	}

	if sheet != defaultSheet {
		if rows, err := f.GetRows(defaultSheet); err == nil && len(rows) == 0 {
			if err := f.DeleteSheet(defaultSheet); err != nil {
				return fmt.Errorf("excel: delete default sheet: %w", err)
			}
		}
	}
	if idx, err := f.GetSheetIndex(sheet); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("excel: save %s: %w", s.path, err)
	}
	return nil
}

func (s *ExcelSink) Close() error { return nil }

func (s *ExcelSink) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("excel: open %s: %w", s.path, err)
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, vals []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("excel: cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("excel: write row %d: %w", row, err)
	}
	return nil
}

func sheetName(table string) string {
	if len(table) > maxSheetName {
		return table[:maxSheetName]
	}
	return table
}
