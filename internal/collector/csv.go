package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"StockETL/internal/model"
)

var csvDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	"01/02/2006",
}

// CSVProvider implements Provider over a local CSV export with a header row.
// Period and interval are ignored: the file is the period.
type CSVProvider struct {
	Path string
}

// NewCSVProvider creates a provider reading from path.
func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{Path: path}
}

func (p *CSVProvider) Name() string { return "csv" }

// Fetch reads the file and keeps rows for the requested tickers. When the file
// has no ticker column every row is returned and schema validation decides.
func (p *CSVProvider) Fetch(ctx context.Context, tickers []string, _, _ string) (model.RawTable, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return model.RawTable{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return readCSV(ctx, f, tickers)
}

func readCSV(ctx context.Context, r io.Reader, tickers []string) (model.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.RawTable{}, nil
		}
		return model.RawTable{}, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		header[i] = h
		index[h] = i
	}

	wanted := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		wanted[strings.ToUpper(t)] = true
	}
	_, hasTicker := index[model.ColTicker]

	var rows []model.RawBar
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return model.RawTable{}, err
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.RawTable{}, fmt.Errorf("read csv line %d: %w", line, err)
		}

		field := func(name string) string {
			if i, ok := index[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		bar, err := parseCSVRow(field)
		if err != nil {
			return model.RawTable{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		if hasTicker && len(wanted) > 0 && !wanted[strings.ToUpper(bar.Ticker.String)] {
			continue
		}
		rows = append(rows, bar)
	}

	return model.RawTable{Columns: normalizeColumns(header), Rows: rows}, nil
}

func parseCSVRow(field func(string) string) (model.RawBar, error) {
	var bar model.RawBar
	var err error

	if s := field(model.ColDate); !isNullToken(s) {
		t, perr := parseDate(s)
		if perr != nil {
			return bar, perr
		}
		bar.Date = null.TimeFrom(model.TradingDate(t))
	}
	if s := field(model.ColTicker); !isNullToken(s) {
		bar.Ticker = null.StringFrom(strings.ToUpper(s))
	}
	for name, dst := range map[string]*null.Float{
		model.ColOpen:  &bar.Open,
		model.ColHigh:  &bar.High,
		model.ColLow:   &bar.Low,
		model.ColClose: &bar.Close,
	} {
		if *dst, err = parseFloat(field(name)); err != nil {
			return bar, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	if bar.Volume, err = parseVolume(field(model.ColVolume)); err != nil {
		return bar, fmt.Errorf("parse volume: %w", err)
	}
	return bar, nil
}

func isNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na", "n/a":
		return true
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

func parseFloat(s string) (null.Float, error) {
	if isNullToken(s) {
		return null.Float{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}, err
	}
	return null.FloatFrom(v), nil
}

func parseVolume(s string) (null.Int, error) {
	if isNullToken(s) {
		return null.Int{}, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return null.IntFrom(v), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Int{}, err
	}
	return null.IntFrom(int64(v)), nil
}
