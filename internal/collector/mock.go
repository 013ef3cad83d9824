package collector

import (
	"context"
	"time"

	"github.com/guregu/null/v6"

	"StockETL/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	Table model.RawTable
	Err   error
	Calls int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Fetch(_ context.Context, _ []string, _, _ string) (model.RawTable, error) {
	m.Calls++
	if m.Err != nil {
		return model.RawTable{}, m.Err
	}
	return m.Table, nil
}

// GenerateTable builds a deterministic raw table with one bar per calendar day
// and ticker, ending yesterday relative to end.
func GenerateTable(tickers []string, basePrice float64, days int, end time.Time) model.RawTable {
	table := model.RawTable{Columns: append([]string(nil), model.RequiredColumns...)}
	first := model.TradingDate(end).AddDate(0, 0, -days)
	for n, ticker := range tickers {
		base := basePrice * (1 + float64(n)*0.25)
		for i := 0; i < days; i++ {
			p := base * (1 + float64(i-days/2)*0.001 + 0.01*float64((i*7+n)%5-2))
			table.Rows = append(table.Rows, model.RawBar{
				Date:   null.TimeFrom(first.AddDate(0, 0, i)),
				Ticker: null.StringFrom(ticker),
				Open:   null.FloatFrom(p * 0.999),
				High:   null.FloatFrom(p * 1.005),
				Low:    null.FloatFrom(p * 0.995),
				Close:  null.FloatFrom(p),
				Volume: null.IntFrom(1000000 + int64(i)*100),
			})
		}
	}
	return table
}
