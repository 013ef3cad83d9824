package recorder

import (
	"github.com/guregu/null/v6"

	"StockETL/internal/model"
)

// Default table names.
const (
	DailyTableName   = "market_data_daily"
	MonthlyTableName = "market_data_monthly"
)

var dailyColumns = []Column{
	{"date", Date},
	{"ticker", Text},
	{"open", Real},
	{"high", Real},
	{"low", Real},
	{"close", Real},
	{"volume", Integer},
	{"daily_return", Real},
	{"log_return", Real},
	{"sma_20", Real},
	{"sma_50", Real},
	{"volatility_20d", Real},
	{"momentum_10d", Real},
	{"is_outlier", Boolean},
}

var aggregateColumns = []Column{
	{"period_key", Text},
	{"ticker", Text},
	{"date", Date},
	{"open", Real},
	{"high", Real},
	{"low", Real},
	{"close", Real},
	{"volume", Integer},
	{"compounded_return", Real},
	{"days", Integer},
}

// DailyTable converts enriched daily bars into a table.
func DailyTable(name string, rows []model.EnrichedBar) Table {
	t := Table{Name: name, Columns: dailyColumns, Rows: make([][]any, len(rows))}
	for i, r := range rows {
		t.Rows[i] = []any{
			r.Date, r.Ticker, r.Open, r.High, r.Low, r.Close, r.Volume,
			nullable(r.DailyReturn), nullable(r.LogReturn),
			nullable(r.SMA20), nullable(r.SMA50),
			nullable(r.Volatility20d), nullable(r.Momentum10d),
			r.IsOutlier,
		}
	}
	return t
}

// MonthlyTable converts aggregated bars into a table, keeping the synthetic
// period key as its own column.
func MonthlyTable(name string, rows []model.AggregatedBar) Table {
	t := Table{Name: name, Columns: aggregateColumns, Rows: make([][]any, len(rows))}
	for i, r := range rows {
		t.Rows[i] = []any{
			r.PeriodKey, r.Ticker, r.Period,
			r.Open, r.High, r.Low, r.Close, r.Volume,
			r.CompoundedReturn, int64(r.Days),
		}
	}
	return t
}

func nullable(f null.Float) any {
	if !f.Valid {
		return nil
	}
	return f.Float64
}
