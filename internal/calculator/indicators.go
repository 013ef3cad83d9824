// Package calculator computes per-ticker technical indicators over date-ordered series.
package calculator

import (
	"math"

	"github.com/guregu/null/v6"

	"StockETL/internal/model"
)

const (
	TradingDaysPerYear = 252

	shortSMAWindow   = 20
	longSMAWindow    = 50
	volatilityWindow = 20
	momentumLag      = 10
)

// AddIndicators returns a copy of rows sorted by ticker then date, with returns,
// moving averages, annualized volatility and momentum filled in per ticker.
// Fields whose window lacks history stay invalid. The outlier flag is carried over.
func AddIndicators(rows []model.EnrichedBar) []model.EnrichedBar {
	out := make([]model.EnrichedBar, len(rows))
	copy(out, rows)
	model.SortEnriched(out)

	for _, rng := range model.SeriesRanges(out) {
		enrichSeries(out[rng[0]:rng[1]])
	}
	return out
}

func enrichSeries(series []model.EnrichedBar) {
	sma20 := newRollingWindow(shortSMAWindow)
	sma50 := newRollingWindow(longSMAWindow)
	vol := newRollingWindow(volatilityWindow)
	annualize := math.Sqrt(TradingDaysPerYear)

	for i := range series {
		bar := &series[i]
		bar.DailyReturn, bar.LogReturn = null.Float{}, null.Float{}
		bar.SMA20, bar.SMA50 = null.Float{}, null.Float{}
		bar.Volatility20d, bar.Momentum10d = null.Float{}, null.Float{}

		if i > 0 {
			prev := series[i-1].Close
			if prev != 0 {
				ratio := bar.Close / prev
				bar.DailyReturn = null.FloatFrom(ratio - 1)
				if ratio > 0 {
					bar.LogReturn = null.FloatFrom(math.Log(ratio))
				}
			}
		}

		sma20.push(bar.Close, true)
		if m, ok := sma20.mean(); ok {
			bar.SMA20 = null.FloatFrom(m)
		}
		sma50.push(bar.Close, true)
		if m, ok := sma50.mean(); ok {
			bar.SMA50 = null.FloatFrom(m)
		}

		vol.push(bar.DailyReturn.Float64, bar.DailyReturn.Valid)
		if sd, ok := vol.stddev(); ok {
			bar.Volatility20d = null.FloatFrom(sd * annualize)
		}

		if i >= momentumLag {
			bar.Momentum10d = null.FloatFrom(bar.Close - series[i-momentumLag].Close)
		}
	}
}
