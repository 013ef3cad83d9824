// Package aggregator resamples daily enriched bars into calendar buckets.
package aggregator

import (
	"fmt"
	"time"

	"StockETL/internal/model"
)

// BucketStart returns the first day of the calendar bucket that contains date.
// Weeks start on Monday.
func BucketStart(date time.Time, freq model.Frequency) time.Time {
	d := model.TradingDate(date)
	switch freq {
	case model.Weekly:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case model.Quarterly:
		month := (d.Month()-1)/3*3 + 1
		return time.Date(d.Year(), month, 1, 0, 0, 0, 0, time.UTC)
	case model.Yearly:
		return time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// Aggregate collapses rows into one bar per ticker and non-empty bucket:
// first open, max high, min low, last close, summed volume and the compounded
// daily return. Output is ordered by ticker then bucket start.
func Aggregate(rows []model.EnrichedBar, freq model.Frequency) ([]model.AggregatedBar, error) {
	switch freq {
	case model.Weekly, model.Monthly, model.Quarterly, model.Yearly:
	default:
		return nil, fmt.Errorf("aggregate: unsupported frequency %q", freq)
	}

	sorted := make([]model.EnrichedBar, len(rows))
	copy(sorted, rows)
	model.SortEnriched(sorted)

	var out []model.AggregatedBar
	var cur model.AggregatedBar
	var growth float64
	open := false

	flush := func() {
		if !open {
			return
		}
		cur.CompoundedReturn = growth - 1
		cur.PeriodKey = model.PeriodKey(cur.Ticker, cur.Period, freq)
		out = append(out, cur)
	}

	for _, r := range sorted {
		period := BucketStart(r.Date, freq)
		if !open || r.Ticker != cur.Ticker || !period.Equal(cur.Period) {
			flush()
			cur = model.AggregatedBar{
				Ticker: r.Ticker,
				Period: period,
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
				Days:   1,
			}
			growth = 1 + r.DailyReturn.Float64
			open = true
			continue
		}

		if r.High > cur.High {
			cur.High = r.High
		}
		if r.Low < cur.Low {
			cur.Low = r.Low
		}
		cur.Close = r.Close
		cur.Volume += r.Volume
		cur.Days++
		growth *= 1 + r.DailyReturn.Float64
	}
	flush()

	return out, nil
}
