package aggregator

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockETL/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dailyRows(ticker string, from time.Time, days int) []model.EnrichedBar {
	rows := make([]model.EnrichedBar, days)
	for i := range rows {
		p := 100 + float64(i%7)*1.5 + float64(i)/10
		rows[i] = model.EnrichedBar{
			Bar: model.Bar{
				Date:   from.AddDate(0, 0, i),
				Ticker: ticker,
				Open:   p - 0.4,
				High:   p + float64(i%5),
				Low:    p - float64(i%3) - 1,
				Close:  p,
				Volume: int64(1000 + 10*i),
			},
		}
		if i > 0 {
			rows[i].DailyReturn = null.FloatFrom(0.01 * float64(i%4-1))
		}
	}
	return rows
}

func TestBucketStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		freq model.Frequency
		want time.Time
	}{
		{date(2024, 2, 29), model.Monthly, date(2024, 2, 1)},
		{date(2024, 1, 1), model.Monthly, date(2024, 1, 1)},
		{date(2024, 5, 15), model.Quarterly, date(2024, 4, 1)},
		{date(2024, 12, 31), model.Quarterly, date(2024, 10, 1)},
		{date(2024, 7, 4), model.Yearly, date(2024, 1, 1)},
		{date(2024, 1, 7), model.Weekly, date(2024, 1, 1)},  // Sunday
		{date(2024, 1, 8), model.Weekly, date(2024, 1, 8)},  // Monday
		{date(2024, 1, 10), model.Weekly, date(2024, 1, 8)}, // Wednesday
		{time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC), model.Monthly, date(2024, 3, 1)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketStart(tt.in, tt.freq), "%s %s", tt.in.Format(time.RFC3339), tt.freq)
	}
}

func TestAggregate_MonthConservation(t *testing.T) {
	daily := dailyRows("AAPL", date(2024, 1, 1), 31)

	got, err := Aggregate(daily, model.Monthly)
	require.NoError(t, err)
	require.Len(t, got, 1)
	m := got[0]

	var volume int64
	high, low := daily[0].High, daily[0].Low
	growth := 1.0
	for _, d := range daily {
		volume += d.Volume
		if d.High > high {
			high = d.High
		}
		if d.Low < low {
			low = d.Low
		}
		growth *= 1 + d.DailyReturn.Float64
	}

	assert.Equal(t, "AAPL", m.Ticker)
	assert.Equal(t, date(2024, 1, 1), m.Period)
	assert.Equal(t, "AAPL:2024-01", m.PeriodKey)
	assert.Equal(t, volume, m.Volume)
	assert.Equal(t, high, m.High)
	assert.Equal(t, low, m.Low)
	assert.Equal(t, daily[0].Open, m.Open)
	assert.Equal(t, daily[30].Close, m.Close)
	assert.Equal(t, 31, m.Days)
	assert.InDelta(t, growth-1, m.CompoundedReturn, 1e-12)
}

func TestAggregate_OrderingAndGaps(t *testing.T) {
	a := dailyRows("MSFT", date(2024, 1, 15), 30) // Jan 15 .. Feb 13
	b := dailyRows("AAPL", date(2024, 3, 20), 5)  // Mar 20 .. Mar 24
	c := dailyRows("AAPL", date(2024, 1, 30), 3)  // Jan 30 .. Feb 1

	var mixed []model.EnrichedBar
	mixed = append(mixed, a...)
	mixed = append(mixed, b...)
	mixed = append(mixed, c...)

	got, err := Aggregate(mixed, model.Monthly)
	require.NoError(t, err)

	var keys []string
	for _, g := range got {
		keys = append(keys, g.PeriodKey)
	}
	// AAPL has no rows between Feb 1 and Mar 20; no empty bucket appears for it.
	assert.Equal(t, []string{"AAPL:2024-01", "AAPL:2024-02", "AAPL:2024-03", "MSFT:2024-01", "MSFT:2024-02"}, keys)
	assert.Equal(t, 2, got[0].Days)
	assert.Equal(t, 1, got[1].Days)
}

func TestAggregate_UndefinedReturnsCountAsFlat(t *testing.T) {
	rows := dailyRows("TSLA", date(2024, 6, 3), 3)
	rows[0].DailyReturn = null.Float{}
	rows[1].DailyReturn = null.FloatFrom(0.10)
	rows[2].DailyReturn = null.Float{}

	got, err := Aggregate(rows, model.Weekly)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.10, got[0].CompoundedReturn, 1e-12)
	assert.Equal(t, date(2024, 6, 3), got[0].Period)
}

func TestAggregate_ReaggregationKeepsBoundaries(t *testing.T) {
	for _, freq := range []model.Frequency{model.Weekly, model.Monthly, model.Quarterly} {
		daily := dailyRows("AAPL", date(2023, 11, 20), 150)
		first, err := Aggregate(daily, freq)
		require.NoError(t, err)

		// Rebuild one row per bucket, dated at the bucket's last observed day.
		var rebuilt []model.EnrichedBar
		for i, g := range first {
			last := g.Period
			for _, d := range daily {
				if BucketStart(d.Date, freq).Equal(g.Period) && d.Date.After(last) {
					last = d.Date
				}
			}
			rebuilt = append(rebuilt, model.EnrichedBar{
				Bar:         model.Bar{Date: last, Ticker: g.Ticker, Open: g.Open, High: g.High, Low: g.Low, Close: g.Close, Volume: g.Volume},
				DailyReturn: null.FloatFrom(first[i].CompoundedReturn),
			})
		}

		second, err := Aggregate(rebuilt, freq)
		require.NoError(t, err)
		require.Len(t, second, len(first), freq)
		for i := range first {
			assert.Equal(t, first[i].Period, second[i].Period)
			assert.Equal(t, first[i].PeriodKey, second[i].PeriodKey)
			assert.Equal(t, first[i].Volume, second[i].Volume)
			assert.InDelta(t, first[i].CompoundedReturn, second[i].CompoundedReturn, 1e-12)
		}
	}
}

func TestAggregate_Edges(t *testing.T) {
	got, err := Aggregate(nil, model.Monthly)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Aggregate(dailyRows("AAPL", date(2024, 1, 1), 3), model.Frequency("D"))
	assert.Error(t, err)
}
