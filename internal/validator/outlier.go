package validator

import (
	"math"

	"StockETL/internal/model"
)

// DefaultOutlierThreshold is the |z| above which a daily move is flagged.
const DefaultOutlierThreshold = 3.0

// DetectOutliers flags rows whose close-to-close change is more than threshold
// standard deviations from that ticker's mean change. No rows are removed.
//
// The result is sorted by ticker then date. Tickers with fewer than two defined
// changes, or with a constant change, are never flagged.
func DetectOutliers(bars []model.Bar, threshold float64) []model.EnrichedBar {
	rows := model.Enrich(bars)
	model.SortEnriched(rows)

	for _, rng := range model.SeriesRanges(rows) {
		flagSeries(rows[rng[0]:rng[1]], threshold)
	}
	return rows
}

func flagSeries(series []model.EnrichedBar, threshold float64) {
	changes := make([]float64, len(series))
	defined := make([]bool, len(series))

	var sum float64
	var n int
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Close
		if prev == 0 {
			continue
		}
		changes[i] = (series[i].Close - prev) / prev
		defined[i] = true
		sum += changes[i]
		n++
	}
	if n < 2 {
		return
	}

	mean := sum / float64(n)
	var ss float64
	for i, ok := range defined {
		if ok {
			d := changes[i] - mean
			ss += d * d
		}
	}
	std := math.Sqrt(ss / float64(n-1))
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return
	}

	for i, ok := range defined {
		if ok {
			series[i].IsOutlier = math.Abs((changes[i]-mean)/std) > threshold
		}
	}
}
