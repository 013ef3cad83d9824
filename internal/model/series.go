package model

import "sort"

// SortBars orders bars by ticker then date. Equal keys keep their input order.
func SortBars(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Ticker != bars[j].Ticker {
			return bars[i].Ticker < bars[j].Ticker
		}
		return bars[i].Date.Before(bars[j].Date)
	})
}

// SortEnriched orders rows by ticker then date. Equal keys keep their input order.
func SortEnriched(rows []EnrichedBar) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ticker != rows[j].Ticker {
			return rows[i].Ticker < rows[j].Ticker
		}
		return rows[i].Date.Before(rows[j].Date)
	})
}

// SeriesRanges returns the [start, end) bounds of each run of rows sharing a ticker.
// rows must already be sorted by ticker.
func SeriesRanges(rows []EnrichedBar) [][2]int {
	var ranges [][2]int
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].Ticker == rows[start].Ticker {
			end++
		}
		ranges = append(ranges, [2]int{start, end})
		start = end
	}
	return ranges
}
