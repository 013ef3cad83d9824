package model

import "github.com/guregu/null/v6"

// EnrichedBar is a Bar with derived per-series features. Invalid fields mean the
// window had too little history.
type EnrichedBar struct {
	Bar
	DailyReturn   null.Float
	LogReturn     null.Float
	SMA20         null.Float
	SMA50         null.Float
	Volatility20d null.Float
	Momentum10d   null.Float
	IsOutlier     bool
}

// Enrich wraps bars without any derived values.
func Enrich(bars []Bar) []EnrichedBar {
	out := make([]EnrichedBar, len(bars))
	for i, b := range bars {
		out[i] = EnrichedBar{Bar: b}
	}
	return out
}
