package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// Field names of a raw price table, lowercase.
const (
	ColDate   = "date"
	ColTicker = "ticker"
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// RequiredColumns must all be present before a raw table is processed.
var RequiredColumns = []string{ColDate, ColTicker, ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// RawBar is one row exactly as a provider delivered it. Any field may be missing.
type RawBar struct {
	Date   null.Time
	Ticker null.String
	Open   null.Float
	High   null.Float
	Low    null.Float
	Close  null.Float
	Volume null.Int
}

// RawTable is the acquisition result: the columns the provider delivered plus the rows.
type RawTable struct {
	Columns []string
	Rows    []RawBar
}

// Len returns the number of rows.
func (t RawTable) Len() int { return len(t.Rows) }

// Empty reports whether the table holds no rows.
func (t RawTable) Empty() bool { return len(t.Rows) == 0 }

// Bar represents a single screened daily observation.
type Bar struct {
	Date   time.Time
	Ticker string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// TradingDate truncates t to a calendar date at UTC midnight.
func TradingDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
