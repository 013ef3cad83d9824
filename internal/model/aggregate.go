package model

import (
	"fmt"
	"strings"
	"time"
)

// Frequency selects the calendar bucket used for aggregation.
type Frequency string

const (
	Weekly    Frequency = "W"
	Monthly   Frequency = "M"
	Quarterly Frequency = "Q"
	Yearly    Frequency = "Y"
)

// ParseFrequency accepts the single-letter codes in either case and the long names.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "week", "weekly":
		return Weekly, nil
	case "m", "month", "monthly":
		return Monthly, nil
	case "q", "quarter", "quarterly":
		return Quarterly, nil
	case "y", "a", "year", "yearly", "annual":
		return Yearly, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// AggregatedBar summarises one ticker over one calendar bucket.
type AggregatedBar struct {
	Ticker           string
	Period           time.Time // bucket start
	PeriodKey        string
	Open             float64
	High             float64
	Low              float64
	Close            float64
	Volume           int64
	CompoundedReturn float64
	Days             int
}

// PeriodKey builds the synthetic group key stored alongside aggregated rows.
func PeriodKey(ticker string, period time.Time, freq Frequency) string {
	switch freq {
	case Weekly:
		return fmt.Sprintf("%s:%s", ticker, period.Format("2006-01-02"))
	case Quarterly:
		return fmt.Sprintf("%s:%d-Q%d", ticker, period.Year(), (int(period.Month())-1)/3+1)
	case Yearly:
		return fmt.Sprintf("%s:%d", ticker, period.Year())
	default:
		return fmt.Sprintf("%s:%s", ticker, period.Format("2006-01"))
	}
}
