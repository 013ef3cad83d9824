package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"StockETL/internal/model"
)

// Collector runs the acquisition phase against one provider.
type Collector struct {
	Provider Provider
	Tickers  []string
	Period   string
	Interval string
	Logger   zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(provider Provider, tickers []string, period, interval string, logger zerolog.Logger) *Collector {
	return &Collector{
		Provider: provider,
		Tickers:  tickers,
		Period:   period,
		Interval: interval,
		Logger:   logger.With().Str("provider", provider.Name()).Logger(),
	}
}

// Acquire fetches raw bars for every configured ticker. A provider error is logged
// and turned into an empty table; deciding whether that is fatal is up to the caller.
func (c *Collector) Acquire(ctx context.Context) model.RawTable {
	c.Logger.Info().
		Strs("tickers", c.Tickers).
		Str("period", c.Period).
		Str("interval", c.Interval).
		Msg("fetching data")

	began := time.Now()
	table, err := c.Provider.Fetch(ctx, c.Tickers, c.Period, c.Interval)
	if err != nil {
		c.Logger.Error().Err(err).Msg("error fetching data")
		return model.RawTable{}
	}
	table.Columns = normalizeColumns(table.Columns)

	c.Logger.Info().
		Int("rows", table.Len()).
		Dur("took", time.Since(began)).
		Msg("fetched records")
	return table
}
