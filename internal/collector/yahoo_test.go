package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockETL/internal/model"
)

const aaplChart = `{"chart":{"result":[{
	"meta":{"symbol":"%s","gmtoffset":-18000},
	"timestamp":[1704205800,1704292200,1704378600],
	"indicators":{
		"quote":[{"open":[185.0,null,182.0],"high":[186.0,null,183.5],"low":[184.0,null,181.0],"close":[185.5,null,182.5],"volume":[1000,null,null]}],
		"adjclose":[{"adjclose":[181.79,null,178.85]}]
	}}],"error":null}}`

func newChartServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		switch symbol {
		case "AAPL", "^GSPC":
			assert.Equal(t, "1y", r.URL.Query().Get("range"))
			assert.Equal(t, "1d", r.URL.Query().Get("interval"))
			fmt.Fprintf(w, aaplChart, symbol)
		case "DOWN1", "DOWN2", "DOWN3":
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		case "EMPTY":
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYahooProvider_Fetch(t *testing.T) {
	srv := newChartServer(t, nil)
	p := NewYahooProvider(YahooConfig{BaseURL: srv.URL}, zerolog.Nop())

	table, err := p.Fetch(context.Background(), []string{"AAPL", "NOPE", "EMPTY"}, "1y", "1d")
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "ticker", "open", "high", "low", "close", "volume", "adjclose"}, table.Columns)
	require.Len(t, table.Rows, 2, "the all-null session is skipped, failing tickers are left out")

	first := table.Rows[0]
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), first.Date.Time)
	assert.Equal(t, "AAPL", first.Ticker.String)
	assert.Equal(t, 185.5, first.Close.Float64)
	assert.Equal(t, int64(1000), first.Volume.Int64)

	second := table.Rows[1]
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), second.Date.Time)
	assert.False(t, second.Volume.Valid)
}

func TestYahooProvider_AutoAdjustAndSymbolMap(t *testing.T) {
	srv := newChartServer(t, nil)
	p := NewYahooProvider(YahooConfig{BaseURL: srv.URL, AutoAdjust: true}, zerolog.Nop())

	table, err := p.Fetch(context.Background(), []string{"SPX500"}, "1y", "1d")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.NotContains(t, table.Columns, "adjclose")

	bar := table.Rows[0]
	assert.Equal(t, "SPX500", bar.Ticker.String)
	ratio := 181.79 / 185.5
	assert.InDelta(t, 181.79, bar.Close.Float64, 1e-9)
	assert.InDelta(t, 185.0*ratio, bar.Open.Float64, 1e-9)
	assert.InDelta(t, 184.0*ratio, bar.Low.Float64, 1e-9)
}

func TestYahooProvider_RejectsUnknownRange(t *testing.T) {
	p := NewYahooProvider(YahooConfig{BaseURL: "http://127.0.0.1:0"}, zerolog.Nop())

	_, err := p.Fetch(context.Background(), []string{"AAPL"}, "7w", "1d")
	assert.ErrorContains(t, err, "period")
	_, err = p.Fetch(context.Background(), []string{"AAPL"}, "1y", "1m")
	assert.ErrorContains(t, err, "interval")
}

func TestYahooProvider_BreakerStopsAfterFailures(t *testing.T) {
	var hits int32
	srv := newChartServer(t, &hits)
	p := NewYahooProvider(YahooConfig{BaseURL: srv.URL, Concurrency: 1}, zerolog.Nop())

	table, err := p.Fetch(context.Background(), []string{"DOWN1", "DOWN2", "DOWN3", "AAPL"}, "1y", "1d")
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "the open breaker short-circuits the last request")
}

func TestYahooProvider_UnknownSymbolsKeepBreakerClosed(t *testing.T) {
	var hits int32
	srv := newChartServer(t, &hits)
	p := NewYahooProvider(YahooConfig{BaseURL: srv.URL, Concurrency: 1}, zerolog.Nop())

	table, err := p.Fetch(context.Background(), []string{"BAD1", "BAD2", "BAD3", "AAPL"}, "1y", "1d")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
	assert.Equal(t, gobreaker.StateClosed, p.Breaker.State())
}

func TestBreakerSuccess(t *testing.T) {
	assert.True(t, breakerSuccess(nil))
	assert.True(t, breakerSuccess(&statusError{Code: http.StatusNotFound}))
	assert.True(t, breakerSuccess(fmt.Errorf("wrapped: %w", &statusError{Code: http.StatusBadRequest})))
	assert.False(t, breakerSuccess(&statusError{Code: http.StatusTooManyRequests}))
	assert.False(t, breakerSuccess(&statusError{Code: http.StatusInternalServerError}))
	assert.False(t, breakerSuccess(errors.New("connection refused")))
}

func TestMergeTables(t *testing.T) {
	a := model.RawTable{Columns: []string{"ticker", "date", "close"}, Rows: make([]model.RawBar, 2)}
	b := model.RawTable{Columns: []string{"Date", "Ticker", "Volume", "Splits"}, Rows: make([]model.RawBar, 1)}

	merged := mergeTables([]model.RawTable{a, {}, b})
	assert.Equal(t, []string{"date", "ticker", "close", "volume", "splits"}, merged.Columns)
	assert.Len(t, merged.Rows, 3)

	assert.True(t, mergeTables(nil).Empty())
}
