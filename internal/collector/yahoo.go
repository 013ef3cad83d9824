package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"StockETL/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

var (
	yahooPeriods = map[string]bool{
		"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
		"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
	}
	yahooIntervals = map[string]bool{
		"1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
	}
)

// YahooConfig tunes the Yahoo Finance provider.
type YahooConfig struct {
	BaseURL           string
	Proxy             string
	AutoAdjust        bool
	Concurrency       int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// YahooProvider implements Provider using the Yahoo Finance chart API, one request per ticker.
type YahooProvider struct {
	BaseURL     string
	Client      *http.Client
	AutoAdjust  bool
	Concurrency int
	SymbolMap   map[string]string // maps ticker to Yahoo symbol
	Limiter     *rate.Limiter
	Breaker     *gobreaker.CircuitBreaker
	Logger      zerolog.Logger
}

// NewYahooProvider creates a Yahoo Finance provider with optional proxy support.
func NewYahooProvider(cfg YahooConfig, logger zerolog.Logger) *YahooProvider {
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultYahooBaseURL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &YahooProvider{
		BaseURL:     cfg.BaseURL,
		AutoAdjust:  cfg.AutoAdjust,
		Concurrency: cfg.Concurrency,
		Client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		Limiter: rate.NewLimiter(limit, 1),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "yahoo",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: breakerSuccess,
		}),
		Logger: logger,
	}
}

// statusError is a non-200 response from the chart API.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("yahoo: status %d, body: %s", e.Code, e.Body)
}

// breakerSuccess keeps client errors such as an unknown symbol from tripping
// the breaker. 429 still counts as a failure.
func breakerSuccess(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	return err == nil
}

func (p *YahooProvider) Name() string { return "yahoo" }

func (p *YahooProvider) yahooSymbol(ticker string) string {
	if mapped, ok := p.SymbolMap[ticker]; ok {
		return mapped
	}
	return ticker
}

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote    []map[string][]*float64 `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch downloads every ticker concurrently. Tickers that fail are logged and
// left out; if none succeed the table is empty.
func (p *YahooProvider) Fetch(ctx context.Context, tickers []string, period, interval string) (model.RawTable, error) {
	if !yahooPeriods[period] {
		return model.RawTable{}, fmt.Errorf("yahoo: unsupported period %q", period)
	}
	if !yahooIntervals[interval] {
		return model.RawTable{}, fmt.Errorf("yahoo: unsupported interval %q", interval)
	}

	tables := make([]model.RawTable, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			t, err := p.fetchTicker(gctx, ticker, period, interval)
			if err != nil {
				p.Logger.Warn().Err(err).Str("ticker", ticker).Msg("yahoo fetch failed, skipping ticker")
				return nil
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.RawTable{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.RawTable{}, err
	}
	return mergeTables(tables), nil
}

func (p *YahooProvider) fetchTicker(ctx context.Context, ticker, period, interval string) (model.RawTable, error) {
	if err := p.Limiter.Wait(ctx); err != nil {
		return model.RawTable{}, err
	}
	body, err := p.Breaker.Execute(func() (interface{}, error) {
		return p.fetchChart(ctx, p.yahooSymbol(ticker), period, interval)
	})
	if err != nil {
		return model.RawTable{}, err
	}
	return p.parseChart(ticker, body.([]byte))
}

func (p *YahooProvider) fetchChart(ctx context.Context, symbol, period, interval string) ([]byte, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		p.BaseURL, url.PathEscape(symbol), url.QueryEscape(interval), url.QueryEscape(period))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (p *YahooProvider) parseChart(ticker string, body []byte) (model.RawTable, error) {
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return model.RawTable{}, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return model.RawTable{}, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return model.RawTable{}, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}
	exchange := time.FixedZone("exchange", result.Meta.GMTOffset)

	cols := []string{model.ColDate, model.ColTicker}
	for field := range quote {
		cols = append(cols, field)
	}
	if adj != nil && !p.AutoAdjust {
		cols = append(cols, "adjclose")
	}

	rows := make([]model.RawBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bar := model.RawBar{
			Date:   null.TimeFrom(model.TradingDate(time.Unix(ts, 0).In(exchange))),
			Ticker: null.StringFrom(ticker),
			Open:   cell(quote[model.ColOpen], i),
			High:   cell(quote[model.ColHigh], i),
			Low:    cell(quote[model.ColLow], i),
			Close:  cell(quote[model.ColClose], i),
		}
		if v := cell(quote[model.ColVolume], i); v.Valid {
			bar.Volume = null.IntFrom(int64(math.Round(v.Float64)))
		}
		if !bar.Open.Valid && !bar.High.Valid && !bar.Low.Valid && !bar.Close.Valid && !bar.Volume.Valid {
			continue // holiday or halted session
		}
		if p.AutoAdjust {
			adjustBar(&bar, cell(adj, i))
		}
		rows = append(rows, bar)
	}

	return model.RawTable{Columns: normalizeColumns(cols), Rows: rows}, nil
}

// adjustBar rescales all prices by adjclose/close so splits and dividends are
// folded into the series.
func adjustBar(bar *model.RawBar, adjClose null.Float) {
	if !adjClose.Valid || !bar.Close.Valid || bar.Close.Float64 == 0 {
		return
	}
	ratio := adjClose.Float64 / bar.Close.Float64
	for _, f := range []*null.Float{&bar.Open, &bar.High, &bar.Low, &bar.Close} {
		if f.Valid {
			f.Float64 *= ratio
		}
	}
}

func cell(values []*float64, i int) null.Float {
	if i >= len(values) || values[i] == nil {
		return null.Float{}
	}
	return null.FloatFrom(*values[i])
}
