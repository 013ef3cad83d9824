package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCSVProvider_Fetch(t *testing.T) {
	path := writeCSV(t, `Date,Ticker,Open,High,Low,Close,Volume,Adj Close
2024-01-02,AAPL,185,186,184,185.5,1000,181.8
2024-01-02,msft,370,372,369,371,2000.0,370
2024-01-03,AAPL,nan,183,181,182,,181
2024-01-04 00:00:00,AAPL,182,183.5,181,182.5,1500,180
`)
	p := NewCSVProvider(path)

	table, err := p.Fetch(context.Background(), []string{"AAPL"}, "1y", "1d")
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "ticker", "open", "high", "low", "close", "volume", "adj close"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.False(t, table.Rows[1].Open.Valid)
	assert.False(t, table.Rows[1].Volume.Valid)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), table.Rows[2].Date.Time)

	all, err := p.Fetch(context.Background(), nil, "", "")
	require.NoError(t, err)
	require.Len(t, all.Rows, 4)
	assert.Equal(t, "MSFT", all.Rows[1].Ticker.String)
	assert.Equal(t, int64(2000), all.Rows[1].Volume.Int64)
}

func TestCSVProvider_MissingTickerColumn(t *testing.T) {
	path := writeCSV(t, "date,open,high,low,close,volume\n2024-01-02,1,2,0.5,1.5,10\n")

	table, err := NewCSVProvider(path).Fetch(context.Background(), []string{"AAPL"}, "", "")
	require.NoError(t, err)
	assert.NotContains(t, table.Columns, "ticker")
	assert.Len(t, table.Rows, 1)
}

func TestCSVProvider_Errors(t *testing.T) {
	_, err := NewCSVProvider(filepath.Join(t.TempDir(), "absent.csv")).Fetch(context.Background(), nil, "", "")
	assert.Error(t, err)

	bad := writeCSV(t, "date,ticker,open,high,low,close,volume\n2024-01-02,AAPL,abc,2,0.5,1.5,10\n")
	_, err = NewCSVProvider(bad).Fetch(context.Background(), nil, "", "")
	assert.ErrorContains(t, err, "line 2")

	empty := writeCSV(t, "")
	table, err := NewCSVProvider(empty).Fetch(context.Background(), nil, "", "")
	require.NoError(t, err)
	assert.True(t, table.Empty())
}
