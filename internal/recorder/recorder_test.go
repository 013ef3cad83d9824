package recorder

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guregu/null/v6"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"StockETL/internal/model"
)

func sampleDaily() []model.EnrichedBar {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	return []model.EnrichedBar{
		{Bar: model.Bar{Date: d(2), Ticker: "AAPL", Open: 185, High: 186, Low: 184, Close: 185.5, Volume: 1000}},
		{
			Bar:         model.Bar{Date: d(3), Ticker: "AAPL", Open: 185.5, High: 188, Low: 185, Close: 187, Volume: 1200},
			DailyReturn: null.FloatFrom(187/185.5 - 1),
			LogReturn:   null.FloatFrom(0.008),
			IsOutlier:   true,
		},
	}
}

func sampleMonthly() []model.AggregatedBar {
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []model.AggregatedBar{{
		Ticker: "AAPL", Period: jan, PeriodKey: model.PeriodKey("AAPL", jan, model.Monthly),
		Open: 185, High: 188, Low: 184, Close: 187, Volume: 2200, CompoundedReturn: 0.008, Days: 2,
	}}
}

func TestParseWriteMode(t *testing.T) {
	m, err := ParseWriteMode(" Append ")
	require.NoError(t, err)
	assert.Equal(t, Append, m)

	m, err = ParseWriteMode("replace")
	require.NoError(t, err)
	assert.Equal(t, Replace, m)

	_, err = ParseWriteMode("upsert")
	assert.Error(t, err)
}

func TestDailyTable_NullsBecomeNil(t *testing.T) {
	tbl := DailyTable(DailyTableName, sampleDaily())

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "market_data_daily", tbl.Name)
	assert.Len(t, tbl.Rows[0], len(tbl.Columns))

	names := tbl.ColumnNames()
	assert.Equal(t, "date", names[0])
	assert.Equal(t, "is_outlier", names[len(names)-1])

	// first row of a series has no return
	assert.Nil(t, tbl.Rows[0][7])
	assert.InDelta(t, 187/185.5-1, tbl.Rows[1][7], 1e-12)
	assert.Nil(t, tbl.Rows[1][9])
	assert.Equal(t, true, tbl.Rows[1][13])
}

func TestMonthlyTable_IncludesPeriodKey(t *testing.T) {
	tbl := MonthlyTable(MonthlyTableName, sampleMonthly())

	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "period_key", tbl.Columns[0].Name)
	assert.Equal(t, "AAPL:2024-01", tbl.Rows[0][0])
	assert.Equal(t, int64(2), tbl.Rows[0][9])
}

func TestSQLiteSink_WriteAndReadBack(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLiteSink(ctx, ":memory:")
	require.NoError(t, err)
	defer sink.Close()

	tbl := DailyTable(DailyTableName, sampleDaily())
	require.NoError(t, sink.Write(ctx, tbl, Replace))

	type row struct {
		Date      string          `db:"date"`
		Close     float64         `db:"close"`
		Return    sql.NullFloat64 `db:"daily_return"`
		IsOutlier bool            `db:"is_outlier"`
	}
	var rows []row
	require.NoError(t, sink.db.SelectContext(ctx, &rows,
		`SELECT date, close, daily_return, is_outlier FROM market_data_daily ORDER BY date`))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-02", rows[0].Date)
	assert.False(t, rows[0].Return.Valid)
	assert.True(t, rows[1].Return.Valid)
	assert.True(t, rows[1].IsOutlier)
	assert.Equal(t, 187.0, rows[1].Close)

	count := func() int {
		var n int
		require.NoError(t, sink.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM market_data_daily`))
		return n
	}

	require.NoError(t, sink.Write(ctx, tbl, Append))
	assert.Equal(t, 4, count())

	require.NoError(t, sink.Write(ctx, tbl, Replace))
	assert.Equal(t, 2, count())
}

func TestSQLiteSink_InsertFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := NewSQLiteSinkFromDB(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "market_data_monthly"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "market_data_monthly"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "market_data_monthly"`)).
		ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = sink.Write(context.Background(), MonthlyTable(MonthlyTableName, sampleMonthly()), Replace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExcelSink_SheetPerTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "market.xlsx")
	sink, err := NewExcelSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Write(ctx, DailyTable(DailyTableName, sampleDaily()), Replace))
	require.NoError(t, sink.Write(ctx, MonthlyTable(MonthlyTableName, sampleMonthly()), Replace))
	require.NoError(t, sink.Write(ctx, MonthlyTable(MonthlyTableName, sampleMonthly()), Append))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"market_data_daily", "market_data_monthly"}, f.GetSheetList())

	daily, err := f.GetRows("market_data_daily")
	require.NoError(t, err)
	require.Len(t, daily, 3)
	assert.Equal(t, "date", daily[0][0])
	assert.Equal(t, "2024-01-02", daily[1][0])
	assert.Equal(t, "AAPL", daily[1][1])

	monthly, err := f.GetRows("market_data_monthly")
	require.NoError(t, err)
	assert.Len(t, monthly, 3)
	assert.Equal(t, "AAPL:2024-01", monthly[2][0])
}

func TestExcelSink_ReplaceOnlySheet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "market.xlsx")
	sink, err := NewExcelSink(path)
	require.NoError(t, err)

	tbl := DailyTable(DailyTableName, sampleDaily())
	require.NoError(t, sink.Write(ctx, tbl, Replace))
	require.NoError(t, sink.Write(ctx, tbl, Replace))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"market_data_daily"}, f.GetSheetList())
	rows, err := f.GetRows("market_data_daily")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	tbl := DailyTable(DailyTableName, sampleDaily())

	require.NoError(t, sink.Write(ctx, tbl, Replace))
	require.NoError(t, sink.Write(ctx, tbl, Append))
	got, ok := sink.Table(DailyTableName)
	require.True(t, ok)
	assert.Len(t, got.Rows, 4)

	sink.Err = errors.New("boom")
	assert.Error(t, sink.Write(ctx, tbl, Replace))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Name())
	require.NoError(t, s.Close())

	s, err = Open(ctx, Options{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())

	_, err = Open(ctx, Options{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = Open(ctx, Options{Driver: "postgres", DSN: "::not a dsn"})
	assert.Error(t, err)
}
