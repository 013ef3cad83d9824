package recorder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a live server, e.g.
// TEST_DATABASE_URL=postgres://postgres@localhost:5432/stock_analytics_test?sslmode=disable
func setupPostgres(t *testing.T) *PostgresSink {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	sink, err := NewPostgresSink(context.Background(), dsn, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestPostgresSink_ReplaceAndAppend(t *testing.T) {
	sink := setupPostgres(t)
	ctx := context.Background()
	tbl := DailyTable("market_data_daily_test", sampleDaily())

	require.NoError(t, sink.Write(ctx, tbl, Replace))
	require.NoError(t, sink.Write(ctx, tbl, Append))

	var n int
	require.NoError(t, sink.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_data_daily_test`).Scan(&n))
	assert.Equal(t, 4, n)

	require.NoError(t, sink.Write(ctx, tbl, Replace))
	require.NoError(t, sink.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_data_daily_test`).Scan(&n))
	assert.Equal(t, 2, n)

	var nulls int
	require.NoError(t, sink.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM market_data_daily_test WHERE daily_return IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)

	_, err := sink.pool.Exec(ctx, `DROP TABLE market_data_daily_test`)
	require.NoError(t, err)
}

func TestPostgresType(t *testing.T) {
	assert.Equal(t, "DATE", postgresType(Date))
	assert.Equal(t, "DOUBLE PRECISION", postgresType(Real))
	assert.Equal(t, "BIGINT", postgresType(Integer))
	assert.Equal(t, "BOOLEAN", postgresType(Boolean))
	assert.Equal(t, "TEXT", postgresType(Text))
	assert.Equal(t, `"market_data_daily"`, quotePostgres("market_data_daily"))
	assert.Contains(t,
		createTableSQL("t", []Column{{"close", Real}}, quotePostgres, postgresType),
		`"close" DOUBLE PRECISION`)
}
