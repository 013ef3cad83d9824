package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink persists tables to PostgreSQL using COPY.
type PostgresSink struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresSink connects a pool and verifies the server is reachable.
func NewPostgresSink(ctx context.Context, dsn string, timeout time.Duration) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &PostgresSink{pool: pool, timeout: timeout}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Write replaces or appends the table inside one transaction.
func (s *PostgresSink) Write(ctx context.Context, table Table, mode WriteMode) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if mode == Replace {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+quotePostgres(table.Name)); err != nil {
			return fmt.Errorf("drop %s: %w", table.Name, err)
		}
	}
	if _, err := tx.Exec(ctx, createTableSQL(table.Name, table.Columns, quotePostgres, postgresType)); err != nil {
		return fmt.Errorf("create %s: %w", table.Name, err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table.Name}, table.ColumnNames(), pgx.CopyFromRows(table.Rows))
	if err != nil {
		return fmt.Errorf("copy %s: %w", table.Name, err)
	}
	if int(n) != len(table.Rows) {
		return fmt.Errorf("copy %s: wrote %d of %d rows", table.Name, n, len(table.Rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", table.Name, err)
	}
	return nil
}

// Close releases all pooled connections.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

func quotePostgres(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func postgresType(t ColumnType) string {
	switch t {
	case Date:
		return "DATE"
	case Real:
		return "DOUBLE PRECISION"
	case Integer:
		return "BIGINT"
	case Boolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
