package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown database driver")

// Options selects and configures a sink.
type Options struct {
	Driver     string // postgres, sqlite, excel or memory
	DSN        string
	SQLitePath string
	ExcelPath  string
	Timeout    time.Duration
}

// Open connects the sink named by opts.Driver.
func Open(ctx context.Context, opts Options) (Sink, error) {
	switch strings.ToLower(opts.Driver) {
	case "postgres", "postgresql":
		return NewPostgresSink(ctx, opts.DSN, opts.Timeout)
	case "sqlite":
		return NewSQLiteSink(ctx, opts.SQLitePath)
	case "excel", "xlsx":
		return NewExcelSink(opts.ExcelPath)
	case "memory":
		return NewMemorySink(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
}
