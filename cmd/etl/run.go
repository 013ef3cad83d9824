package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StockETL/internal/collector"
	"StockETL/internal/config"
	"StockETL/internal/metrics"
	"StockETL/internal/model"
	"StockETL/internal/notifier"
	"StockETL/internal/pipeline"
	"StockETL/internal/recorder"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return newBatch(cfg, log.Logger, cmd.OutOrStdout()).run(ctx)
		},
	}
	cmd.Flags().Bool("dry-run", false, "Skip the database and print a sample instead")
	cmd.Flags().Bool("strict", false, "Exit non-zero when loading into the database fails")
	cmd.Flags().String("frequency", "", "Aggregation frequency (W, M, Q, Y)")
	cmd.Flags().StringSlice("tickers", nil, "Override the configured tickers")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if v, _ := cmd.Flags().GetBool("dry-run"); v {
		cfg.Pipeline.DryRun = true
	}
	if v, _ := cmd.Flags().GetBool("strict"); v {
		cfg.Pipeline.StrictLoad = true
	}
	if v, _ := cmd.Flags().GetString("frequency"); v != "" {
		if _, err := model.ParseFrequency(v); err != nil {
			return err
		}
		cfg.Pipeline.Frequency = v
	}
	if v, _ := cmd.Flags().GetStringSlice("tickers"); len(v) > 0 {
		cfg.Tickers = v
	}
	return nil
}

// batch wires one pipeline run with its optional side channels.
type batch struct {
	cfg      *config.Config
	out      io.Writer
	logger   zerolog.Logger
	metrics  *metrics.Registry
	notifier *notifier.TelegramNotifier
}

func newBatch(cfg *config.Config, logger zerolog.Logger, out io.Writer) *batch {
	b := &batch{cfg: cfg, out: out, logger: logger, metrics: metrics.New()}
	if cfg.Telegram.BotToken != "" {
		b.notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
	}
	return b
}

func (b *batch) run(ctx context.Context) error {
	provider, err := newProvider(b.cfg, b.logger)
	if err != nil {
		return err
	}
	col := collector.NewCollector(provider, b.cfg.Tickers, b.cfg.Period, b.cfg.Interval, b.logger)

	sink := b.openSink(ctx)
	if sink != nil {
		defer sink.Close()
	}

	p := pipeline.New(col, sink, pipeline.Options{
		OutlierThreshold: b.cfg.Pipeline.OutlierThreshold,
		Frequency:        b.cfg.Frequency(),
		WriteMode:        b.cfg.WriteMode(),
		DailyTable:       b.cfg.Pipeline.DailyTable,
		MonthlyTable:     b.cfg.Pipeline.MonthlyTable,
		StrictLoad:       b.cfg.Pipeline.StrictLoad,
		Output:           b.out,
	}, b.logger).WithMetrics(b.metrics)

	res, runErr := p.Run(ctx)
	b.publish(ctx, p, res)
	return runErr
}

// openSink returns nil for a dry run, including when the database is unreachable.
func (b *batch) openSink(ctx context.Context) recorder.Sink {
	if b.cfg.Pipeline.DryRun || b.cfg.Database.Driver == "none" {
		return nil
	}
	sink, err := recorder.Open(ctx, b.cfg.SinkOptions())
	if err != nil {
		b.logger.Warn().Err(err).Str("driver", b.cfg.Database.Driver).
			Msg("database connection failed, proceeding without DB save (dry run)")
		return nil
	}
	b.logger.Info().Str("sink", sink.Name()).Msg("database connection successful")
	return sink
}

// publish pushes metrics and sends the Telegram summary; failures are only logged.
func (b *batch) publish(ctx context.Context, p *pipeline.Pipeline, res *pipeline.Result) {
	if url := b.cfg.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := b.metrics.Push(pushCtx, url, b.cfg.Metrics.Job); err != nil {
			b.logger.Warn().Err(err).Msg("pushgateway")
		}
		cancel()
	}
	if b.notifier != nil && res != nil {
		if err := b.notifier.NotifyRun(ctx, p.Summary(res), b.cfg.Telegram.Retries); err != nil {
			b.logger.Warn().Err(err).Msg("telegram summary")
		}
	}
}

func newProvider(cfg *config.Config, logger zerolog.Logger) (collector.Provider, error) {
	switch cfg.Source.Provider {
	case "yahoo":
		return collector.NewYahooProvider(collector.YahooConfig{
			BaseURL:           cfg.Source.BaseURL,
			Proxy:             cfg.Proxy,
			AutoAdjust:        cfg.Source.AutoAdjustEnabled(),
			Concurrency:       cfg.Source.Concurrency,
			RequestsPerSecond: cfg.Source.RequestsPerSecond,
			Timeout:           cfg.Source.Timeout,
		}, logger), nil
	case "csv":
		return collector.NewCSVProvider(cfg.Source.CSVPath), nil
	case "mock":
		return &collector.MockProvider{Table: collector.GenerateTable(cfg.Tickers, 100, 365, time.Now())}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Source.Provider)
}
