// Package pipeline runs the ETL stages in order: acquire, validate the schema,
// screen, flag outliers, compute indicators, aggregate and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"StockETL/internal/aggregator"
	"StockETL/internal/calculator"
	"StockETL/internal/collector"
	"StockETL/internal/metrics"
	"StockETL/internal/model"
	"StockETL/internal/recorder"
	"StockETL/internal/report"
	"StockETL/internal/validator"
)

var (
	// ErrNoData means acquisition returned no rows.
	ErrNoData = errors.New("no data acquired")
	// ErrSchemaInvalid means required columns are missing from the raw table.
	ErrSchemaInvalid = errors.New("schema validation failed")
	// ErrLoadFailed is returned for a persistence failure when strict loading is on.
	ErrLoadFailed = errors.New("load failed")
)

// Options tunes a run. Zero fields fall back to DefaultOptions.
type Options struct {
	OutlierThreshold float64
	Frequency        model.Frequency
	WriteMode        recorder.WriteMode
	DailyTable       string
	MonthlyTable     string
	StrictLoad       bool
	Output           io.Writer // dry-run sample and run summary
}

// DefaultOptions returns the standard run settings.
func DefaultOptions() Options {
	return Options{
		OutlierThreshold: validator.DefaultOutlierThreshold,
		Frequency:        model.Monthly,
		WriteMode:        recorder.Replace,
		DailyTable:       recorder.DailyTableName,
		MonthlyTable:     recorder.MonthlyTableName,
		Output:           io.Discard,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.OutlierThreshold <= 0 {
		o.OutlierThreshold = d.OutlierThreshold
	}
	if o.Frequency == "" {
		o.Frequency = d.Frequency
	}
	if o.WriteMode == "" {
		o.WriteMode = d.WriteMode
	}
	if o.DailyTable == "" {
		o.DailyTable = d.DailyTable
	}
	if o.MonthlyTable == "" {
		o.MonthlyTable = d.MonthlyTable
	}
	if o.Output == nil {
		o.Output = d.Output
	}
	return o
}

// Result is everything a run produced. It is returned even when Run fails.
type Result struct {
	RunID      string
	Stages     []Stage
	Quality    model.QualityReport
	Daily      []model.EnrichedBar
	Aggregated []model.AggregatedBar
	Outliers   int
	DryRun     bool
	LoadErr    error
	Started    time.Time
	Duration   time.Duration
}

// Completed reports whether the stage finished.
func (r *Result) Completed(s Stage) bool {
	for _, done := range r.Stages {
		if done == s {
			return true
		}
	}
	return false
}

// Pipeline wires a collector to an optional sink. A nil sink means dry run.
type Pipeline struct {
	collector *collector.Collector
	sink      recorder.Sink
	metrics   *metrics.Registry
	opts      Options
	logger    zerolog.Logger
}

// New creates a pipeline. sink may be nil.
func New(col *collector.Collector, sink recorder.Sink, opts Options, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		collector: col,
		sink:      sink,
		opts:      opts.withDefaults(),
		logger:    logger,
	}
}

// WithMetrics records stage timings and run outcomes into m.
func (p *Pipeline) WithMetrics(m *metrics.Registry) *Pipeline {
	p.metrics = m
	return p
}

// Run executes one batch.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		DryRun:  p.sink == nil,
	}
	log := p.logger.With().Str("run_id", res.RunID).Logger()
	log.Info().
		Str("provider", p.collector.Provider.Name()).
		Bool("dry_run", res.DryRun).
		Str("frequency", string(p.opts.Frequency)).
		Msg("pipeline started")

	err := p.run(ctx, res, log)
	res.Duration = time.Since(res.Started)

	status := "success"
	switch {
	case err != nil:
		status = "failed"
		log.Error().Err(err).Dur("duration", res.Duration).Msg("pipeline failed")
	case res.LoadErr != nil:
		status = "load_failed"
		if p.opts.StrictLoad {
			err = fmt.Errorf("%w: %w", ErrLoadFailed, res.LoadErr)
		}
		log.Warn().Err(res.LoadErr).Dur("duration", res.Duration).Msg("pipeline completed without persisting")
	default:
		log.Info().Dur("duration", res.Duration).Msg("pipeline completed")
	}
	if p.metrics != nil {
		p.metrics.RunFinished(status, time.Now())
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, res *Result, log zerolog.Logger) error {
	start := time.Now()
	raw := p.collector.Acquire(ctx)
	if raw.Empty() {
		return ErrNoData
	}
	p.complete(res, StageAcquire, start, raw.Len(), log)

	start = time.Now()
	if !validator.ValidateSchema(raw) {
		missing := validator.MissingColumns(raw)
		return fmt.Errorf("%w: missing columns %s", ErrSchemaInvalid, strings.Join(missing, ", "))
	}
	p.complete(res, StageValidate, start, raw.Len(), log)

	start = time.Now()
	clean, quality := validator.CheckQuality(raw)
	res.Quality = quality
	log.Info().
		Int("initial_rows", quality.InitialRows).
		Int("missing_values", quality.MissingValues).
		Int("negative_prices", quality.NegativePrices).
		Int("dropped_rows", quality.DroppedRows).
		Msg("data quality report")
	if len(clean) == 0 {
		log.Warn().Msg("no rows survived screening")
	}
	p.complete(res, StageScreen, start, len(clean), log)

	start = time.Now()
	flagged := validator.DetectOutliers(clean, p.opts.OutlierThreshold)
	for _, r := range flagged {
		if r.IsOutlier {
			res.Outliers++
		}
	}
	if p.metrics != nil {
		p.metrics.Outliers.Set(float64(res.Outliers))
	}
	p.complete(res, StageFlagOutliers, start, len(flagged), log)

	start = time.Now()
	res.Daily = calculator.AddIndicators(flagged)
	p.complete(res, StageIndicators, start, len(res.Daily), log)

	start = time.Now()
	agg, err := aggregator.Aggregate(res.Daily, p.opts.Frequency)
	if err != nil {
		return err
	}
	res.Aggregated = agg
	p.complete(res, StageAggregate, start, len(agg), log)

	if p.sink == nil {
		log.Info().Msg("skipping database write (dry run)")
		if err := report.WriteDryRun(p.opts.Output, res.Daily, len(res.Aggregated)); err != nil {
			log.Warn().Err(err).Msg("write dry-run sample")
		}
	} else {
		start = time.Now()
		if err := p.persist(ctx, res); err != nil {
			res.LoadErr = err
			log.Error().Err(err).Str("sink", p.sink.Name()).Msg("failed to write to database")
		} else {
			p.complete(res, StagePersist, start, len(res.Daily)+len(res.Aggregated), log)
		}
	}

	if err := report.WriteSummary(p.opts.Output, p.Summary(res)); err != nil {
		log.Warn().Err(err).Msg("write run summary")
	}
	return nil
}

func (p *Pipeline) persist(ctx context.Context, res *Result) error {
	daily := recorder.DailyTable(p.opts.DailyTable, res.Daily)
	if err := p.sink.Write(ctx, daily, p.opts.WriteMode); err != nil {
		return fmt.Errorf("write %s: %w", daily.Name, err)
	}
	monthly := recorder.MonthlyTable(p.opts.MonthlyTable, res.Aggregated)
	if err := p.sink.Write(ctx, monthly, p.opts.WriteMode); err != nil {
		return fmt.Errorf("write %s: %w", monthly.Name, err)
	}
	return nil
}

func (p *Pipeline) complete(res *Result, s Stage, start time.Time, rows int, log zerolog.Logger) {
	d := time.Since(start)
	res.Stages = append(res.Stages, s)
	if p.metrics != nil {
		p.metrics.ObserveStage(s.String(), d, rows)
	}
	log.Info().Str("stage", s.String()).Int("rows", rows).Dur("took", d).Msg("stage complete")
}

// Summary condenses a result for the console and notifications.
func (p *Pipeline) Summary(res *Result) report.Summary {
	s := report.Summary{
		RunID:          res.RunID,
		Provider:       p.collector.Provider.Name(),
		Frequency:      p.opts.Frequency,
		Tickers:        len(p.collector.Tickers),
		Quality:        res.Quality,
		DailyRows:      len(res.Daily),
		AggregatedRows: len(res.Aggregated),
		Outliers:       res.Outliers,
		Duration:       time.Since(res.Started),
		LoadErr:        res.LoadErr,
	}
	if res.Duration > 0 {
		s.Duration = res.Duration
	}
	if p.sink != nil {
		s.Sink = p.sink.Name()
	}
	return s
}
