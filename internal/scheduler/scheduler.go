package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RunFunc executes one batch.
type RunFunc func(ctx context.Context) error

// Scheduler reruns the batch on a cron expression, never overlapping runs.
type Scheduler struct {
	Cron   *cron.Cron
	Run    RunFunc
	Logger zerolog.Logger
	Ctx    context.Context

	// job is shared by cron ticks and RunNow so both go through the same
	// skip-if-running guard.
	job cron.Job
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, run RunFunc, logger zerolog.Logger) *Scheduler {
	cl := cronLogger{logger}
	s := &Scheduler{
		Cron:   cron.New(cron.WithSeconds(), cron.WithLogger(cl)),
		Run:    run,
		Logger: logger,
		Ctx:    ctx,
	}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.task))
	return s
}

// Register adds the batch job under the given six-field cron spec.
func (s *Scheduler) Register(spec string) (cron.EntryID, error) {
	id, err := s.Cron.AddJob(spec, s.job)
	if err != nil {
		return 0, fmt.Errorf("register etl task: %w", err)
	}
	return id, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info().Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info().Msg("scheduler stopped")
}

// RunNow executes the batch immediately (RUN_ON_START). It is skipped when
// a scheduled run is still in progress.
func (s *Scheduler) RunNow() {
	s.job.Run()
}

func (s *Scheduler) task() {
	if s.Ctx.Err() != nil {
		return
	}
	s.Logger.Info().Msg("running scheduled etl task")
	if err := s.Run(s.Ctx); err != nil {
		s.Logger.Error().Err(err).Msg("scheduled etl task failed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
