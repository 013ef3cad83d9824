package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StockETL/internal/scheduler"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rerun the pipeline on the configured cron expression",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if spec, _ := cmd.Flags().GetString("cron"); spec != "" {
				cfg.Schedule.Cron = spec
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b := newBatch(cfg, log.Logger, cmd.OutOrStdout())
			sched := scheduler.NewScheduler(ctx, b.run, log.Logger)
			if _, err := sched.Register(cfg.Schedule.Cron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if cfg.Schedule.RunOnStart {
				log.Info().Msg("RUN_ON_START enabled, executing now")
				go sched.RunNow()
			}

			log.Info().Str("cron", cfg.Schedule.Cron).Msg("stock etl is running, press Ctrl+C to stop")
			<-ctx.Done()
			log.Info().Msg("shutdown signal received, stopping")
			return nil
		},
	}
	cmd.Flags().String("cron", "", "Six-field cron expression (overrides schedule.cron)")
	return cmd
}
