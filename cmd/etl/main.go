package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StockETL/internal/config"
)

const version = "v1.0.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("stock etl failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "etl",
		Short:         "Stock market ETL pipeline",
		Long:          "Fetches daily bars, screens and enriches them with indicators, aggregates them and loads both tables into a database.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	root.PersistentFlags().String("config", defaultPath, "Path to the YAML config file")

	root.AddCommand(newRunCmd(), newScheduleCmd(), newValidateCmd())
	return root
}

// loadConfig reads and validates the config, then configures the global logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setupLogger(cfg.Log)
	return cfg, nil
}

func setupLogger(c config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
