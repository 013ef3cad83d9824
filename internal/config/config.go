package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"StockETL/internal/model"
	"StockETL/internal/recorder"
)

// Config holds all application configuration.
type Config struct {
	Tickers  []string       `yaml:"tickers" envconfig:"TICKERS" validate:"min=1,dive,required"`
	Period   string         `yaml:"period" envconfig:"PERIOD" validate:"required"`
	Interval string         `yaml:"interval" envconfig:"INTERVAL" validate:"required"`
	Source   SourceConfig   `yaml:"source" ignored:"true"`
	Pipeline PipelineConfig `yaml:"pipeline" ignored:"true"`
	Database DatabaseConfig `yaml:"database" ignored:"true"`
	Telegram TelegramConfig `yaml:"telegram" ignored:"true"`
	Metrics  MetricsConfig  `yaml:"metrics" ignored:"true"`
	Schedule ScheduleConfig `yaml:"schedule" ignored:"true"`
	Log      LogConfig      `yaml:"log" ignored:"true"`
	Proxy    string         `yaml:"proxy" envconfig:"HTTPS_PROXY"`
}

// SourceConfig selects the market data provider.
type SourceConfig struct {
	Provider          string        `yaml:"provider" envconfig:"SOURCE_PROVIDER" validate:"oneof=yahoo csv mock"`
	CSVPath           string        `yaml:"csv_path" envconfig:"SOURCE_CSV_PATH" validate:"required_if=Provider csv"`
	BaseURL           string        `yaml:"base_url" envconfig:"SOURCE_BASE_URL" validate:"omitempty,url"`
	AutoAdjust        *bool         `yaml:"auto_adjust" envconfig:"SOURCE_AUTO_ADJUST"`
	Concurrency       int           `yaml:"concurrency" envconfig:"SOURCE_CONCURRENCY" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"SOURCE_RPS" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"SOURCE_TIMEOUT" validate:"gte=0"`
}

// AutoAdjustEnabled reports the auto-adjust setting, on unless disabled.
func (s SourceConfig) AutoAdjustEnabled() bool {
	return s.AutoAdjust == nil || *s.AutoAdjust
}

// PipelineConfig tunes the transformation and load stages.
type PipelineConfig struct {
	OutlierThreshold float64 `yaml:"outlier_threshold" envconfig:"OUTLIER_THRESHOLD" validate:"gte=0"`
	Frequency        string  `yaml:"frequency" envconfig:"FREQUENCY"`
	WriteMode        string  `yaml:"write_mode" envconfig:"WRITE_MODE"`
	DailyTable       string  `yaml:"daily_table" envconfig:"DAILY_TABLE"`
	MonthlyTable     string  `yaml:"monthly_table" envconfig:"MONTHLY_TABLE"`
	StrictLoad       bool    `yaml:"strict_load" envconfig:"STRICT_LOAD"`
	DryRun           bool    `yaml:"dry_run" envconfig:"DRY_RUN"`
}

// DatabaseConfig describes the sink.
type DatabaseConfig struct {
	Driver     string        `yaml:"driver" envconfig:"DB_DRIVER" validate:"oneof=postgres sqlite excel memory none"`
	URL        string        `yaml:"url" envconfig:"DATABASE_URL"`
	Host       string        `yaml:"host" envconfig:"DB_HOST"`
	Port       int           `yaml:"port" envconfig:"DB_PORT" validate:"gte=0,lte=65535"`
	Name       string        `yaml:"name" envconfig:"DB_NAME"`
	User       string        `yaml:"user" envconfig:"DB_USER"`
	Password   string        `yaml:"password" envconfig:"DB_PASSWORD"`
	SSLMode    string        `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	SQLitePath string        `yaml:"sqlite_path" envconfig:"SQLITE_PATH" validate:"required_if=Driver sqlite"`
	ExcelPath  string        `yaml:"excel_path" envconfig:"DB_EXCEL_PATH" validate:"required_if=Driver excel"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"DB_TIMEOUT" validate:"gte=0"`
}

// TelegramConfig enables run summaries when a bot token is set.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"chat_id" envconfig:"TELEGRAM_CHAT_ID" validate:"required_with=BotToken"`
	Retries  int    `yaml:"retries" envconfig:"TELEGRAM_RETRIES" validate:"gte=0,lte=10"`
}

// MetricsConfig enables pushing run metrics to a Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL" validate:"omitempty,url"`
	Job            string `yaml:"job" envconfig:"PUSHGATEWAY_JOB"`
}

// ScheduleConfig drives `etl schedule`.
type ScheduleConfig struct {
	Cron       string `yaml:"cron" envconfig:"CRON_SCHEDULE"`
	RunOnStart bool   `yaml:"run_on_start" envconfig:"RUN_ON_START"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT" validate:"oneof=console json"`
}

// Load reads config from a YAML file, then .env, then environment variable
// overrides, and finally fills defaults for anything still unset.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	// sections use full variable names, so each is processed without a prefix
	sections := []any{cfg, &cfg.Source, &cfg.Pipeline, &cfg.Database, &cfg.Telegram, &cfg.Metrics, &cfg.Schedule, &cfg.Log}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("env overrides: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Tickers) == 0 {
		c.Tickers = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA"}
	}
	if c.Period == "" {
		c.Period = "1y"
	}
	if c.Interval == "" {
		c.Interval = "1d"
	}
	if c.Source.Provider == "" {
		c.Source.Provider = "yahoo"
	}
	if c.Source.Concurrency == 0 {
		c.Source.Concurrency = 4
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 30 * time.Second
	}
	if c.Pipeline.OutlierThreshold == 0 {
		c.Pipeline.OutlierThreshold = 3.0
	}
	if c.Pipeline.Frequency == "" {
		c.Pipeline.Frequency = string(model.Monthly)
	}
	if c.Pipeline.WriteMode == "" {
		c.Pipeline.WriteMode = string(recorder.Replace)
	}
	if c.Pipeline.DailyTable == "" {
		c.Pipeline.DailyTable = recorder.DailyTableName
	}
	if c.Pipeline.MonthlyTable == "" {
		c.Pipeline.MonthlyTable = recorder.MonthlyTableName
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.Name == "" {
		c.Database.Name = "stock_analytics"
	}
	if c.Database.User == "" {
		c.Database.User = "postgres"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/stock_etl.db"
	}
	if c.Database.ExcelPath == "" {
		c.Database.ExcelPath = "data/stock_etl.xlsx"
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = 5 * time.Minute
	}
	if c.Telegram.Retries == 0 {
		c.Telegram.Retries = 2
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "stock_etl"
	}
	if c.Schedule.Cron == "" {
		// weekdays after the US close
		c.Schedule.Cron = "0 30 22 * * 1-5"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the values parsed by other packages.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := model.ParseFrequency(c.Pipeline.Frequency); err != nil {
		return fmt.Errorf("pipeline.frequency: %w", err)
	}
	if _, err := recorder.ParseWriteMode(c.Pipeline.WriteMode); err != nil {
		return fmt.Errorf("pipeline.write_mode: %w", err)
	}
	return nil
}

// Frequency returns the parsed aggregation frequency.
func (c *Config) Frequency() model.Frequency {
	f, _ := model.ParseFrequency(c.Pipeline.Frequency)
	return f
}

// WriteMode returns the parsed write mode.
func (c *Config) WriteMode() recorder.WriteMode {
	m, _ := recorder.ParseWriteMode(c.Pipeline.WriteMode)
	return m
}

// DSN returns the Postgres connection URL. DATABASE_URL wins when set.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.User(c.Database.User),
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.Password != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	}
	if c.Database.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.Database.SSLMode}}.Encode()
	}
	return u.String()
}

// SinkOptions maps the database section onto recorder options.
func (c *Config) SinkOptions() recorder.Options {
	return recorder.Options{
		Driver:     c.Database.Driver,
		DSN:        c.DSN(),
		SQLitePath: c.Database.SQLitePath,
		ExcelPath:  c.Database.ExcelPath,
		Timeout:    c.Database.Timeout,
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "***"
	}
	if out.Database.URL != "" {
		if u, err := url.Parse(out.Database.URL); err == nil {
			out.Database.URL = u.Redacted()
		}
	}
	if out.Telegram.BotToken != "" {
		out.Telegram.BotToken = "***"
	}
	return out
}
