// Package metrics holds the Prometheus collectors for pipeline runs.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds all pipeline metrics on a private registry, so repeated
// runs in one process (tests, the scheduler) never collide on registration.
type Registry struct {
	registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	StageRows     *prometheus.GaugeVec
	Runs          *prometheus.CounterVec
	Outliers      prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// New creates and registers the pipeline metrics.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocketl_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),

		StageRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stocketl_stage_rows",
				Help: "Rows produced by each stage in the last run",
			},
			[]string{"stage"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocketl_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"status"},
		),

		Outliers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stocketl_outliers",
				Help: "Rows flagged as outliers in the last run",
			},
		),

		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stocketl_last_success_timestamp_seconds",
				Help: "Unix time of the last run that completed",
			},
		),
	}

	r.registry.MustRegister(r.StageDuration, r.StageRows, r.Runs, r.Outliers, r.LastSuccess)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// ObserveStage records how long a stage took and how many rows it produced.
func (r *Registry) ObserveStage(stage string, d time.Duration, rows int) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	r.StageRows.WithLabelValues(stage).Set(float64(rows))
}

// RunFinished counts a run by status ("success", "load_failed", "failed").
func (r *Registry) RunFinished(status string, at time.Time) {
	r.Runs.WithLabelValues(status).Inc()
	if status != "failed" {
		r.LastSuccess.Set(float64(at.Unix()))
	}
}

// Push sends the current values to a Pushgateway.
func (r *Registry) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
