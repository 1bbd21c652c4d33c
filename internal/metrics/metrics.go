// Package metrics collects run counters for a transcoding session and exports
// them in the Prometheus text format for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns a private registry so repeated runs in one process never
// collide with the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	jobs              *prometheus.CounterVec
	passes            *prometheus.CounterVec
	jobDuration       prometheus.Histogram
	statusUnavailable prometheus.Counter
	lastRun           prometheus.Gauge
}

// New registers the arista collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arista_jobs_total",
			Help: "Jobs that reached a terminal status, by status",
		}, []string{"status"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arista_passes_total",
			Help: "Encoding passes by result (completed, failed, aborted)",
		}, []string{"result"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arista_job_duration_seconds",
			Help:    "Wall time from job start to terminal status",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		}),
		statusUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arista_status_unavailable_total",
			Help: "Status polls answered before the engine reported a position",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arista_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
	m.registry.MustRegister(m.jobs, m.passes, m.jobDuration, m.statusUnavailable, m.lastRun)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// JobFinished counts a terminal job and observes its duration.
func (m *Metrics) JobFinished(status string, elapsed time.Duration) {
	m.jobs.WithLabelValues(status).Inc()
	if elapsed > 0 {
		m.jobDuration.Observe(elapsed.Seconds())
	}
}

// PassFinished counts a pass outcome.
func (m *Metrics) PassFinished(result string) {
	m.passes.WithLabelValues(result).Inc()
}

// StatusUnavailable counts a status poll without a position.
func (m *Metrics) StatusUnavailable() {
	m.statusUnavailable.Inc()
}

// WriteTextfile stamps the run time and writes every collector to path.
// Missing parent directories are created.
func (m *Metrics) WriteTextfile(path string, now time.Time) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure metrics directory: %w", err)
	}
	m.lastRun.Set(float64(now.Unix()))
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
