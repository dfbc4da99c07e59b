// Package metrics exposes Prometheus collectors for archive syncs and the read
// API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

var (
	syncRunsTotal              *prometheus.CounterVec
	syncRecordsTotal           *prometheus.CounterVec
	syncDurationSeconds        *prometheus.HistogramVec
	syncLastSuccessTimestamp   prometheus.Gauge
	cacheLookupsTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_sync_runs_total",
				Help: "Total number of archive sync runs, labeled by mode and status.",
			},
			[]string{"mode", "status"},
		)

		syncRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_sync_records_total",
				Help: "Records handled by archive syncs, labeled by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		syncDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_sync_duration_seconds",
				Help:    "Histogram of archive sync run durations, labeled by mode.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"mode"},
		)

		syncLastSuccessTimestamp = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "archive_sync_last_success_timestamp_seconds",
				Help: "Unix time of the last live archive sync that completed.",
			},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_cache_lookups_total",
				Help: "Read-path cache lookups, labeled by view and result.",
			},
			[]string{"view", "result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Mode returns the mode label for a run.
func Mode(dryRun bool) string {
	if dryRun {
		return "dry-run"
	}
	return "live"
}

// ObserveSyncRun records the outcome of one sync run. A nil runErr means the
// run completed; per-batch failures are visible through the outcome counters.
func ObserveSyncRun(dryRun bool, stats model.SyncStats, duration time.Duration, runErr error) {
	Init()
	mode := Mode(dryRun)
	status := string(model.SyncStatusComplete)
	if runErr != nil {
		status = string(model.SyncStatusFailed)
	}
	syncRunsTotal.WithLabelValues(mode, status).Inc()
	syncDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())

	syncRecordsTotal.WithLabelValues(mode, "created").Add(float64(stats.Created))
	syncRecordsTotal.WithLabelValues(mode, "updated").Add(float64(stats.Updated))
	syncRecordsTotal.WithLabelValues(mode, "skipped").Add(float64(stats.Skipped))
	syncRecordsTotal.WithLabelValues(mode, "validation_error").Add(float64(stats.ValidationErrors))
	syncRecordsTotal.WithLabelValues(mode, "database_error").Add(float64(stats.DatabaseErrors))
	if stats.Deleted > 0 {
		syncRecordsTotal.WithLabelValues(mode, "deleted").Add(float64(stats.Deleted))
	}

	if runErr == nil && !dryRun {
		syncLastSuccessTimestamp.SetToCurrentTime()
	}
}

// ObserveCacheLookup counts a read-path cache hit or miss for view.
func ObserveCacheLookup(view string, hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(view, result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
