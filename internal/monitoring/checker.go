package monitoring

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/config"
)

// Checker watches the sync run log from inside the server and raises alerts
// when the directory stops being refreshed.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	// raised is the fingerprint of the last alert set delivered. The same
	// failed or stale run is reported once, not on every tick.
	raised string
}

// NewChecker creates a background sync health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run checks once at startup and then on every interval until ctx is
// cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting sync health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Int("max_sync_age_hours", c.cfg.MaxSyncAgeHours),
	)

	if ctx.Err() == nil {
		c.check(ctx, log)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sync health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check collects one snapshot and delivers its alerts unless the same set was
// already delivered. It returns the number of alerts sent.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to read sync run log", zap.Error(err))
		return 0
	}

	fields := []zap.Field{
		zap.String("last_run_id", snap.LastRunID),
		zap.Int64("record_count", snap.RecordCount),
		zap.Int("runs_in_window", snap.SyncTotal),
		zap.Int("failed_in_window", snap.SyncFailed),
	}
	if snap.LastSuccessAt != nil {
		fields = append(fields, zap.Duration("since_last_success", snap.CollectedAt.Sub(*snap.LastSuccessAt).Round(time.Second)))
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		c.raised = ""
		log.Debug("monitoring: archive sync healthy", fields...)
		return 0
	}

	key := fingerprint(snap, alerts)
	if key == c.raised {
		log.Debug("monitoring: sync alerts unchanged since last delivery", fields...)
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	if sent == len(alerts) {
		c.raised = key
	}
	log.Warn("monitoring: archive sync unhealthy", append(fields,
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
		zap.String("last_failed_run_id", snap.LastFailedRunID),
	)...)
	return sent
}

// fingerprint identifies an alert set by its types and the runs it is about.
func fingerprint(snap *Snapshot, alerts []Alert) string {
	types := make([]string, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, string(a.Type))
	}
	sort.Strings(types)
	return strings.Join(types, ",") + "|" + snap.LastRunID + "|" + snap.LastFailedRunID
}
