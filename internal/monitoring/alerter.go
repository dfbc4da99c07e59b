package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSyncFailure         AlertType = "sync_failure"
	AlertSyncStale           AlertType = "sync_stale"
	AlertValidationErrorRate AlertType = "validation_error_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if snap.SyncFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertSyncFailure,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d archive sync run(s) failed in last %dh",
				snap.SyncFailed, snap.LookbackHours,
			),
			Details: map[string]any{
				"failed_count":       snap.SyncFailed,
				"total_syncs":        snap.SyncTotal,
				"last_failed_run_id": snap.LastFailedRunID,
				"last_error":         snap.LastFailedError,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MaxSyncAgeHours > 0 {
		maxAge := time.Duration(a.cfg.MaxSyncAgeHours) * time.Hour
		switch {
		case snap.LastSuccessAt == nil:
			alerts = append(alerts, Alert{
				Type:     AlertSyncStale,
				Severity: "high",
				Message:  "Archive directory has never been synced successfully",
				Details: map[string]any{
					"record_count":  snap.RecordCount,
					"max_age_hours": a.cfg.MaxSyncAgeHours,
				},
				Timestamp: now,
			})
		case now.Sub(*snap.LastSuccessAt) > maxAge:
			age := now.Sub(*snap.LastSuccessAt).Round(time.Minute)
			alerts = append(alerts, Alert{
				Type:     AlertSyncStale,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Last successful archive sync was %s ago (limit %dh)",
					age, a.cfg.MaxSyncAgeHours,
				),
				Details: map[string]any{
					"last_success_at": snap.LastSuccessAt.Format(time.RFC3339),
					"last_run_id":     snap.LastRunID,
					"max_age_hours":   a.cfg.MaxSyncAgeHours,
				},
				Timestamp: now,
			})
		}
	}

	if a.cfg.ValidationErrorRateThreshold > 0 && snap.ValidationErrorRate > a.cfg.ValidationErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertValidationErrorRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Validation error rate %.1f%% exceeds threshold %.1f%% (%d of %d entries in the last sync)",
				snap.ValidationErrorRate*100, a.cfg.ValidationErrorRateThreshold*100,
				snap.LastValidationError, snap.LastTotal,
			),
			Details: map[string]any{
				"error_rate":        snap.ValidationErrorRate,
				"threshold":         a.cfg.ValidationErrorRateThreshold,
				"validation_errors": snap.LastValidationError,
				"total":             snap.LastTotal,
				"run_id":            snap.LastRunID,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
