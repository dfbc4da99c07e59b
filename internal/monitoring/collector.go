package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

// runScanLimit bounds how far back the run log is read on each check.
const runScanLimit = 500

// Snapshot holds a point-in-time view of archive sync health.
type Snapshot struct {
	// Live sync runs started within the lookback window.
	SyncTotal    int `json:"sync_total"`
	SyncComplete int `json:"sync_complete"`
	SyncFailed   int `json:"sync_failed"`
	SyncRunning  int `json:"sync_running"`

	// Newest failed live run inside the window.
	LastFailedRunID string `json:"last_failed_run_id,omitempty"`
	LastFailedError string `json:"last_failed_error,omitempty"`

	// Latest completed live run, searched over the whole scanned log.
	LastRunID           string     `json:"last_run_id,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastTotal           int        `json:"last_total"`
	LastValidationError int        `json:"last_validation_errors"`
	ValidationErrorRate float64    `json:"validation_error_rate"`

	RecordCount int64 `json:"record_count"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Source is the slice of the store the collector reads.
type Source interface {
	ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
	CountRecords(ctx context.Context) (int64, error)
}

// Collector gathers sync health from the run log.
type Collector struct {
	src Source
	now func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window. Dry runs are
// ignored since they never change the directory.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.src.ListRuns(ctx, runScanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// ListRuns is newest first.
	for _, r := range runs {
		if r.DryRun {
			continue
		}
		if r.Status == model.SyncStatusComplete && snap.LastSuccessAt == nil {
			at := r.StartedAt
			if r.CompletedAt != nil {
				at = *r.CompletedAt
			}
			snap.LastSuccessAt = &at
			snap.LastRunID = r.ID
			if r.Stats != nil {
				snap.LastTotal = r.Stats.Total
				snap.LastValidationError = r.Stats.ValidationErrors
				if r.Stats.Total > 0 {
					snap.ValidationErrorRate = float64(r.Stats.ValidationErrors) / float64(r.Stats.Total)
				}
			}
		}
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.SyncTotal++
		switch r.Status {
		case model.SyncStatusComplete:
			snap.SyncComplete++
		case model.SyncStatusFailed:
			snap.SyncFailed++
			if snap.LastFailedRunID == "" {
				snap.LastFailedRunID = r.ID
				snap.LastFailedError = r.Error
			}
		case model.SyncStatusRunning:
			snap.SyncRunning++
		}
	}

	count, err := c.src.CountRecords(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count records")
	}
	snap.RecordCount = count

	return snap, nil
}
