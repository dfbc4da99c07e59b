package model

import "time"

// SyncStatus represents the state of an archive sync run.
type SyncStatus string

const (
	SyncStatusRunning  SyncStatus = "running"
	SyncStatusComplete SyncStatus = "complete"
	SyncStatusFailed   SyncStatus = "failed"
)

// DeleteFailed is the Deleted count reported when the stale-record pass failed.
const DeleteFailed = -1

// SyncStats holds the counters accumulated over one sync run.
type SyncStats struct {
	Total            int `json:"total"`
	Created          int `json:"created"`
	Updated          int `json:"updated"`
	Skipped          int `json:"skipped"`
	Deleted          int `json:"deleted"`
	ValidationErrors int `json:"validation_errors"`
	DatabaseErrors   int `json:"database_errors"`
}

// SaveStats holds the counters produced by saving one batch of validated records.
type SaveStats struct {
	Created        int `json:"created"`
	Updated        int `json:"updated"`
	Skipped        int `json:"skipped"`
	DatabaseErrors int `json:"database_errors"`
}

// Processed returns the number of records that reached a decision.
func (s SaveStats) Processed() int {
	return s.Created + s.Updated + s.Skipped
}

// AddSave accumulates the counters of a saved batch.
func (s *SyncStats) AddSave(b SaveStats) {
	s.Created += b.Created
	s.Updated += b.Updated
	s.Skipped += b.Skipped
	s.DatabaseErrors += b.DatabaseErrors
}

// SyncRun is one entry of the archive sync log.
type SyncRun struct {
	ID          string     `json:"id" yaml:"id"`
	Status      SyncStatus `json:"status" yaml:"status"`
	DryRun      bool       `json:"dry_run" yaml:"dry_run"`
	SourceURL   string     `json:"source_url" yaml:"source_url"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Stats       *SyncStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
}
