// Package store persists the archive directory and its sync run log.
package store

import (
	"context"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

// DefaultRunLimit caps ListRuns when no limit is given.
const DefaultRunLimit = 20

// Store defines the persistence interface for the archive directory.
type Store interface {
	// Records
	Begin(ctx context.Context) (Tx, error)
	DeleteStale(ctx context.Context, retained []int64, dryRun bool) (int, error)
	Characters(ctx context.Context) ([]string, error)
	RecordsByCharacter(ctx context.Context, character string) ([]model.ArchiveRecord, error)
	CountRecords(ctx context.Context) (int64, error)
	ListRecords(ctx context.Context) ([]model.ArchiveRecord, error)

	// Sync run log
	StartRun(ctx context.Context, run *model.SyncRun) error
	CompleteRun(ctx context.Context, runID string, stats model.SyncStats) error
	FailRun(ctx context.Context, runID string, stats model.SyncStats, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is one commit batch against the records table. Insert and Update only
// queue mutations in memory; Commit flushes them together and commits.
// Rollback discards the queue and is safe to call after Commit.
type Tx interface {
	// ExistingByWamIDs loads the stored rows for the given external ids in a
	// single query. When several rows share a wam_id the one with the highest
	// id wins.
	ExistingByWamIDs(ctx context.Context, wamIDs []int64) (map[int64]*model.ArchiveRecord, error)
	Insert(rec model.ArchiveRecord)
	Update(rec model.ArchiveRecord)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
