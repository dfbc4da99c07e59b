// Package archive implements the archive directory: validation of the source
// snapshot, hash-based change detection, the batch sync that reconciles the
// snapshot with storage, cache invalidation and the cached read service.
package archive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/cache"
	"github.com/nationalarchives/wa-frontend/internal/metrics"
	"github.com/nationalarchives/wa-frontend/internal/model"
	"github.com/nationalarchives/wa-frontend/internal/resilience"
	"github.com/nationalarchives/wa-frontend/internal/store"
)

// Batch defaults.
const (
	DefaultValidationBatchSize = 5000
	DefaultCommitBatchSize     = 1000

	progressEvery = 1000
)

// Source fetches the whole source snapshot.
type Source interface {
	FetchSnapshot(ctx context.Context, url string) ([]model.RawEntry, error)
}

// FetchError reports that the snapshot could not be obtained. Nothing was
// written when it is returned.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return "archive: fetch " + e.URL + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures one sync run.
type Options struct {
	SourceURL           string
	DryRun              bool
	ValidationBatchSize int
	CommitBatchSize     int
}

func (o Options) withDefaults() (Options, error) {
	if o.SourceURL == "" {
		return o, eris.New("archive: source url is required")
	}
	if o.ValidationBatchSize == 0 {
		o.ValidationBatchSize = DefaultValidationBatchSize
	}
	if o.CommitBatchSize == 0 {
		o.CommitBatchSize = DefaultCommitBatchSize
	}
	if o.ValidationBatchSize < 0 || o.CommitBatchSize < 0 {
		return o, eris.Errorf("archive: batch sizes must be positive (validation=%d, commit=%d)",
			o.ValidationBatchSize, o.CommitBatchSize)
	}
	return o, nil
}

// Syncer reconciles the source snapshot with the archive_records table.
type Syncer struct {
	store       store.Store
	source      Source
	invalidator *Invalidator
	log         *zap.Logger
}

// NewSyncer creates a Syncer. c is the cache shared with the read service.
func NewSyncer(st store.Store, src Source, c cache.Cache) *Syncer {
	return &Syncer{
		store:       st,
		source:      src,
		invalidator: NewInvalidator(c),
		log:         zap.L().With(zap.String("component", "archive.syncer")),
	}
}

// Run performs one full sync. Only a fetch failure, invalid options or
// context cancellation return an error; failed commit batches and a failed
// stale-record pass are counted in the returned stats instead.
func (s *Syncer) Run(ctx context.Context, opts Options) (model.SyncStats, error) {
	var stats model.SyncStats
	opts, err := opts.withDefaults()
	if err != nil {
		return stats, err
	}

	started := time.Now()
	mode := metrics.Mode(opts.DryRun)
	log := s.log.With(zap.String("mode", mode))
	log.Info("fetching archive snapshot", zap.String("url", opts.SourceURL))

	entries, err := s.source.FetchSnapshot(ctx, opts.SourceURL)
	if err != nil {
		fetchErr := &FetchError{URL: opts.SourceURL, Err: err}
		log.Error("archive fetch failed", zap.Error(err))
		metrics.ObserveSyncRun(opts.DryRun, stats, time.Since(started), fetchErr)
		return stats, fetchErr
	}
	stats.Total = len(entries)
	log.Info("archive snapshot fetched", zap.Int("entries", stats.Total))

	runID := s.startRun(ctx, opts, started)

	retained := make([]int64, 0, len(entries))
	batchNum := 0
	for from := 0; from < len(entries); from += opts.ValidationBatchSize {
		if err := ctx.Err(); err != nil {
			return s.abort(ctx, runID, opts.DryRun, stats, started, err)
		}
		to := min(from+opts.ValidationBatchSize, len(entries))
		batchNum++
		log.Info("validating batch",
			zap.Int("batch", batchNum),
			zap.Int("from", from),
			zap.Int("to", to),
		)

		valid, failed := ValidateEntries(entries[from:to], from, s.log)
		stats.ValidationErrors += failed
		for i := range valid {
			retained = append(retained, valid[i].WamID)
		}

		saved, err := s.saveValid(ctx, valid, opts)
		stats.AddSave(saved)
		if err != nil {
			return s.abort(ctx, runID, opts.DryRun, stats, started, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return s.abort(ctx, runID, opts.DryRun, stats, started, err)
	}

	deleted, err := s.store.DeleteStale(ctx, retained, opts.DryRun)
	if err != nil {
		stats.Deleted = model.DeleteFailed
		log.Error("stale record removal failed", zap.Error(err))
	} else {
		stats.Deleted = deleted
		if opts.DryRun {
			log.Info("stale records found", zap.Int("would_delete", deleted))
		} else {
			log.Info("stale records removed", zap.Int("deleted", deleted))
		}
	}

	s.invalidator.Invalidate(ctx, opts.DryRun)

	log.Info("archive sync complete",
		zap.Int("total", stats.Total),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("deleted", stats.Deleted),
		zap.Int("validation_errors", stats.ValidationErrors),
		zap.Int("database_errors", stats.DatabaseErrors),
		zap.Duration("elapsed", time.Since(started)),
	)

	if runID != "" {
		if err := s.store.CompleteRun(ctx, runID, stats); err != nil {
			log.Warn("could not record sync completion", zap.String("run_id", runID), zap.Error(err))
		}
	}
	metrics.ObserveSyncRun(opts.DryRun, stats, time.Since(started), nil)
	return stats, nil
}

// startRun records the run in the sync log. The log is best effort: a
// failure here does not stop the sync.
func (s *Syncer) startRun(ctx context.Context, opts Options, started time.Time) string {
	run := &model.SyncRun{
		ID:        uuid.NewString(),
		Status:    model.SyncStatusRunning,
		DryRun:    opts.DryRun,
		SourceURL: opts.SourceURL,
		StartedAt: started.UTC(),
	}
	if err := s.store.StartRun(ctx, run); err != nil {
		s.log.Warn("could not record sync start", zap.Error(err))
		return ""
	}
	return run.ID
}

// abort ends a run interrupted between batches. Committed batches stay; the
// stale pass is skipped because the retained set is incomplete.
func (s *Syncer) abort(ctx context.Context, runID string, dryRun bool, stats model.SyncStats, started time.Time, cause error) (model.SyncStats, error) {
	err := eris.Wrap(cause, "archive: sync interrupted")
	s.log.Warn("archive sync interrupted, stale records left in place",
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Error(cause),
	)
	if runID != "" {
		// The run context is already done; the log write gets its own.
		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ferr := s.store.FailRun(logCtx, runID, stats, err.Error()); ferr != nil {
			s.log.Warn("could not record sync failure", zap.String("run_id", runID), zap.Error(ferr))
		}
	}
	metrics.ObserveSyncRun(dryRun, stats, time.Since(started), err)
	return stats, err
}

// saveValid persists one validation batch in commit batches. Only context
// cancellation stops it early.
func (s *Syncer) saveValid(ctx context.Context, valid []model.ArchiveRecord, opts Options) (model.SaveStats, error) {
	var total model.SaveStats
	nextProgress := progressEvery
	for from := 0; from < len(valid); from += opts.CommitBatchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch := valid[from:min(from+opts.CommitBatchSize, len(valid))]

		saved, err := s.saveBatch(ctx, batch, opts.DryRun)
		if err != nil {
			total.DatabaseErrors += len(batch)
			s.log.Error("commit batch failed, rolled back",
				zap.Int("offset", from),
				zap.Int("size", len(batch)),
				zap.Bool("transient", resilience.IsTransient(err)),
				zap.Error(err),
			)
			continue
		}
		total.Created += saved.Created
		total.Updated += saved.Updated
		total.Skipped += saved.Skipped

		for total.Processed() >= nextProgress {
			s.log.Info("save progress",
				zap.Int("processed", nextProgress),
				zap.Int("valid", len(valid)),
			)
			nextProgress += progressEvery
		}
	}
	return total, nil
}

// saveBatch runs one commit batch in its own transaction. A dry run takes the
// same decisions and rolls back.
func (s *Syncer) saveBatch(ctx context.Context, batch []model.ArchiveRecord, dryRun bool) (model.SaveStats, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.SaveStats{}, eris.Wrap(err, "archive: begin batch")
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	ids := make([]int64, len(batch))
	for i := range batch {
		ids[i] = batch[i].WamID
	}
	existing, err := tx.ExistingByWamIDs(ctx, ids)
	if err != nil {
		return model.SaveStats{}, eris.Wrap(err, "archive: load existing records")
	}

	saved := SaveBatch(tx, batch, existing, dryRun)
	if dryRun {
		return saved, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return model.SaveStats{}, eris.Wrap(err, "archive: commit batch")
	}
	return saved, nil
}
