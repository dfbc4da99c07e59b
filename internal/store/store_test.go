package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

func testRecord(wamID int64, name, bucket string) model.ArchiveRecord {
	return model.ArchiveRecord{
		ProfileName:          name,
		RecordURL:            fmt.Sprintf("https://example.com/%d", wamID),
		ArchiveLink:          fmt.Sprintf("https://webarchive.nationalarchives.gov.uk/%d", wamID),
		DomainType:           "Central government",
		FirstCaptureDisplay:  "2010",
		LatestCaptureDisplay: "2024",
		Ongoing:              true,
		WamID:                wamID,
		Description:          "An example site",
		SortName:             name,
		FirstCharacter:       bucket,
		RecordHash:           fmt.Sprintf("%032d", wamID),
	}
}

func commitRecords(t *testing.T, s Store, recs ...model.ArchiveRecord) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for _, r := range recs {
		tx.Insert(r)
	}
	require.NoError(t, tx.Commit(ctx))
}

func wamIDs(recs []model.ArchiveRecord) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.WamID
	}
	return out
}

// storeTestSuite exercises the Store contract against any driver.
func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertAndRead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		commitRecords(t, s,
			testRecord(1, "example site", "e"),
			testRecord(2, "alpha", "a"),
			testRecord(3, "10 downing street", model.NumericBucket),
			testRecord(4, "another", "a"),
		)

		chars, err := s.Characters(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{model.NumericBucket, "a", "e"}, chars)

		recs, err := s.RecordsByCharacter(ctx, "a")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "alpha", recs[0].SortName)
		assert.Equal(t, "another", recs[1].SortName)
		assert.NotZero(t, recs[0].ID)
		assert.False(t, recs[0].CreatedAt.IsZero())

		n, err := s.CountRecords(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		all, err := s.ListRecords(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("EmptyStore", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		chars, err := s.Characters(ctx)
		require.NoError(t, err)
		assert.Empty(t, chars)

		recs, err := s.RecordsByCharacter(ctx, "z")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("RollbackDiscardsQueue", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		tx.Insert(testRecord(1, "example site", "e"))
		require.NoError(t, tx.Rollback(ctx))
		require.NoError(t, tx.Rollback(ctx))

		n, err := s.CountRecords(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("UpdateOverwritesContent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		commitRecords(t, s, testRecord(7, "old name", "o"))

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		existing, err := tx.ExistingByWamIDs(ctx, []int64{7, 8})
		require.NoError(t, err)
		require.Len(t, existing, 1)

		row := existing[7]
		before := row.UpdatedAt
		row.CopyContent(testRecord(7, "new name", "n"))
		row.RecordHash = "ffffffffffffffffffffffffffffffff"
		tx.Update(*row)
		require.NoError(t, tx.Commit(ctx))
		require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

		recs, err := s.RecordsByCharacter(ctx, "n")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, row.ID, recs[0].ID)
		assert.Equal(t, int64(7), recs[0].WamID)
		assert.Equal(t, "ffffffffffffffffffffffffffffffff", recs[0].RecordHash)
		assert.False(t, recs[0].UpdatedAt.Before(before))
	})

	t.Run("RepeatedUpdateLastWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		commitRecords(t, s, testRecord(9, "original", "o"))

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		existing, err := tx.ExistingByWamIDs(ctx, []int64{9})
		require.NoError(t, err)
		row := *existing[9]

		first := row
		first.CopyContent(testRecord(9, "first edit", "f"))
		tx.Update(first)
		second := row
		second.CopyContent(testRecord(9, "second edit", "s"))
		tx.Update(second)
		require.NoError(t, tx.Commit(ctx))

		recs, err := s.ListRecords(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "second edit", recs[0].ProfileName)
	})

	t.Run("ExistingByWamIDs_DuplicateHighestIDWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first := testRecord(5, "first", "f")
		second := testRecord(5, "second", "s")
		commitRecords(t, s, first)
		commitRecords(t, s, second)

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) //nolint:errcheck

		existing, err := tx.ExistingByWamIDs(ctx, []int64{5})
		require.NoError(t, err)
		require.Len(t, existing, 1)
		assert.Equal(t, "second", existing[5].ProfileName)
	})

	t.Run("ExistingByWamIDs_Empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx) //nolint:errcheck

		existing, err := tx.ExistingByWamIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, existing)
	})

	t.Run("DeleteStale", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		recs := []model.ArchiveRecord{
			testRecord(1, "a1", "a"),
			testRecord(2, "b2", "b"),
			testRecord(3, "c3", "c"),
		}
		commitRecords(t, s, recs...)

		n, err := s.DeleteStale(ctx, []int64{1}, true)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		count, err := s.CountRecords(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count, "dry run must not delete")

		n, err = s.DeleteStale(ctx, []int64{1}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		left, err := s.ListRecords(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, wamIDs(left))

		n, err = s.DeleteStale(ctx, []int64{1}, false)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("DeleteStale_EmptyRetainedDeletesAll", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		commitRecords(t, s, testRecord(1, "a1", "a"), testRecord(2, "b2", "b"))

		n, err := s.DeleteStale(ctx, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("RunLog", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		older := &model.SyncRun{
			ID:        "run-1",
			Status:    model.SyncStatusRunning,
			SourceURL: "https://example.com/archive.json",
			StartedAt: time.Now().UTC().Add(-time.Hour),
		}
		newer := &model.SyncRun{
			ID:        "run-2",
			Status:    model.SyncStatusRunning,
			DryRun:    true,
			SourceURL: "https://example.com/archive.json",
			StartedAt: time.Now().UTC(),
		}
		require.NoError(t, s.StartRun(ctx, older))
		require.NoError(t, s.StartRun(ctx, newer))

		stats := model.SyncStats{Total: 3, Created: 2, ValidationErrors: 1}
		require.NoError(t, s.CompleteRun(ctx, "run-1", stats))
		require.NoError(t, s.FailRun(ctx, "run-2", model.SyncStats{Total: 3}, "context canceled"))
		require.Error(t, s.CompleteRun(ctx, "missing", stats))

		runs, err := s.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)

		assert.Equal(t, "run-2", runs[0].ID)
		assert.Equal(t, model.SyncStatusFailed, runs[0].Status)
		assert.True(t, runs[0].DryRun)
		assert.Equal(t, "context canceled", runs[0].Error)
		assert.NotNil(t, runs[0].CompletedAt)

		assert.Equal(t, "run-1", runs[1].ID)
		assert.Equal(t, model.SyncStatusComplete, runs[1].Status)
		require.NotNil(t, runs[1].Stats)
		assert.Equal(t, stats, *runs[1].Stats)
		assert.Empty(t, runs[1].Error)

		limited, err := s.ListRuns(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}
