package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, func(t *testing.T) Store {
		return newTestSQLiteStore(t)
	})
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_DeleteStale_LargeRetainedSet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var recs []model.ArchiveRecord
	for i := int64(1); i <= 50; i++ {
		recs = append(recs, testRecord(i, "site", "s"))
	}
	commitRecords(t, st, recs...)

	retained := make([]int64, 0, 40000)
	for i := int64(1); i <= 40000; i++ {
		if i%10 != 0 {
			retained = append(retained, i)
		}
	}

	n, err := st.DeleteStale(ctx, retained, false)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// The staging table is connection scoped and must not leak into the
	// next pass.
	n, err = st.DeleteStale(ctx, []int64{1}, true)
	require.NoError(t, err)
	assert.Equal(t, 44, n)
}

func TestSQLite_CommitTwiceFails(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	tx.Insert(testRecord(1, "a", "a"))
	require.NoError(t, tx.Commit(ctx))

	err = tx.Commit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already finished")
}

func TestSQLite_ExistingByWamIDs_BeyondVariableLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	commitRecords(t, st, testRecord(3, "three", "t"), testRecord(39999, "last", "l"))

	ids := make([]int64, 0, 40000)
	for i := int64(1); i <= 40000; i++ {
		ids = append(ids, i)
	}
	ids = append(ids, 3)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	existing, err := tx.ExistingByWamIDs(ctx, ids)
	require.NoError(t, err)
	require.Len(t, existing, 2)
	assert.Equal(t, "three", existing[3].ProfileName)
	assert.Equal(t, "last", existing[39999].ProfileName)
}
