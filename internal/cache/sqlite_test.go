package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nationalarchives/wa-frontend/internal/store"
)

func openSQLiteCache(t *testing.T, path string) *SQLite {
	t.Helper()
	st, err := store.NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewSQLite(st.DB())
}

func TestSQLite_GetSetDelete(t *testing.T) {
	c := openSQLiteCache(t, filepath.Join(t.TempDir(), "cache.db"))
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "archive:characters")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "archive:characters", []byte(`["a"]`), 0))
	require.NoError(t, c.Set(ctx, "archive:characters", []byte(`["a","b"]`), 0))
	v, ok, err := c.Get(ctx, "archive:characters")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["a","b"]`, string(v))

	require.NoError(t, c.Delete(ctx, "archive:characters"))
	_, ok, err = c.Get(ctx, "archive:characters")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_Expiry(t *testing.T) {
	c := openSQLiteCache(t, filepath.Join(t.TempDir(), "cache.db"))
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("y"), 0))

	_, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_DeletePrefix(t *testing.T) {
	c := openSQLiteCache(t, filepath.Join(t.TempDir(), "cache.db"))
	ctx := context.Background()

	for _, k := range []string{"archive:records:a", "archive:records:0-9", "archive:characters", "archive:records%x"} {
		require.NoError(t, c.Set(ctx, k, []byte("v"), 0))
	}

	n, err := c.DeletePrefix(ctx, "archive:records:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, ok, err := c.Get(ctx, "archive:characters")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = c.Get(ctx, "archive:records%x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_SharedBetweenHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	server := openSQLiteCache(t, path)
	cli := openSQLiteCache(t, path)
	ctx := context.Background()

	require.NoError(t, server.Set(ctx, "archive:records:e", []byte(`old`), 0))

	n, err := cli.DeletePrefix(ctx, "archive:records:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := server.Get(ctx, "archive:records:e")
	require.NoError(t, err)
	assert.False(t, ok, "invalidation from another handle is visible")
}
