package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nationalarchives/wa-frontend/internal/cache"
)

func seedCache(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()
	for _, key := range []string{CharactersKey, RecordsKey("a"), RecordsKey("0-9"), "other:key"} {
		require.NoError(t, c.Set(ctx, key, []byte("x"), 0))
	}
}

func cached(t *testing.T, c cache.Cache, key string) bool {
	t.Helper()
	_, ok, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestInvalidate_Live(t *testing.T) {
	c := cache.NewMemory(0)
	seedCache(t, c)

	NewInvalidator(c).Invalidate(context.Background(), false)

	assert.False(t, cached(t, c, CharactersKey))
	assert.False(t, cached(t, c, RecordsKey("a")))
	assert.False(t, cached(t, c, RecordsKey("0-9")))
	assert.True(t, cached(t, c, "other:key"), "unrelated keys survive")
}

func TestInvalidate_DryRun(t *testing.T) {
	c := cache.NewMemory(0)
	seedCache(t, c)

	NewInvalidator(c).Invalidate(context.Background(), true)

	assert.True(t, cached(t, c, CharactersKey))
	assert.True(t, cached(t, c, RecordsKey("a")))
}

func TestInvalidate_ErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	defer undo()

	assert.NotPanics(t, func() {
		NewInvalidator(brokenCache{}).Invalidate(context.Background(), false)
	})
	assert.Equal(t, 2, logs.Len())
}

func TestRecordsKey(t *testing.T) {
	assert.Equal(t, "archive:records:0-9", RecordsKey("0-9"))
}
