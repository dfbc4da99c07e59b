package archive

import (
	"context"

	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/cache"
)

// Cache keys shared by the read path and the invalidator.
const (
	CharactersKey    = "archive:characters"
	RecordsKeyPrefix = "archive:records:"
)

// RecordsKey returns the cache key of one character bucket.
func RecordsKey(character string) string {
	return RecordsKeyPrefix + character
}

// Invalidator drops every cached archive view after a live sync.
type Invalidator struct {
	cache cache.Cache
	log   *zap.Logger
}

// NewInvalidator creates an Invalidator over c.
func NewInvalidator(c cache.Cache) *Invalidator {
	return &Invalidator{
		cache: c,
		log:   zap.L().With(zap.String("component", "archive.invalidator")),
	}
}

// Invalidate removes the character list and every records bucket. On a dry
// run it only logs. Failures are logged and never returned: a stale cache
// must not fail a sync whose data is already committed.
func (inv *Invalidator) Invalidate(ctx context.Context, dryRun bool) {
	if dryRun {
		inv.log.Info("dry run: cache not cleared")
		return
	}

	if err := inv.cache.Delete(ctx, CharactersKey); err != nil {
		inv.log.Error("clear characters cache", zap.String("key", CharactersKey), zap.Error(err))
	}

	n, err := inv.cache.DeletePrefix(ctx, RecordsKeyPrefix)
	if err != nil {
		inv.log.Error("clear records cache", zap.String("prefix", RecordsKeyPrefix), zap.Error(err))
		return
	}
	inv.log.Info("archive cache cleared", zap.Int("record_buckets", n))
}
