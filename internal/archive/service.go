package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nationalarchives/wa-frontend/internal/cache"
	"github.com/nationalarchives/wa-frontend/internal/metrics"
	"github.com/nationalarchives/wa-frontend/internal/model"
	"github.com/nationalarchives/wa-frontend/internal/store"
)

// DefaultCharactersTTL bounds how long the character list is served from cache.
const DefaultCharactersTTL = time.Hour

// Reader is the read side of the store used by Service.
type Reader interface {
	Characters(ctx context.Context) ([]string, error)
	RecordsByCharacter(ctx context.Context, character string) ([]model.ArchiveRecord, error)
	CountRecords(ctx context.Context) (int64, error)
}

var _ Reader = (store.Store)(nil)

// Service serves the archive directory to the web layer through the cache.
// Records buckets are cached without expiry and rely on invalidation after
// each live sync. Safe for concurrent use.
type Service struct {
	reader        Reader
	cache         cache.Cache
	charactersTTL time.Duration
	log           *zap.Logger
}

// NewService creates a Service. A non-positive charactersTTL uses the default.
func NewService(r Reader, c cache.Cache, charactersTTL time.Duration) *Service {
	if charactersTTL <= 0 {
		charactersTTL = DefaultCharactersTTL
	}
	return &Service{
		reader:        r,
		cache:         c,
		charactersTTL: charactersTTL,
		log:           zap.L().With(zap.String("component", "archive.service")),
	}
}

// cached loads key into dst. Cache failures are logged and treated as misses.
func (s *Service) cached(ctx context.Context, view, key string, dst any) bool {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if ok {
		if err := json.Unmarshal(raw, dst); err != nil {
			s.log.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
			ok = false
		}
	}
	metrics.ObserveCacheLookup(view, ok)
	return ok
}

func (s *Service) store(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Characters returns the sorted distinct first-character buckets.
func (s *Service) Characters(ctx context.Context) ([]string, error) {
	var chars []string
	if s.cached(ctx, "characters", CharactersKey, &chars) {
		return chars, nil
	}

	chars, err := s.reader.Characters(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "archive: list characters")
	}
	if chars == nil {
		chars = []string{}
	}
	s.store(ctx, CharactersKey, chars, s.charactersTTL)
	return chars, nil
}

// RecordsByCharacter returns one bucket ordered by sort name. character must
// already be normalised by the caller.
func (s *Service) RecordsByCharacter(ctx context.Context, character string) (*model.RecordPage, error) {
	key := RecordsKey(character)
	var page model.RecordPage
	if s.cached(ctx, "records", key, &page) {
		return &page, nil
	}

	records, err := s.reader.RecordsByCharacter(ctx, character)
	if err != nil {
		return nil, eris.Wrapf(err, "archive: list records for %q", character)
	}
	if records == nil {
		records = []model.ArchiveRecord{}
	}
	page = model.RecordPage{
		Items: records,
		Meta:  model.PageMeta{TotalCount: len(records)},
	}
	s.store(ctx, key, page, 0)
	return &page, nil
}

// Count returns the total number of stored records. It is never cached.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.reader.CountRecords(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "archive: count records")
	}
	return n, nil
}

// Stats returns the record total and the number of character buckets,
// queried concurrently.
func (s *Service) Stats(ctx context.Context) (*model.ArchiveStats, error) {
	var (
		total int64
		chars []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		chars, err = s.Characters(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &model.ArchiveStats{TotalRecords: total, CharactersCount: len(chars)}, nil
}
