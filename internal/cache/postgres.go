package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/nationalarchives/wa-frontend/internal/db"
)

// Postgres keeps entries in the archive_cache table so that every process
// pointed at the same database shares one cache.
type Postgres struct {
	pool db.Pool
}

// NewPostgres creates a Postgres cache over an already-migrated database.
func NewPostgres(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (c *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := c.pool.QueryRow(ctx,
		`SELECT value FROM archive_cache WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	return data, true, nil
}

func (c *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		expiresAt = &t
	}
	_, err := c.pool.Exec(ctx,
		`INSERT INTO archive_cache (key, value, expires_at, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, expiresAt,
	)
	return eris.Wrapf(err, "cache: set %s", key)
}

func (c *Postgres) Delete(ctx context.Context, key string) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM archive_cache WHERE key = $1`, key)
	return eris.Wrapf(err, "cache: delete %s", key)
}

func (c *Postgres) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM archive_cache WHERE starts_with(key, $1)`, prefix)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: delete prefix %s", prefix)
	}
	return int(tag.RowsAffected()), nil
}

// Purge drops expired entries.
func (c *Postgres) Purge(ctx context.Context) (int, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM archive_cache WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge expired")
	}
	return int(tag.RowsAffected()), nil
}
