package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// SQLite keeps entries in the archive_cache table of a SQLite database, for
// deployments where the CLI and the server share one database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a SQLite cache over an already-migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// expiry is stored as unix milliseconds; NULL never expires.
func (c *SQLite) nowMillis() int64 { return c.now().UTC().UnixMilli() }

func (c *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM archive_cache WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, c.nowMillis(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	return data, true, nil
}

func (c *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *int64
	if ttl > 0 {
		t := c.now().UTC().Add(ttl).UnixMilli()
		expiresAt = &t
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO archive_cache (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return eris.Wrapf(err, "cache: set %s", key)
}

func (c *SQLite) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM archive_cache WHERE key = ?`, key)
	return eris.Wrapf(err, "cache: delete %s", key)
}

func (c *SQLite) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	// substr avoids LIKE wildcards in the prefix.
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM archive_cache WHERE substr(key, 1, length(?)) = ?`, prefix, prefix)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: delete prefix %s", prefix)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: rows affected")
	}
	return int(n), nil
}

// Purge drops expired entries.
func (c *SQLite) Purge(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM archive_cache WHERE expires_at IS NOT NULL AND expires_at <= ?`, c.nowMillis())
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: rows affected")
	}
	return int(n), nil
}
