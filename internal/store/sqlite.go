package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The pool is pinned to one connection: SQLite has a single writer and the
// stale-record pass relies on a connection-scoped temp table.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS archive_records (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_name           TEXT NOT NULL,
	record_url             TEXT NOT NULL,
	archive_link           TEXT NOT NULL,
	domain_type            VARCHAR(100) NOT NULL,
	first_capture_display  VARCHAR(100) NOT NULL,
	latest_capture_display VARCHAR(100) NOT NULL,
	ongoing                BOOLEAN NOT NULL DEFAULT 0,
	wam_id                 INTEGER NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	sort_name              TEXT NOT NULL,
	first_character        VARCHAR(3) NOT NULL,
	record_hash            VARCHAR(32) NOT NULL,
	created_at             DATETIME NOT NULL,
	updated_at             DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archive_records_wam_id ON archive_records(wam_id);
CREATE INDEX IF NOT EXISTS idx_archive_records_sort_name ON archive_records(sort_name);
CREATE INDEX IF NOT EXISTS idx_archive_records_first_character ON archive_records(first_character);
CREATE INDEX IF NOT EXISTS idx_archive_records_record_hash ON archive_records(record_hash);

CREATE TABLE IF NOT EXISTS archive_sync_log (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	dry_run      BOOLEAN NOT NULL DEFAULT 0,
	source_url   TEXT NOT NULL,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	stats        TEXT,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_archive_sync_log_started_at ON archive_sync_log(started_at);

CREATE TABLE IF NOT EXISTS archive_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_archive_cache_expires_at ON archive_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// DB exposes the underlying handle so the shared cache can use the same file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Records ---

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	return &sqliteTx{tx: tx}, nil
}

func (s *SQLiteStore) DeleteStale(ctx context.Context, retained []int64, dryRun bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin stale pass")
	}
	defer tx.Rollback() //nolint:errcheck

	// The retained set can exceed the bound-variable limit, so it is staged
	// in a temp table instead of an IN list.
	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS _retained_wam_ids (wam_id INTEGER NOT NULL)`); err != nil {
		return 0, eris.Wrap(err, "sqlite: create retained table")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM _retained_wam_ids`); err != nil {
		return 0, eris.Wrap(err, "sqlite: reset retained table")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO _retained_wam_ids (wam_id) VALUES (?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare retained insert")
	}
	for _, id := range retained {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			stmt.Close() //nolint:errcheck
			return 0, eris.Wrap(err, "sqlite: stage retained id")
		}
	}
	stmt.Close() //nolint:errcheck

	stale := sq.Expr("wam_id NOT IN (SELECT wam_id FROM _retained_wam_ids)")

	var n int
	if dryRun {
		query, args, err := sq.Select("count(*)").From(recordsTable).Where(stale).ToSql()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: build stale count")
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, eris.Wrap(err, "sqlite: count stale records")
		}
	} else {
		query, args, err := sq.Delete(recordsTable).Where(stale).ToSql()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: build stale delete")
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: delete stale records")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		n = int(affected)
	}

	if _, err := tx.ExecContext(ctx, `DROP TABLE _retained_wam_ids`); err != nil {
		return 0, eris.Wrap(err, "sqlite: drop retained table")
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit stale pass")
	}
	return n, nil
}

func (s *SQLiteStore) Characters(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("first_character").Distinct().
		From(recordsTable).
		OrderBy("first_character").
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build characters query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query characters")
	}
	defer rows.Close()

	chars := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan character")
		}
		chars = append(chars, c)
	}
	return chars, eris.Wrap(rows.Err(), "sqlite: iterate characters")
}

func (s *SQLiteStore) RecordsByCharacter(ctx context.Context, character string) ([]model.ArchiveRecord, error) {
	return sqliteQueryRecords(ctx, s.db, sq.Select(recordColumns...).
		From(recordsTable).
		Where(sq.Eq{"first_character": character}).
		OrderBy("sort_name", "id"))
}

func (s *SQLiteStore) ListRecords(ctx context.Context) ([]model.ArchiveRecord, error) {
	return sqliteQueryRecords(ctx, s.db, sq.Select(recordColumns...).
		From(recordsTable).
		OrderBy("sort_name", "id"))
}

func (s *SQLiteStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+recordsTable).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count records")
	}
	return n, nil
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqliteQueryRecords(ctx context.Context, q sqlQuerier, b sq.SelectBuilder) ([]model.ArchiveRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build records query")
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query records")
	}
	defer rows.Close()

	out := []model.ArchiveRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

// sqliteTx queues mutations and replays them through prepared statements at
// commit.
type sqliteTx struct {
	tx      *sql.Tx
	inserts []model.ArchiveRecord
	updates []model.ArchiveRecord
	done    bool
}

// existingChunk keeps each IN list well under SQLite's bound-variable limit.
const existingChunk = 500

func (t *sqliteTx) ExistingByWamIDs(ctx context.Context, wamIDs []int64) (map[int64]*model.ArchiveRecord, error) {
	out := map[int64]*model.ArchiveRecord{}
	ids := uniqueIDs(wamIDs)
	for start := 0; start < len(ids); start += existingChunk {
		end := min(start+existingChunk, len(ids))
		// Every row of a given wam_id lands in the same chunk, so ordering by id
		// within the chunk is enough for the highest id to win.
		rows, err := sqliteQueryRecords(ctx, t.tx, sq.Select(recordColumns...).
			From(recordsTable).
			Where(sq.Eq{"wam_id": ids[start:end]}).
			OrderBy("id"))
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: load existing records")
		}
		for k, v := range indexByWamID(rows) {
			out[k] = v
		}
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (t *sqliteTx) Insert(rec model.ArchiveRecord) {
	t.inserts = append(t.inserts, rec)
}

func (t *sqliteTx) Update(rec model.ArchiveRecord) {
	t.updates = append(t.updates, rec)
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	if t.done {
		return eris.New("sqlite: transaction already finished")
	}
	if err := t.flush(ctx); err != nil {
		_ = t.Rollback(ctx)
		return err
	}
	t.done = true
	return eris.Wrap(t.tx.Commit(), "sqlite: commit")
}

func (t *sqliteTx) flush(ctx context.Context) error {
	now := time.Now().UTC()

	if len(t.inserts) > 0 {
		cols := append(append([]string{}, insertColumns...), "created_at", "updated_at")
		stmt, err := t.tx.PrepareContext(ctx, `INSERT INTO archive_records (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders(len(cols))+`)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare insert")
		}
		defer stmt.Close() //nolint:errcheck
		for _, rec := range t.inserts {
			if _, err := stmt.ExecContext(ctx, append(insertValues(rec), now, now)...); err != nil {
				return eris.Wrapf(err, "sqlite: insert wam_id %d", rec.WamID)
			}
		}
	}

	if len(t.updates) > 0 {
		sets := make([]string, 0, len(updateColumns)+1)
		for _, c := range updateColumns {
			sets = append(sets, c+" = ?")
		}
		sets = append(sets, "updated_at = ?")
		stmt, err := t.tx.PrepareContext(ctx, `UPDATE archive_records SET `+strings.Join(sets, ", ")+` WHERE id = ?`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare update")
		}
		defer stmt.Close() //nolint:errcheck
		for _, rec := range t.updates {
			if _, err := stmt.ExecContext(ctx, append(updateValues(rec), now, rec.ID)...); err != nil {
				return eris.Wrapf(err, "sqlite: update id %d", rec.ID)
			}
		}
	}
	return nil
}

func (t *sqliteTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.inserts, t.updates = nil, nil
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: rollback")
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// --- Sync run log ---

func (s *SQLiteStore) StartRun(ctx context.Context, run *model.SyncRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO archive_sync_log (id, status, dry_run, source_url, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.DryRun, run.SourceURL, run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: start run %s", run.ID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats model.SyncStats) error {
	return s.finishRun(ctx, runID, model.SyncStatusComplete, stats, nil)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, stats model.SyncStats, errMsg string) error {
	return s.finishRun(ctx, runID, model.SyncStatusFailed, stats, &errMsg)
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID string, status model.SyncStatus, stats model.SyncStats, errMsg *string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE archive_sync_log SET status = ?, completed_at = ?, stats = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), string(statsJSON), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, dry_run, source_url, started_at, completed_at, stats, error
		 FROM archive_sync_log ORDER BY started_at DESC LIMIT ?`,
		runLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		var (
			r         model.SyncRun
			status    string
			completed sql.NullTime
			statsJSON sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(&r.ID, &status, &r.DryRun, &r.SourceURL, &r.StartedAt, &completed, &statsJSON, &errMsg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.SyncStatus(status)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		r.Error = errMsg.String
		if statsJSON.Valid {
			r.Stats = &model.SyncStats{}
			if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal stats")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
