package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/nationalarchives/wa-frontend/internal/db"
	"github.com/nationalarchives/wa-frontend/internal/model"
)

// psql builds Postgres statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that share the
// connection (e.g., the Postgres cache).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Records ---

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	return &pgTx{tx: tx}, nil
}

func (s *PostgresStore) DeleteStale(ctx context.Context, retained []int64, dryRun bool) (int, error) {
	if retained == nil {
		// A nil slice encodes as NULL and would match nothing.
		retained = []int64{}
	}
	stale := sq.Expr("NOT (wam_id = ANY(?))", retained)

	if dryRun {
		query, args, err := psql.Select("count(*)").From(recordsTable).Where(stale).ToSql()
		if err != nil {
			return 0, eris.Wrap(err, "postgres: build stale count")
		}
		var n int
		if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
			return 0, eris.Wrap(err, "postgres: count stale records")
		}
		return n, nil
	}

	query, args, err := psql.Delete(recordsTable).Where(stale).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build stale delete")
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete stale records")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Characters(ctx context.Context) ([]string, error) {
	query, args, err := psql.Select("first_character").Distinct().
		From(recordsTable).
		OrderBy("first_character").
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build characters query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query characters")
	}
	defer rows.Close()

	chars := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "postgres: scan character")
		}
		chars = append(chars, c)
	}
	return chars, eris.Wrap(rows.Err(), "postgres: iterate characters")
}

func (s *PostgresStore) RecordsByCharacter(ctx context.Context, character string) ([]model.ArchiveRecord, error) {
	return s.queryRecords(ctx, psql.Select(recordColumns...).
		From(recordsTable).
		Where(sq.Eq{"first_character": character}).
		OrderBy("sort_name", "id"))
}

func (s *PostgresStore) ListRecords(ctx context.Context) ([]model.ArchiveRecord, error) {
	return s.queryRecords(ctx, psql.Select(recordColumns...).
		From(recordsTable).
		OrderBy("sort_name", "id"))
}

func (s *PostgresStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+recordsTable).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count records")
	}
	return n, nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, b sq.SelectBuilder) ([]model.ArchiveRecord, error) {
	return queryRecords(ctx, s.pool, b)
}

func queryRecords(ctx context.Context, q db.Querier, b sq.SelectBuilder) ([]model.ArchiveRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build records query")
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query records")
	}
	defer rows.Close()

	out := []model.ArchiveRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate records")
}

// pgTx queues mutations and flushes them with COPY and a staged bulk update
// at commit.
type pgTx struct {
	tx      pgx.Tx
	inserts [][]any
	updates [][]any
	// updateAt maps a row id to its slot in updates. UPDATE ... FROM applies
	// an arbitrary source row when keys repeat, so only the last one is kept.
	updateAt map[int64]int
	done     bool
}

func (t *pgTx) ExistingByWamIDs(ctx context.Context, wamIDs []int64) (map[int64]*model.ArchiveRecord, error) {
	if len(wamIDs) == 0 {
		return map[int64]*model.ArchiveRecord{}, nil
	}
	rows, err := queryRecords(ctx, t.tx, psql.Select(recordColumns...).
		From(recordsTable).
		Where("wam_id = ANY(?)", wamIDs).
		OrderBy("id"))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load existing records")
	}
	return indexByWamID(rows), nil
}

func (t *pgTx) Insert(rec model.ArchiveRecord) {
	t.inserts = append(t.inserts, insertValues(rec))
}

func (t *pgTx) Update(rec model.ArchiveRecord) {
	row := append([]any{rec.ID}, updateValues(rec)...)
	if i, ok := t.updateAt[rec.ID]; ok {
		t.updates[i] = row
		return
	}
	if t.updateAt == nil {
		t.updateAt = make(map[int64]int)
	}
	t.updateAt[rec.ID] = len(t.updates)
	t.updates = append(t.updates, row)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if t.done {
		return eris.New("postgres: transaction already finished")
	}
	if err := t.flush(ctx); err != nil {
		_ = t.Rollback(ctx)
		return err
	}
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit")
	}
	return nil
}

func (t *pgTx) flush(ctx context.Context) error {
	if _, err := db.CopyFrom(ctx, t.tx, recordsTable, insertColumns, t.inserts); err != nil {
		return eris.Wrap(err, "postgres: flush inserts")
	}
	if _, err := db.BulkUpdate(ctx, t.tx, db.UpdateConfig{
		Table:     recordsTable,
		KeyColumn: "id",
		Columns:   updateColumns,
		TouchCol:  "updated_at",
	}, t.updates); err != nil {
		return eris.Wrap(err, "postgres: flush updates")
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.inserts, t.updates, t.updateAt = nil, nil, nil
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: rollback")
	}
	return nil
}

// --- Sync run log ---

func (s *PostgresStore) StartRun(ctx context.Context, run *model.SyncRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO archive_sync_log (id, status, dry_run, source_url, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, string(run.Status), run.DryRun, run.SourceURL, run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: start run %s", run.ID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats model.SyncStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE archive_sync_log SET status = $1, completed_at = now(), stats = $2 WHERE id = $3`,
		string(model.SyncStatusComplete), statsJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, stats model.SyncStats, errMsg string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE archive_sync_log SET status = $1, completed_at = now(), stats = $2, error = $3 WHERE id = $4`,
		string(model.SyncStatusFailed), statsJSON, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, dry_run, source_url, started_at, completed_at, stats, error
		 FROM archive_sync_log ORDER BY started_at DESC LIMIT $1`,
		runLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		var (
			r         model.SyncRun
			status    string
			statsJSON []byte
			errMsg    *string
		)
		if err := rows.Scan(&r.ID, &status, &r.DryRun, &r.SourceURL, &r.StartedAt, &r.CompletedAt, &statsJSON, &errMsg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.SyncStatus(status)
		if errMsg != nil {
			r.Error = *errMsg
		}
		if len(statsJSON) > 0 {
			r.Stats = &model.SyncStats{}
			if err := json.Unmarshal(statsJSON, r.Stats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal stats")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
