package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpdateConfig defines the parameters for a bulk update by key.
type UpdateConfig struct {
	Table     string   // target table (e.g., "archive_records")
	KeyColumn string   // column matched between staged rows and the target
	Columns   []string // columns overwritten from the staged rows, key excluded
	TouchCol  string   // optional timestamp column set to now(); empty = none
}

// BulkUpdate overwrites existing rows from a staged copy, inside the caller's
// transaction:
// 1. Creates a temp table holding the key and update columns (dropped on commit)
// 2. COPY rows into the temp table
// 3. UPDATE target FROM temp WHERE keys match
//
// Each row is the key value followed by the values of cfg.Columns.
func BulkUpdate(ctx context.Context, tx Querier, cfg UpdateConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if cfg.KeyColumn == "" {
		return 0, eris.New("db: update: no key column specified")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: update: no columns specified")
	}

	tempTable := fmt.Sprintf("_tmp_update_%s", strings.ReplaceAll(cfg.Table, ".", "_"))
	staged := append([]string{cfg.KeyColumn}, cfg.Columns...)

	// CREATE TABLE AS does not carry NOT NULL constraints, so the temp table
	// accepts the partial column set.
	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WITH NO DATA",
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(staged),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: update: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, staged, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: update: COPY into temp table for %s", cfg.Table)
	}

	setClauses := make([]string, 0, len(cfg.Columns)+1)
	for _, col := range cfg.Columns {
		c := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = s.%s", c, c))
	}
	if cfg.TouchCol != "" {
		setClauses = append(setClauses, fmt.Sprintf("%s = now()", pgx.Identifier{cfg.TouchCol}.Sanitize()))
	}

	key := pgx.Identifier{cfg.KeyColumn}.Sanitize()
	updateSQL := fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM %s AS s WHERE t.%s = s.%s",
		sanitizeTable(cfg.Table),
		strings.Join(setClauses, ", "),
		pgx.Identifier{tempTable}.Sanitize(),
		key, key,
	)
	tag, err := tx.Exec(ctx, updateSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: update: UPDATE FROM for %s", cfg.Table)
	}

	// Release the staging table now so a second flush in the same
	// transaction can recreate it.
	dropSQL := fmt.Sprintf("DROP TABLE %s", pgx.Identifier{tempTable}.Sanitize())
	if _, err := tx.Exec(ctx, dropSQL); err != nil {
		return 0, eris.Wrapf(err, "db: update: drop temp table for %s", cfg.Table)
	}

	return tag.RowsAffected(), nil
}

// identifier splits schema-qualified names like "public.archive_records".
func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}

// sanitizeTable handles schema-qualified table names like "public.archive_records".
func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
