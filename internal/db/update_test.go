package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpdate_EmptyRows(t *testing.T) {
	n, err := BulkUpdate(context.TODO(), nil, UpdateConfig{
		Table:     "archive_records",
		KeyColumn: "id",
		Columns:   []string{"name"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpdate_NoKeyColumn(t *testing.T) {
	_, err := BulkUpdate(context.TODO(), nil, UpdateConfig{
		Table:   "archive_records",
		Columns: []string{"name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key column specified")
}

func TestBulkUpdate_NoColumns(t *testing.T) {
	_, err := BulkUpdate(context.TODO(), nil, UpdateConfig{
		Table:     "archive_records",
		KeyColumn: "id",
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpdate_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_update_archive_records" ON COMMIT DROP AS SELECT "id", "name", "hash" FROM "archive_records" WITH NO DATA`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE AS", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_update_archive_records"}, []string{"id", "name", "hash"}).WillReturnResult(2)
	mock.ExpectExec(`UPDATE "archive_records" AS t SET "name" = s."name", "hash" = s."hash", "updated_at" = now\(\) FROM "_tmp_update_archive_records" AS s WHERE t."id" = s."id"`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`DROP TABLE "_tmp_update_archive_records"`).
		WillReturnResult(pgxmock.NewResult("DROP TABLE", 0))

	n, err := BulkUpdate(context.Background(), mock, UpdateConfig{
		Table:     "archive_records",
		KeyColumn: "id",
		Columns:   []string{"name", "hash"},
		TouchCol:  "updated_at",
	}, [][]any{{int64(1), "a", "h1"}, {int64(2), "b", "h2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpdate_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE AS", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_update_archive_records"}, []string{"id", "name"}).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err = BulkUpdate(context.Background(), mock, UpdateConfig{
		Table:     "archive_records",
		KeyColumn: "id",
		Columns:   []string{"name"},
	}, [][]any{{int64(1), "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.archive_records", `"public"."archive_records"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
