package store

import (
	"github.com/nationalarchives/wa-frontend/internal/model"
)

const recordsTable = "archive_records"

// recordColumns is the scan order used by scanRecord.
var recordColumns = []string{
	"id", "profile_name", "record_url", "archive_link", "domain_type",
	"first_capture_display", "latest_capture_display", "ongoing", "wam_id",
	"description", "sort_name", "first_character", "record_hash",
	"created_at", "updated_at",
}

// insertColumns matches insertValues.
var insertColumns = []string{
	"profile_name", "record_url", "archive_link", "domain_type",
	"first_capture_display", "latest_capture_display", "ongoing", "wam_id",
	"description", "sort_name", "first_character", "record_hash",
}

// updateColumns are overwritten when content changes. wam_id stays put.
var updateColumns = []string{
	"profile_name", "record_url", "archive_link", "domain_type",
	"first_capture_display", "latest_capture_display", "ongoing",
	"description", "sort_name", "first_character", "record_hash",
}

func insertValues(r model.ArchiveRecord) []any {
	return []any{
		r.ProfileName, r.RecordURL, r.ArchiveLink, r.DomainType,
		r.FirstCaptureDisplay, r.LatestCaptureDisplay, r.Ongoing, r.WamID,
		r.Description, r.SortName, r.FirstCharacter, r.RecordHash,
	}
}

// updateValues returns the values of updateColumns, without the key.
func updateValues(r model.ArchiveRecord) []any {
	return []any{
		r.ProfileName, r.RecordURL, r.ArchiveLink, r.DomainType,
		r.FirstCaptureDisplay, r.LatestCaptureDisplay, r.Ongoing,
		r.Description, r.SortName, r.FirstCharacter, r.RecordHash,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (model.ArchiveRecord, error) {
	var r model.ArchiveRecord
	err := row.Scan(
		&r.ID, &r.ProfileName, &r.RecordURL, &r.ArchiveLink, &r.DomainType,
		&r.FirstCaptureDisplay, &r.LatestCaptureDisplay, &r.Ongoing, &r.WamID,
		&r.Description, &r.SortName, &r.FirstCharacter, &r.RecordHash,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// indexByWamID keys loaded rows by wam_id. Rows must arrive ordered by id so
// the highest id wins on duplicates.
func indexByWamID(rows []model.ArchiveRecord) map[int64]*model.ArchiveRecord {
	out := make(map[int64]*model.ArchiveRecord, len(rows))
	for i := range rows {
		out[rows[i].WamID] = &rows[i]
	}
	return out
}

func runLimit(limit int) int {
	if limit <= 0 {
		return DefaultRunLimit
	}
	return limit
}
