package model

import "time"

// RawEntry is one element of the source snapshot, decoded without any typing.
// Nothing about its shape is guaranteed.
type RawEntry = map[string]any

// ArchiveRecord is one archived-site entry in the directory. Records produced by
// validation carry a zero ID and zero timestamps; records loaded from storage
// carry all fields.
type ArchiveRecord struct {
	ID                   int64  `json:"id"`
	ProfileName          string `json:"profile_name"`
	RecordURL            string `json:"record_url"`
	ArchiveLink          string `json:"archive_link"`
	DomainType           string `json:"domain_type"`
	FirstCaptureDisplay  string `json:"first_capture_display"`
	LatestCaptureDisplay string `json:"latest_capture_display"`
	Ongoing              bool   `json:"ongoing"`
	WamID                int64  `json:"wam_id"`
	Description          string `json:"description"`

	// Derived at validation time.
	SortName       string `json:"sort_name"`
	FirstCharacter string `json:"first_character"`
	RecordHash     string `json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// CopyContent overwrites every persisted field of r with src, except the
// storage identity (ID, timestamps) and WamID.
func (r *ArchiveRecord) CopyContent(src ArchiveRecord) {
	r.ProfileName = src.ProfileName
	r.RecordURL = src.RecordURL
	r.ArchiveLink = src.ArchiveLink
	r.DomainType = src.DomainType
	r.FirstCaptureDisplay = src.FirstCaptureDisplay
	r.LatestCaptureDisplay = src.LatestCaptureDisplay
	r.Ongoing = src.Ongoing
	r.Description = src.Description
	r.SortName = src.SortName
	r.FirstCharacter = src.FirstCharacter
	r.RecordHash = src.RecordHash
}

// NumericBucket is the first-character bucket for names that do not start
// with a latin letter.
const NumericBucket = "0-9"

// RecordPage is one character bucket of the directory, as served to the
// page layer.
type RecordPage struct {
	Items []ArchiveRecord `json:"items"`
	Meta  PageMeta        `json:"meta"`
}

// PageMeta carries listing metadata.
type PageMeta struct {
	TotalCount int `json:"total_count"`
}

// ArchiveStats summarises the directory.
type ArchiveStats struct {
	TotalRecords    int64 `json:"total_records"`
	CharactersCount int   `json:"characters_count"`
}
