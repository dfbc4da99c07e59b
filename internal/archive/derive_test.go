package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

func TestSortName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Example Site", "example site"},
		{"  The   Example\tSite ", "the example site"},
		{"Ministère de l'Économie", "ministere de leconomie"},
		{"A-Z Archive!", "az archive"},
		{"10 Downing Street", "10 downing street"},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SortName(tt.input))
		})
	}
}

func TestFirstCharacter(t *testing.T) {
	tests := []struct {
		sortName string
		expected string
	}{
		{"example site", "e"},
		{"zoo", "z"},
		{"10 downing street", model.NumericBucket},
		{"ωmega", model.NumericBucket},
		{"", model.NumericBucket},
	}
	for _, tt := range tests {
		t.Run(tt.sortName, func(t *testing.T) {
			assert.Equal(t, tt.expected, FirstCharacter(tt.sortName))
		})
	}
}

func TestFirstCharacter_FoldedName(t *testing.T) {
	assert.Equal(t, "e", FirstCharacter(SortName("Émile Zola Society")))
	assert.Equal(t, "q", FirstCharacter(SortName("'Quoted' Site")))
	assert.Equal(t, model.NumericBucket, FirstCharacter(SortName("#1 Charity")))
	assert.Equal(t, model.NumericBucket, FirstCharacter(SortName("Ωmega Trust")))
}

func testRecord() model.ArchiveRecord {
	rec := model.ArchiveRecord{
		ProfileName:          "Example Site",
		RecordURL:            "https://example.com",
		ArchiveLink:          "https://webarchive.nationalarchives.gov.uk/example",
		DomainType:           "Central government",
		FirstCaptureDisplay:  "2010",
		LatestCaptureDisplay: "2024",
		Ongoing:              true,
		WamID:                1,
		Description:          "An example site",
	}
	rec.SortName = SortName(rec.ProfileName)
	rec.FirstCharacter = FirstCharacter(rec.SortName)
	return rec
}

func TestRecordHash_Deterministic(t *testing.T) {
	a := testRecord()
	b := testRecord()

	h := RecordHash(a)
	assert.Len(t, h, 32)
	assert.Equal(t, h, RecordHash(b))
}

func TestRecordHash_IgnoresIdentity(t *testing.T) {
	a := testRecord()
	b := testRecord()
	b.ID = 99
	b.WamID = 12345

	assert.Equal(t, RecordHash(a), RecordHash(b))
}

func TestRecordHash_ChangesWithContent(t *testing.T) {
	base := RecordHash(testRecord())

	mutations := map[string]func(r *model.ArchiveRecord){
		"profile_name": func(r *model.ArchiveRecord) { r.ProfileName = "Other" },
		"record_url":   func(r *model.ArchiveRecord) { r.RecordURL = "https://other.example.com" },
		"archive_link": func(r *model.ArchiveRecord) { r.ArchiveLink = "https://webarchive.nationalarchives.gov.uk/other" },
		"domain_type":  func(r *model.ArchiveRecord) { r.DomainType = "Local government" },
		"first":        func(r *model.ArchiveRecord) { r.FirstCaptureDisplay = "2011" },
		"latest":       func(r *model.ArchiveRecord) { r.LatestCaptureDisplay = "2025" },
		"ongoing":      func(r *model.ArchiveRecord) { r.Ongoing = false },
		"description":  func(r *model.ArchiveRecord) { r.Description = "Changed" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			rec := testRecord()
			mutate(&rec)
			assert.NotEqual(t, base, RecordHash(rec))
		})
	}
}

func TestRecordHash_FieldBoundaries(t *testing.T) {
	a := testRecord()
	a.DomainType = "ab"
	a.FirstCaptureDisplay = "c"
	b := testRecord()
	b.DomainType = "a"
	b.FirstCaptureDisplay = "bc"

	assert.NotEqual(t, RecordHash(a), RecordHash(b))
}
