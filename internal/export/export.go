// Package export writes the archive directory as CSV, XLSX or JSON for
// operator triage.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	JSON Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, XLSX, JSON:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want csv, xlsx or json)", s)
	}
}

// Header is the column order of tabular exports.
var Header = []string{
	"id", "wam_id", "profile_name", "sort_name", "first_character",
	"domain_type", "record_url", "archive_link",
	"first_capture_display", "latest_capture_display", "ongoing", "description",
}

func row(r model.ArchiveRecord) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		strconv.FormatInt(r.WamID, 10),
		r.ProfileName,
		r.SortName,
		r.FirstCharacter,
		r.DomainType,
		r.RecordURL,
		r.ArchiveLink,
		r.FirstCaptureDisplay,
		r.LatestCaptureDisplay,
		strconv.FormatBool(r.Ongoing),
		r.Description,
	}
}

// Write encodes records to w in the given format.
func Write(w io.Writer, format Format, records []model.ArchiveRecord) error {
	switch format {
	case CSV:
		return writeCSV(w, records)
	case XLSX:
		return writeXLSX(w, records)
	case JSON:
		return writeJSON(w, records)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

func writeCSV(w io.Writer, records []model.ArchiveRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", r.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func writeXLSX(w io.Writer, records []model.ArchiveRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("archive")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}
	for _, r := range records {
		xr := sheet.AddRow()
		xr.AddCell().SetInt64(r.ID)
		xr.AddCell().SetInt64(r.WamID)
		for _, s := range row(r)[2:10] {
			xr.AddCell().SetString(s)
		}
		xr.AddCell().SetBool(r.Ongoing)
		xr.AddCell().SetString(r.Description)
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func writeJSON(w io.Writer, records []model.ArchiveRecord) error {
	if records == nil {
		records = []model.ArchiveRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(records), "export: encode json")
}
