package archive

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

// SortName folds a profile name into its sort key: lower-cased, diacritics
// removed, punctuation dropped and whitespace collapsed.
func SortName(profileName string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, profileName)
	if err != nil {
		folded = profileName
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// FirstCharacter returns the directory bucket for a sort name: its first
// letter when that is a-z, otherwise the numeric bucket.
func FirstCharacter(sortName string) string {
	for _, r := range sortName {
		if r >= 'a' && r <= 'z' {
			return string(r)
		}
		break
	}
	return model.NumericBucket
}

// hashFields fixes the canonical order of the fingerprinted fields. Adding a
// field here changes every stored hash and forces one full rewrite.
type hashFields struct {
	ProfileName          string `json:"profile_name"`
	RecordURL            string `json:"record_url"`
	ArchiveLink          string `json:"archive_link"`
	DomainType           string `json:"domain_type"`
	FirstCaptureDisplay  string `json:"first_capture_display"`
	LatestCaptureDisplay string `json:"latest_capture_display"`
	Ongoing              bool   `json:"ongoing"`
	Description          string `json:"description"`
	SortName             string `json:"sort_name"`
	FirstCharacter       string `json:"first_character"`
}

// RecordHash returns the 32-char hex MD5 fingerprint of the persisted content
// of rec. The storage id and wam_id are not part of it.
func RecordHash(rec model.ArchiveRecord) string {
	payload, _ := json.Marshal(hashFields{ //nolint:errchkjson // plain strings and bools
		ProfileName:          rec.ProfileName,
		RecordURL:            rec.RecordURL,
		ArchiveLink:          rec.ArchiveLink,
		DomainType:           rec.DomainType,
		FirstCaptureDisplay:  rec.FirstCaptureDisplay,
		LatestCaptureDisplay: rec.LatestCaptureDisplay,
		Ongoing:              rec.Ongoing,
		Description:          rec.Description,
		SortName:             rec.SortName,
		FirstCharacter:       rec.FirstCharacter,
	})
	sum := md5.Sum(payload) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
