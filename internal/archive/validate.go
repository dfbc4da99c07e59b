package archive

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/model"
)

// maxShortField mirrors the VARCHAR(100) columns.
const maxShortField = 100

// FieldError is a single field-level validation failure. Field uses the
// external (source feed) name.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every field that failed for one raw entry.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return strings.Join(parts, ", ")
}

// Result is the outcome of validating one raw entry. Exactly one of Record and
// Err is meaningful.
type Result struct {
	Record model.ArchiveRecord
	Err    *ValidationError
}

// OK reports whether the entry validated.
func (r Result) OK() bool { return r.Err == nil }

type fieldChecker struct {
	entry  model.RawEntry
	errors []FieldError
}

func (c *fieldChecker) fail(field, msg string) {
	c.errors = append(c.errors, FieldError{Field: field, Message: msg})
}

// str reads a required string. allowEmpty permits a present but blank value.
func (c *fieldChecker) str(field string, allowEmpty bool, maxLen int) string {
	v, ok := c.entry[field]
	if !ok || v == nil {
		c.fail(field, "field required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.fail(field, "must be a string")
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" && !allowEmpty {
		c.fail(field, "must not be empty")
		return ""
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		c.fail(field, fmt.Sprintf("must be at most %d characters", maxLen))
		return ""
	}
	return s
}

func (c *fieldChecker) httpURL(field string) string {
	s := c.str(field, false, 0)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.fail(field, "must be an absolute http(s) URL")
		return ""
	}
	return s
}

func (c *fieldChecker) boolean(field string) bool {
	v, ok := c.entry[field]
	if !ok || v == nil {
		c.fail(field, "field required")
		return false
	}
	b, ok := v.(bool)
	if !ok {
		c.fail(field, "must be a boolean")
		return false
	}
	return b
}

func (c *fieldChecker) positiveInt(field string) int64 {
	v, ok := c.entry[field]
	if !ok || v == nil {
		c.fail(field, "field required")
		return 0
	}
	n, ok := asInteger(v)
	if !ok {
		c.fail(field, "must be an integer")
		return 0
	}
	if n <= 0 {
		c.fail(field, "must be a positive integer")
		return 0
	}
	return n
}

// optional type-checks a field that is accepted but not persisted.
func (c *fieldChecker) optional(field string, check func(any) bool, want string) {
	v, ok := c.entry[field]
	if !ok || v == nil {
		return
	}
	if !check(v) {
		c.fail(field, "must be "+want)
	}
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isInteger(v any) bool {
	_, ok := asInteger(v)
	return ok
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

// asInteger accepts JSON numbers without a fractional part. Strings and
// booleans are never coerced.
func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// Validate converts one raw entry into a typed record with its derived
// fields. It never panics on untrusted input.
func Validate(entry model.RawEntry) Result {
	c := &fieldChecker{entry: entry}

	rec := model.ArchiveRecord{
		ProfileName:          c.str("profileName", false, 0),
		RecordURL:            c.httpURL("entryUrl"),
		ArchiveLink:          c.httpURL("archiveLink"),
		DomainType:           c.str("domainType", false, maxShortField),
		FirstCaptureDisplay:  c.str("firstCaptureDisplay", false, maxShortField),
		LatestCaptureDisplay: c.str("latestCaptureDisplay", false, maxShortField),
		Ongoing:              c.boolean("ongoing"),
		WamID:                c.positiveInt("wamId"),
		Description:          c.str("description", true, 0),
	}

	c.optional("wamLink", isString, "a string")
	c.optional("parentId", isInteger, "an integer")
	c.optional("generatedOn", isString, "a string")
	c.optional("firstCapture", isString, "a string")
	c.optional("latestCapture", isString, "a string")
	c.optional("currentDepartments", isList, "a list")
	c.optional("previousDepartments", isList, "a list")

	if len(c.errors) > 0 {
		return Result{Err: &ValidationError{Fields: c.errors}}
	}

	rec.SortName = SortName(rec.ProfileName)
	rec.FirstCharacter = FirstCharacter(rec.SortName)
	rec.RecordHash = RecordHash(rec)
	return Result{Record: rec}
}

// entryWamID renders the raw wamId for diagnostics.
func entryWamID(entry model.RawEntry) string {
	if v, ok := entry["wamId"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return "unknown"
}

// ValidateEntries validates a batch of raw entries independently. Invalid
// entries are logged and dropped. offset is the index of entries[0] within the
// whole snapshot and is used only for diagnostics.
func ValidateEntries(entries []model.RawEntry, offset int, log *zap.Logger) ([]model.ArchiveRecord, int) {
	valid := make([]model.ArchiveRecord, 0, len(entries))
	failed := 0
	for i, entry := range entries {
		res := Validate(entry)
		if !res.OK() {
			failed++
			log.Warn("validation failed",
				zap.Int("index", offset+i),
				zap.String("wam_id", entryWamID(entry)),
				zap.String("errors", res.Err.Error()),
			)
			continue
		}
		valid = append(valid, res.Record)
	}
	return valid, failed
}
