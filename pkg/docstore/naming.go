package docstore

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultNameFormat names a rendered transmittal document.
const DefaultNameFormat = "{transmittal}_{uuid8}.pdf"

// DatedKey places name below prefix in a year/month directory.
//
// EXAMPLE:
//   DatedKey("transmittals", t, "x.pdf") -> "transmittals/2026/10/x.pdf"
func DatedKey(prefix string, t time.Time, name string) string {
	return path.Join(prefix, t.Format("2006"), t.Format("01"), name)
}

// GenerateName expands a document name format.
//
// PLACEHOLDERS:
//   {uuid}        a random UUID
//   {uuid8}       the first eight characters of a random UUID
//   {timestamp}   t as YYYYMMDD_HHMMSS
//   {date}        t as YYYYMMDD
//   {transmittal} params["transmittal"]
//   {dept}        params["dept"]
//
// Any other {key} is replaced from params. Path separators in values are
// replaced with underscores.
func GenerateName(format string, t time.Time, params map[string]string) string {
	if format == "" {
		format = DefaultNameFormat
	}
	id := uuid.New().String()

	replacements := []string{
		"{uuid}", id,
		"{uuid8}", id[:8],
		"{timestamp}", t.Format("20060102_150405"),
		"{date}", t.Format("20060102"),
	}
	for k, v := range params {
		replacements = append(replacements, "{"+k+"}", sanitizeNamePart(v))
	}
	return strings.NewReplacer(replacements...).Replace(format)
}

func sanitizeNamePart(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(s))
}
