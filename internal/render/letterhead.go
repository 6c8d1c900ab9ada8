package render

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultLetterheadKey names the fallback letterhead.
const DefaultLetterheadKey = "DEFAULT"

// Letterhead is the heading block printed for a department.
type Letterhead struct {
	Title   string `json:"title" yaml:"title"`
	Address string `json:"address" yaml:"address"`
	Phone   string `json:"phone" yaml:"phone"`
}

// Letterheads maps upper-cased department codes to letterheads.
type Letterheads struct {
	byCode   map[string]Letterhead
	fallback Letterhead
}

var upper = cases.Upper(language.Und)

// NewLetterheads indexes m by upper-cased, trimmed department code. The entry
// keyed DEFAULT (in any case) becomes the fallback.
func NewLetterheads(m map[string]Letterhead) *Letterheads {
	l := &Letterheads{byCode: make(map[string]Letterhead, len(m))}
	for code, lh := range m {
		key := departmentKey(code)
		if key == DefaultLetterheadKey {
			l.fallback = lh
			continue
		}
		l.byCode[key] = lh
	}
	return l
}

// Resolve returns the letterhead for department, or the fallback.
func (l *Letterheads) Resolve(department string) Letterhead {
	if l == nil {
		return Letterhead{}
	}
	if lh, ok := l.byCode[departmentKey(department)]; ok {
		return lh
	}
	return l.fallback
}

func departmentKey(code string) string {
	return upper.String(strings.TrimSpace(code))
}
