package render

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Document is the data the transmittal template is executed with.
type Document struct {
	Letterhead Letterhead
	Submission types.Submission
	Items      []ItemView

	// Total sums every amount that parses as a decimal.
	Total decimal.Decimal

	// Unparsed counts amounts left out of Total.
	Unparsed int
}

// ItemView is one numbered line of the document.
type ItemView struct {
	No int
	types.LineItem

	// Parsed is false when Amount is not a number; it is printed verbatim.
	Parsed bool
}

// NewDocument builds the template data for s.
func NewDocument(s types.Submission, lh Letterhead) Document {
	doc := Document{
		Letterhead: lh,
		Submission: s,
		Items:      make([]ItemView, 0, len(s.Items)),
		Total:      decimal.Zero,
	}
	for i, item := range s.Items {
		amount, ok := ParseAmount(item.Amount)
		if ok {
			doc.Total = doc.Total.Add(amount)
		} else if strings.TrimSpace(item.Amount) != "" {
			doc.Unparsed++
		}
		doc.Items = append(doc.Items, ItemView{No: i + 1, LineItem: item, Parsed: ok})
	}
	return doc
}

// ParseAmount parses an amount as entered on the form. Thousands separators,
// a leading currency sign and surrounding spaces are accepted.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "₱$ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatMoney formats d with two decimals and thousands separators.
//
// EXAMPLE:
//   1234.5 -> "1,234.50"
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	parts := strings.Split(d.StringFixed(2), ".")
	intPart := parts[0]
	decPart := "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return sign + result.String() + "." + decPart
}

var transmittalTemplate = template.Must(
	template.New("transmittal.html.tmpl").
		Funcs(template.FuncMap{
			"money": FormatMoney,
			"amount": func(item ItemView) string {
				if !item.Parsed {
					return item.Amount
				}
				d, _ := ParseAmount(item.Amount)
				return FormatMoney(d)
			},
			"upper": departmentKey,
		}).
		ParseFS(templateFS, "templates/transmittal.html.tmpl"),
)

// HTML executes the transmittal template.
func HTML(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := transmittalTemplate.Execute(&buf, doc); err != nil {
		return "", NewError(ErrCodeTemplateFailed, "failed to execute transmittal template", err)
	}
	return buf.String(), nil
}
