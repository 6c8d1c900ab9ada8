// =============================================================================
// Transmittal Log - CSV Line Item Import
// =============================================================================
//
// Line items can be prepared outside the form, for example exported from an
// accounting report, and loaded from a CSV file. Columns are located by header
// text, so column order is free.
//
// HEADER MATCHING:
//   A column is recognized by the source-table header ("RFP/ PEF #",
//   "Supplier", ...) or by the field key ("reference_number", "supplier",
//   ...). Matching ignores case and surrounding spaces.
//
// LAYOUT:
//   The header row is the row directly above settings.DataStartRow. Blank
//   rows are skipped. Columns with unknown headers are ignored.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/transmittal-log/internal/config"
	"github.com/ginjaninja78/transmittal-log/internal/types"
)

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData is a parsed CSV file.
type CSVData struct {
	// Headers are the trimmed header cells. Empty headers become Column_N.
	Headers []string

	// Rows are the non-blank data rows as header -> trimmed value.
	Rows []map[string]string

	// RowNumbers holds the one-based file row of each entry in Rows.
	RowNumbers []int
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads the CSV file at path.
func ParseFile(path string, settings config.CSVSettings) (*CSVData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(bufio.NewReader(file), settings)
}

// Parse reads CSV from r.
//
// PARAMETERS:
//   - r: The CSV input.
//   - settings: Delimiter and data start row.
//
// RETURNS:
//   - The headers and data rows.
//   - An error if the input is unreadable or has no header row.
func Parse(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	reader := csv.NewReader(r)
	configureReader(reader, settings)

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	start := settings.DataStartRow
	if start < 2 {
		start = 2
	}
	headerIndex := start - 2
	if headerIndex >= len(allRows) {
		return nil, fmt.Errorf("file has no header row at row %d", headerIndex+1)
	}

	data := &CSVData{Headers: cleanHeaders(allRows[headerIndex])}
	for i := start - 1; i < len(allRows); i++ {
		row := allRows[i]
		if isRowEmpty(row) {
			continue
		}
		rowMap := make(map[string]string, len(data.Headers))
		for col, header := range data.Headers {
			if col < len(row) {
				rowMap[header] = strings.TrimSpace(row[col])
			} else {
				rowMap[header] = ""
			}
		}
		data.Rows = append(data.Rows, rowMap)
		data.RowNumbers = append(data.RowNumbers, i+1)
	}
	return data, nil
}

// configureReader applies the delimiter and leniency settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = settings.TrimLeadingSpace
}

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItems maps parsed rows to line items.
//
// PARAMETERS:
//   - data: The parsed CSV.
//   - referenceHeader: The source-table header of the reference column.
//   - fields: The source-table headers of the business fields.
//
// RETURNS:
//   - One line item per data row, in file order.
//   - An error if no column is recognized, or if a row has no reference.
func LineItems(data *CSVData, referenceHeader string, fields []types.FieldHeader) ([]types.LineItem, error) {
	aliases := map[string]string{
		normalize(referenceHeader):            types.FieldReferenceNumber,
		normalize(types.FieldReferenceNumber): types.FieldReferenceNumber,
	}
	for _, f := range fields {
		aliases[normalize(f.Header)] = f.Field
		aliases[normalize(f.Field)] = f.Field
	}

	columns := map[string]string{}
	for _, h := range data.Headers {
		if field, ok := aliases[normalize(h)]; ok {
			if _, dup := columns[field]; !dup {
				columns[field] = h
			}
		}
	}
	if _, ok := columns[types.FieldReferenceNumber]; !ok {
		return nil, fmt.Errorf("no %q column in CSV headers", referenceHeader)
	}

	items := make([]types.LineItem, 0, len(data.Rows))
	for i, row := range data.Rows {
		var item types.LineItem
		for field, header := range columns {
			item.SetField(field, row[header])
		}
		if item.ReferenceNumber == "" {
			return nil, fmt.Errorf("row %d: reference number is empty", data.RowNumbers[i])
		}
		items = append(items, item)
	}
	return items, nil
}

// LoadLineItems parses the CSV file at path into line items.
func LoadLineItems(path string, settings config.CSVSettings, referenceHeader string, fields []types.FieldHeader) ([]types.LineItem, error) {
	data, err := ParseFile(path, settings)
	if err != nil {
		return nil, err
	}
	return LineItems(data, referenceHeader, fields)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
