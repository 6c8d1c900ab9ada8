// =============================================================================
// Transmittal Log - XLSX Workbook Access
// =============================================================================
//
// This module wraps excelize for the read side of the application: opening
// source and registry workbooks, listing tabs, reading rows and resolving a
// tab's header row into an explicit column map.
//
// SOURCE TAB STRUCTURE:
//   Rows 1-4 are free-form (titles, notes). Row 5 holds the headers; data
//   starts on row 6. Column order is irrelevant, columns are found by header
//   text.
//
//   | ... | RFP/ PEF # | Supplier | Amount | Document Details | ... |
//   |-----|------------|----------|--------|------------------|-----|
//   |     | 123        | Acme     | 1,500  | Invoice 77       |     |
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// WORKBOOK
// =============================================================================

// Workbook is an open workbook.
type Workbook struct {
	path string
	f    *excelize.File
}

// OpenWorkbook opens the workbook at path.
//
// PARAMETERS:
//   - path: The path to the .xlsx file.
//
// RETURNS:
//   - The open workbook. Callers must Close it.
//   - An error if the file cannot be opened.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{path: path, f: f}, nil
}

// Path returns the workbook's file path.
func (w *Workbook) Path() string {
	return w.path
}

// Sheets returns the tab names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.f.GetSheetList()
}

// HasSheet reports whether a tab with exactly this name exists.
func (w *Workbook) HasSheet(name string) bool {
	for _, s := range w.f.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

// Rows returns every row of sheet with cell number formats applied.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", sheet, err)
	}
	return rows, nil
}

// RawRows returns every row of sheet with stored values, no number formats.
// Numeric reference numbers compare reliably in this form.
func (w *Workbook) RawRows(sheet string) ([][]string, error) {
	rows, err := w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read raw rows of %s: %w", sheet, err)
	}
	return rows, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// =============================================================================
// COLUMN MAP
// =============================================================================

// ColumnMap maps trimmed header text to a zero-based column index. When a
// header repeats, the leftmost column wins.
type ColumnMap map[string]int

// ResolveColumns builds the column map for a header row.
func ResolveColumns(header []string) ColumnMap {
	m := make(ColumnMap, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, seen := m[h]; !seen {
			m[h] = i
		}
	}
	return m
}

// Index returns the column index of header.
func (m ColumnMap) Index(header string) (int, bool) {
	i, ok := m[strings.TrimSpace(header)]
	return i, ok
}

// =============================================================================
// TAB SCHEMA
// =============================================================================

// TabSchema is a tab's header row resolved against the expected columns.
type TabSchema struct {
	// Reference is the column of the reference-number header, -1 if absent.
	Reference int

	// Fields maps item field keys to columns. Fields whose header is absent
	// are not present.
	Fields map[string]int

	// Missing lists expected headers that the tab lacks.
	Missing []string
}

// HasReference reports whether the tab carries the reference-number column.
func (s TabSchema) HasReference() bool {
	return s.Reference >= 0
}

// ResolveSchema resolves a header row against the reference header and the
// expected business columns.
//
// PARAMETERS:
//   - header: The header row cells.
//   - referenceHeader: Header text of the reference-number column.
//   - fields: The business columns to locate.
//
// RETURNS:
//   - The resolved schema. Absent columns are listed in Missing.
func ResolveSchema(header []string, referenceHeader string, fields []types.FieldHeader) TabSchema {
	cols := ResolveColumns(header)
	schema := TabSchema{Reference: -1, Fields: make(map[string]int, len(fields))}

	if i, ok := cols.Index(referenceHeader); ok {
		schema.Reference = i
	} else {
		schema.Missing = append(schema.Missing, referenceHeader)
	}
	for _, fh := range fields {
		if i, ok := cols.Index(fh.Header); ok {
			schema.Fields[fh.Field] = i
		} else {
			schema.Missing = append(schema.Missing, fh.Header)
		}
	}
	return schema
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Cell returns the trimmed value at index, or "" past the end of the row.
func Cell(row []string, index int) string {
	if index >= 0 && index < len(row) {
		return strings.TrimSpace(row[index])
	}
	return ""
}

// IsRowEmpty checks if a row contains only empty cells.
func IsRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// SplitList splits a comma-separated cell, trimming entries and dropping
// empty ones.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
