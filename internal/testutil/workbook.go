// Package testutil builds workbook fixtures for tests.
package testutil

import (
	"testing"

	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/xuri/excelize/v2"
)

// Sheet is one tab of a fixture workbook. Rows[i] is written to row i+1; nil
// rows are left blank.
type Sheet struct {
	Name string
	Rows [][]any
}

// WriteWorkbook writes sheets to path in order.
func WriteWorkbook(t testing.TB, path string, sheets ...Sheet) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			t.Fatalf("new sheet %s: %v", sh.Name, err)
		}
		for r, row := range sh.Rows {
			if row == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			values := row
			if err := f.SetSheetRow(sh.Name, cell, &values); err != nil {
				t.Fatalf("write row %d of %s: %v", r+1, sh.Name, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

// SourceHeader returns the reference header followed by the ten default
// business headers.
func SourceHeader() []any {
	h := []any{types.DefaultReferenceHeader}
	for _, fh := range types.DefaultFieldHeaders() {
		h = append(h, fh.Header)
	}
	return h
}

// SourceTab builds a tab with a title in row 1, header in row 5 and data from
// row 6.
func SourceTab(name string, header []any, data ...[]any) Sheet {
	rows := [][]any{{name + " register"}, nil, nil, nil, header}
	rows = append(rows, data...)
	return Sheet{Name: name, Rows: rows}
}

// SourceRow builds a data row for SourceHeader with the given reference and a
// supplier/amount.
func SourceRow(ref any, supplier, amount string) []any {
	return []any{ref, "Details " + supplier, supplier, "Payor", "Tower 1", "Makati", "Retail",
		"Cleaning", "Oct 2026", "Monthly service", amount}
}

// WriteRegistry writes a registry workbook with a header row and one row per
// entry. AllowedTabs are joined with ", ".
func WriteRegistry(t testing.TB, path string, entries ...types.SourceEntry) {
	t.Helper()
	rows := [][]any{{"Source ID", "Label", "Allowed Tabs"}}
	for _, e := range entries {
		tabs := ""
		for i, tab := range e.AllowedTabs {
			if i > 0 {
				tabs += ", "
			}
			tabs += tab
		}
		rows = append(rows, []any{e.ID, e.Label, tabs})
	}
	WriteWorkbook(t, path, Sheet{Name: "Sources", Rows: rows})
}

// WriteLedger writes an empty central log workbook with its header row.
func WriteLedger(t testing.TB, path string) {
	t.Helper()
	header := make([]any, 0, types.LogColumnCount)
	for _, h := range types.LogHeaders() {
		header = append(header, h)
	}
	WriteWorkbook(t, path, Sheet{Name: "Log", Rows: [][]any{header}})
}
