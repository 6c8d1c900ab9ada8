// =============================================================================
// Transmittal Log - Source Registry Reader
// =============================================================================
//
// The registry is a small workbook tab listing the external sources a user
// may search. It is read in full on every call and never cached, so edits
// made by an operator take effect on the next lookup.
//
// REGISTRY STRUCTURE (positions configurable):
//   | Column A  | Column B      | Column C                  |
//   |-----------|---------------|---------------------------|
//   | Source ID | Label         | Allowed Tabs              |
//   | payables  | AP Register   | 2025, 2026                |
//   | leases    | Lease Tracker |                           |  <- all tabs
//
// =============================================================================

package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/internal/xlsxparser"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Columns locates the registry fields. Indices are zero-based (A=0).
type Columns struct {
	ID        int
	Label     int
	Tabs      int
	HeaderRow int // one-based; data starts on the next row
}

// DefaultColumns returns the A/B/C layout with the header on row 1.
func DefaultColumns() Columns {
	return Columns{ID: 0, Label: 1, Tabs: 2, HeaderRow: 1}
}

// Reader reads the source registry.
type Reader struct {
	path    string
	sheet   string
	columns Columns
	logger  *zap.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithColumns overrides the column layout.
func WithColumns(c Columns) Option {
	return func(r *Reader) { r.columns = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReader returns a reader for sheet of the workbook at path. An empty
// sheet name selects the first tab.
func NewReader(path, sheet string, opts ...Option) *Reader {
	r := &Reader{
		path:    path,
		sheet:   sheet,
		columns: DefaultColumns(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListSources returns every registry entry in row order.
func (r *Reader) ListSources(ctx context.Context) ([]types.SourceEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wb, err := xlsxparser.OpenWorkbook(r.path)
	if err != nil {
		return nil, apperr.Config(r.path, err)
	}
	defer wb.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := wb.Sheets()
		if len(sheets) == 0 {
			return nil, apperr.Config(r.path, errors.New("registry workbook has no sheets"))
		}
		sheet = sheets[0]
	}
	if !wb.HasSheet(sheet) {
		return nil, apperr.Config(r.path, errors.New("registry sheet "+sheet+" not found"))
	}

	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, apperr.Config(r.path, err)
	}

	var entries []types.SourceEntry
	for i := r.columns.HeaderRow; i < len(rows); i++ {
		row := rows[i]
		id := xlsxparser.Cell(row, r.columns.ID)
		if id == "" {
			continue
		}
		entries = append(entries, types.SourceEntry{
			ID:          id,
			Label:       xlsxparser.Cell(row, r.columns.Label),
			AllowedTabs: xlsxparser.SplitList(xlsxparser.Cell(row, r.columns.Tabs)),
		})
	}

	r.logger.Debug("registry read", zap.String("path", r.path), zap.Int("sources", len(entries)))
	return entries, nil
}

// Resolve returns the entry whose id equals sourceID after trimming. The
// comparison is case-sensitive. A missing id is an UnknownSource error.
func (r *Reader) Resolve(ctx context.Context, sourceID string) (types.SourceEntry, error) {
	id := strings.TrimSpace(sourceID)

	entries, err := r.ListSources(ctx)
	if err != nil {
		return types.SourceEntry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return types.SourceEntry{}, apperr.UnknownSource(id)
}

// Exists reports whether the registry workbook is present.
func (r *Reader) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// Init writes an empty registry workbook with a header row laid out per the
// reader's columns. An existing workbook is an error unless overwrite is set.
func (r *Reader) Init(overwrite bool) error {
	if !overwrite && r.Exists() {
		return fmt.Errorf("registry workbook %s already exists", r.path)
	}

	sheet := r.sheet
	if sheet == "" {
		sheet = "Sources"
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name registry sheet: %w", err)
	}

	headers := map[int]string{
		r.columns.ID:    "Source ID",
		r.columns.Label: "Label",
		r.columns.Tabs:  "Allowed Tabs",
	}
	for col, text := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, r.columns.HeaderRow)
		if err != nil {
			return fmt.Errorf("failed to address registry header: %w", err)
		}
		if err := f.SetCellStr(sheet, cell, text); err != nil {
			return fmt.Errorf("failed to write registry header: %w", err)
		}
	}
	if err := f.SaveAs(r.path); err != nil {
		return fmt.Errorf("failed to save registry workbook: %w", err)
	}
	return nil
}
