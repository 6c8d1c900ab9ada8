// =============================================================================
// Transmittal Log - Central Log Store
// =============================================================================
//
// The central log is one tab of one workbook. It is append-only: rows are
// added after the last non-empty row in columns A-S, and the only in-place
// update is the deferred document reference in column T.
//
// Callers coordinate through the lock package; the ledger additionally
// serializes its own file I/O within the process because a workbook is
// rewritten as a whole on every save.
//
// SAVE STRATEGY:
//   The workbook is written to a unique <name>.tmp-*.xlsx beside the original
//   and renamed over it, so a crash mid-save leaves the previous version intact.
//   Cross-process exclusion is the caller's lock (lock.FileLocker or
//   lock.RedisLocker); the mutex below only covers this process.
//
// =============================================================================

package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/internal/xlsxparser"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Entry is a log row with its one-based row number.
type Entry struct {
	Row int
	types.LogRow
}

// Pending groups the rows of one transmittal still carrying the pending
// marker.
type Pending struct {
	TransmittalNo string
	Entries       []Entry
}

// Ledger reads and appends to the central log.
type Ledger struct {
	path      string
	sheet     string
	headerRow int
	pending   string
	logger    *zap.Logger
	mu        sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithHeaderRow sets the one-based header row.
func WithHeaderRow(row int) Option {
	return func(l *Ledger) {
		if row > 0 {
			l.headerRow = row
		}
	}
}

// WithPendingMarker sets the document-ref placeholder.
func WithPendingMarker(marker string) Option {
	return func(l *Ledger) {
		if marker != "" {
			l.pending = marker
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns a ledger for sheet of the workbook at path.
func New(path, sheet string, opts ...Option) *Ledger {
	l := &Ledger{
		path:      path,
		sheet:     sheet,
		headerRow: 1,
		pending:   types.PendingDocumentRef,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PendingMarker returns the document-ref placeholder.
func (l *Ledger) PendingMarker() string {
	return l.pending
}

// =============================================================================
// READING
// =============================================================================

// TransmittalNumbers returns every transmittal number recorded in column B.
func (l *Ledger) TransmittalNumbers(ctx context.Context) (map[string]struct{}, error) {
	rows, err := l.readRows(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(rows))
	for i := l.headerRow; i < len(rows); i++ {
		if id := xlsxparser.Cell(rows[i], types.TransmittalNoColumn-1); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// Contains reports whether transmittalNo is already recorded.
func (l *Ledger) Contains(ctx context.Context, transmittalNo string) (bool, error) {
	ids, err := l.TransmittalNumbers(ctx)
	if err != nil {
		return false, err
	}
	_, ok := ids[strings.TrimSpace(transmittalNo)]
	return ok, nil
}

// LastRow returns the one-based number of the last row with a non-empty cell
// in the primary range (A-S), or 0 for an empty sheet.
func (l *Ledger) LastRow(ctx context.Context) (int, error) {
	rows, err := l.readRows(ctx)
	if err != nil {
		return 0, err
	}
	return lastPrimaryRow(rows), nil
}

// Entries returns the rows recorded for transmittalNo in row order.
func (l *Ledger) Entries(ctx context.Context, transmittalNo string) ([]Entry, error) {
	rows, err := l.readRows(ctx)
	if err != nil {
		return nil, err
	}
	no := strings.TrimSpace(transmittalNo)

	var out []Entry
	for i := l.headerRow; i < len(rows); i++ {
		if xlsxparser.Cell(rows[i], types.TransmittalNoColumn-1) == no {
			out = append(out, Entry{Row: i + 1, LogRow: types.LogRowFromCells(rows[i])})
		}
	}
	return out, nil
}

// PendingTransmittals returns transmittals with rows still carrying the
// pending marker, in order of first appearance.
func (l *Ledger) PendingTransmittals(ctx context.Context) ([]Pending, error) {
	rows, err := l.readRows(ctx)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	var out []Pending
	for i := l.headerRow; i < len(rows); i++ {
		if xlsxparser.Cell(rows[i], types.DocumentRefColumn-1) != l.pending {
			continue
		}
		row := types.LogRowFromCells(rows[i])
		pos, ok := index[row.TransmittalNo]
		if !ok {
			pos = len(out)
			index[row.TransmittalNo] = pos
			out = append(out, Pending{TransmittalNo: row.TransmittalNo})
		}
		out[pos].Entries = append(out[pos].Entries, Entry{Row: i + 1, LogRow: row})
	}
	return out, nil
}

// =============================================================================
// WRITING
// =============================================================================

// Append writes rows contiguously after the last non-empty primary row in a
// single save and returns the first row number written.
//
// PARAMETERS:
//   - rows: The rows to append, in order.
//
// RETURNS:
//   - The one-based row number of the first appended row.
//   - ConfigError if the log is missing, or a write error.
func (l *Ledger) Append(ctx context.Context, rows []types.LogRow) (int, error) {
	if len(rows) == 0 {
		return 0, errors.New("no rows to append")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	existing, err := f.GetRows(l.sheet)
	if err != nil {
		return 0, apperr.Config(l.path, err)
	}
	last := lastPrimaryRow(existing)
	if last < l.headerRow {
		last = l.headerRow
	}
	first := last + 1

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, first+i)
		if err != nil {
			return 0, fmt.Errorf("failed to address row %d: %w", first+i, err)
		}
		values := row.Cells()
		if err := f.SetSheetRow(l.sheet, cell, &values); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", first+i, err)
		}
	}

	if err := l.save(f); err != nil {
		return 0, err
	}

	l.logger.Info("log rows appended",
		zap.String("transmittal_no", rows[0].TransmittalNo),
		zap.Int("first_row", first),
		zap.Int("rows", len(rows)),
	)
	return first, nil
}

// RowRange returns the row numbers first..first+count-1.
func RowRange(first, count int) []int {
	rows := make([]int, count)
	for i := range rows {
		rows[i] = first + i
	}
	return rows
}

// SetDocumentRef writes ref into column T of the given rows. Every row must
// belong to transmittalNo.
func (l *Ledger) SetDocumentRef(ctx context.Context, transmittalNo string, rows []int, ref string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return err
	}
	defer f.Close()

	for _, r := range rows {
		idCell, err := excelize.CoordinatesToCellName(types.TransmittalNoColumn, r)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", r, err)
		}
		got, err := f.GetCellValue(l.sheet, idCell)
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", r, err)
		}
		if strings.TrimSpace(got) != transmittalNo {
			return fmt.Errorf("row %d belongs to %q, not %q", r, got, transmittalNo)
		}

		refCell, err := excelize.CoordinatesToCellName(types.DocumentRefColumn, r)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", r, err)
		}
		if err := f.SetCellValue(l.sheet, refCell, ref); err != nil {
			return fmt.Errorf("failed to write document ref on row %d: %w", r, err)
		}
	}

	if err := l.save(f); err != nil {
		return err
	}

	l.logger.Info("document ref recorded",
		zap.String("transmittal_no", transmittalNo),
		zap.Int("first_row", rows[0]),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// Init creates the log workbook with its header row. An existing workbook is
// an error unless overwrite is set.
func (l *Ledger) Init(overwrite bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !overwrite {
		if _, err := os.Stat(l.path); err == nil {
			return fmt.Errorf("log workbook %s already exists", l.path)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), l.sheet); err != nil {
		return fmt.Errorf("failed to name log sheet: %w", err)
	}
	header := make([]any, 0, types.LogColumnCount)
	for _, h := range types.LogHeaders() {
		header = append(header, h)
	}
	cell, err := excelize.CoordinatesToCellName(1, l.headerRow)
	if err != nil {
		return fmt.Errorf("failed to address header row: %w", err)
	}
	if err := f.SetSheetRow(l.sheet, cell, &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	return l.save(f)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (l *Ledger) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, apperr.Config(l.path, err)
	}
	if idx, err := f.GetSheetIndex(l.sheet); err != nil || idx < 0 {
		f.Close()
		return nil, apperr.Config(l.path, fmt.Errorf("log sheet %q not found", l.sheet))
	}
	return f, nil
}

func (l *Ledger) readRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(l.sheet)
	if err != nil {
		return nil, apperr.Config(l.path, err)
	}
	return rows, nil
}

func (l *Ledger) save(f *excelize.File) error {
	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(filepath.Base(l.path), ext)
	tmp, err := os.CreateTemp(filepath.Dir(l.path), base+".tmp-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temporary log workbook: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to create temporary log workbook: %w", err)
	}
	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save log workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save log workbook: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace log workbook: %w", err)
	}
	return nil
}

// lastPrimaryRow scans backwards for the last row with a non-empty cell in
// columns A-S.
func lastPrimaryRow(rows [][]string) int {
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) > types.PrimaryColumnCount {
			row = row[:types.PrimaryColumnCount]
		}
		if !xlsxparser.IsRowEmpty(row) {
			return i + 1
		}
	}
	return 0
}
