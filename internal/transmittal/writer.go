// =============================================================================
// Transmittal Log - Transmittal Writer
// =============================================================================
//
// The writer turns one submitted form into rows of the central log and asks
// the document renderer for the printable transmittal.
//
// APPEND PIPELINE:
//   1. Reject a submission without line items
//   2. Normalize and validate the submission
//   3. Acquire the log lock (shared with the sequence allocator)
//   4. Reject a transmittal number that is already logged
//   5. Build one row per item with a shared capture timestamp
//   6. Append the rows contiguously in one save
//   7. Render the document
//   8. Record the document URL on exactly the appended rows
//
// A render failure after step 6 leaves the rows in place with the pending
// marker in the document-ref column; Rerender fills them in later.
//
// =============================================================================

package transmittal

import (
	"context"
	"fmt"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/ledger"
	"github.com/ginjaninja78/transmittal-log/internal/lock"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/internal/validation"
	"go.uber.org/zap"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// DocumentRenderer produces the printable transmittal and returns where it
// can be fetched.
type DocumentRenderer interface {
	Render(ctx context.Context, s types.Submission) (string, error)
}

// Log is the subset of the central log the writer needs.
type Log interface {
	PendingMarker() string
	Contains(ctx context.Context, transmittalNo string) (bool, error)
	Append(ctx context.Context, rows []types.LogRow) (int, error)
	Entries(ctx context.Context, transmittalNo string) ([]ledger.Entry, error)
	PendingTransmittals(ctx context.Context) ([]ledger.Pending, error)
	SetDocumentRef(ctx context.Context, transmittalNo string, rows []int, ref string) error
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result is the outcome of an append or rerender.
type Result struct {
	// TransmittalNo is the number the rows were recorded under.
	TransmittalNo string `json:"transmittal_no"`

	// FirstRow is the one-based row of the first written item.
	FirstRow int `json:"first_row"`

	// RowCount is the number of rows written.
	RowCount int `json:"row_count"`

	// Timestamp is the capture time shared by every row.
	Timestamp string `json:"timestamp"`

	// DocumentURL is empty while the document is pending.
	DocumentURL string `json:"document_url,omitempty"`

	// Pending is true when the rows still carry the pending marker.
	Pending bool `json:"pending"`

	// Message is a human-readable summary naming the transmittal number.
	Message string `json:"message"`
}

// =============================================================================
// WRITER
// =============================================================================

// Options configures a Writer. Zero values take defaults.
type Options struct {
	LockKey     string
	LockTimeout time.Duration
	Location    *time.Location
	Now         func() time.Time
	Validator   *validation.Validator
	Logger      *zap.Logger
}

// Writer appends submissions to the central log.
type Writer struct {
	log      Log
	locker   lock.Locker
	renderer DocumentRenderer
	opts     Options
}

// NewWriter creates a writer.
func NewWriter(log Log, locker lock.Locker, renderer DocumentRenderer, opts Options) *Writer {
	if opts.LockKey == "" {
		opts.LockKey = "transmittal-log"
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = lock.DefaultTimeout
	}
	if opts.Location == nil {
		opts.Location = time.FixedZone("UTC+8", 8*60*60)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Validator == nil {
		opts.Validator = validation.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Writer{log: log, locker: locker, renderer: renderer, opts: opts}
}

// Append records a submission.
//
// PARAMETERS:
//   - s: The submission. Its transmittal number should come from the
//     sequence allocator.
//
// RETURNS:
//   - The result, also when rendering failed after the rows were written
//     (Pending is then true and the error is DOCUMENT_GENERATION_FAILED).
//   - EMPTY_SUBMISSION, INVALID_SUBMISSION, BUSY or DUPLICATE_TRANSMITTAL
//     without any write.
func (w *Writer) Append(ctx context.Context, s types.Submission) (*Result, error) {
	logger := w.opts.Logger.With(zap.String("transmittal_no", s.TransmittalNo))

	// =========================================================================
	// STEP 1: REJECT EMPTY SUBMISSIONS
	// =========================================================================

	if len(s.Items) == 0 {
		return nil, apperr.EmptySubmission(s.TransmittalNo)
	}

	// =========================================================================
	// STEP 2: NORMALIZE AND VALIDATE
	// =========================================================================

	s = Normalize(s)
	if err := w.opts.Validator.Validate(&s); err != nil {
		logger.Warn("submission rejected", zap.Error(err))
		return nil, err
	}

	// =========================================================================
	// STEP 3: ACQUIRE THE LOG LOCK
	// =========================================================================

	release, err := w.locker.Acquire(ctx, w.opts.LockKey, w.opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	// =========================================================================
	// STEP 4: REJECT DUPLICATE NUMBERS
	// =========================================================================

	exists, err := w.log.Contains(ctx, s.TransmittalNo)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Warn("duplicate transmittal number")
		return nil, apperr.DuplicateTransmittal(s.TransmittalNo)
	}

	// =========================================================================
	// STEP 5: BUILD ROWS
	// =========================================================================

	timestamp := w.opts.Now().In(w.opts.Location).Format(types.TimestampLayout)
	rows := make([]types.LogRow, 0, len(s.Items))
	for _, item := range s.Items {
		rows = append(rows, types.NewLogRow(s, item, timestamp, w.log.PendingMarker()))
	}

	// =========================================================================
	// STEP 6: APPEND
	// =========================================================================

	first, err := w.log.Append(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to append transmittal %s: %w", s.TransmittalNo, err)
	}

	result := &Result{
		TransmittalNo: s.TransmittalNo,
		FirstRow:      first,
		RowCount:      len(rows),
		Timestamp:     timestamp,
		Pending:       true,
	}

	// =========================================================================
	// STEP 7-8: RENDER AND RECORD THE DOCUMENT
	// =========================================================================

	if err := w.attachDocument(ctx, s, ledger.RowRange(first, len(rows)), result); err != nil {
		logger.Error("document not attached", zap.Int("first_row", first), zap.Error(err))
		return result, err
	}

	logger.Info("transmittal recorded",
		zap.Int("first_row", first),
		zap.Int("rows", len(rows)),
		zap.String("document_url", result.DocumentURL),
	)
	return result, nil
}

// Rerender renders an already logged transmittal again from its rows and
// records the new document URL on all of them.
func (w *Writer) Rerender(ctx context.Context, transmittalNo string) (*Result, error) {
	release, err := w.locker.Acquire(ctx, w.opts.LockKey, w.opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := w.log.Entries(ctx, transmittalNo)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperr.TransmittalNotFound(transmittalNo)
	}

	s, rows := submissionFromEntries(entries)
	result := &Result{
		TransmittalNo: s.TransmittalNo,
		FirstRow:      rows[0],
		RowCount:      len(rows),
		Timestamp:     entries[0].Timestamp,
		Pending:       true,
	}

	if err := w.attachDocument(ctx, s, rows, result); err != nil {
		w.opts.Logger.Error("rerender failed",
			zap.String("transmittal_no", transmittalNo),
			zap.Error(err),
		)
		return result, err
	}

	w.opts.Logger.Info("transmittal rerendered",
		zap.String("transmittal_no", transmittalNo),
		zap.String("document_url", result.DocumentURL),
	)
	return result, nil
}

// Pending lists transmittal numbers whose rows still carry the pending marker.
func (w *Writer) Pending(ctx context.Context) ([]string, error) {
	pending, err := w.log.PendingTransmittals(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pending))
	for _, p := range pending {
		out = append(out, p.TransmittalNo)
	}
	return out, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// attachDocument renders s and writes the URL to rows, filling in result.
func (w *Writer) attachDocument(ctx context.Context, s types.Submission, rows []int, result *Result) error {
	url, err := w.renderer.Render(ctx, s)
	if err != nil {
		result.Message = fmt.Sprintf("Transmittal %s saved (%d item(s)); document generation failed, rows marked %s",
			s.TransmittalNo, len(rows), w.log.PendingMarker())
		return apperr.DocumentGenerationFailed(s.TransmittalNo, err)
	}
	result.DocumentURL = url

	if err := w.log.SetDocumentRef(ctx, s.TransmittalNo, rows, url); err != nil {
		result.Message = fmt.Sprintf("Transmittal %s saved (%d item(s)); document created but not linked",
			s.TransmittalNo, len(rows))
		return fmt.Errorf("failed to record document for %s: %w", s.TransmittalNo, err)
	}

	result.Pending = false
	result.Message = fmt.Sprintf("Transmittal %s saved (%d item(s))", s.TransmittalNo, len(rows))
	return nil
}

// submissionFromEntries rebuilds the submission and row numbers of one
// transmittal from its log entries.
func submissionFromEntries(entries []ledger.Entry) (types.Submission, []int) {
	head := entries[0]
	s := types.Submission{
		TransmittalNo:   head.TransmittalNo,
		FromName:        head.FromName,
		FromDepartment:  head.FromDepartment,
		DateTransmitted: head.DateTransmitted,
		ToName:          head.ToName,
		ToDepartment:    head.ToDepartment,
		ToAddress:       head.ToAddress,
		Items:           make([]types.LineItem, 0, len(entries)),
	}
	rows := make([]int, 0, len(entries))
	for _, e := range entries {
		s.Items = append(s.Items, e.Item)
		rows = append(rows, e.Row)
	}
	return s, rows
}
