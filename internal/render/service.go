// =============================================================================
// Transmittal Log - Document Renderer
// =============================================================================
//
// The renderer produces the printable transmittal for a submission:
//
//   1. Resolve the letterhead from the sender's department code
//   2. Execute the HTML template (also served as the print preview)
//   3. Print the HTML to PDF
//   4. Store the PDF under <prefix>/<YYYY>/<MM>/<name> and return its URL
//
// =============================================================================

package render

import (
	"context"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/pkg/docstore"
	"go.uber.org/zap"
)

// Options configures a Service. Zero values take defaults.
type Options struct {
	// KeyPrefix is the top-level directory of stored documents.
	KeyPrefix string

	// NameFormat is a docstore.GenerateName format.
	NameFormat string

	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// Service renders and stores transmittal documents.
type Service struct {
	pdf         PDFRenderer
	store       docstore.Store
	letterheads *Letterheads
	opts        Options
}

// NewService creates a Service.
func NewService(pdf PDFRenderer, store docstore.Store, letterheads *Letterheads, opts Options) *Service {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "transmittals"
	}
	if opts.NameFormat == "" {
		opts.NameFormat = docstore.DefaultNameFormat
	}
	if opts.Location == nil {
		opts.Location = time.FixedZone("UTC+8", 8*60*60)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{pdf: pdf, store: store, letterheads: letterheads, opts: opts}
}

// Preview returns the HTML of the transmittal document.
func (s *Service) Preview(_ context.Context, sub types.Submission) (string, error) {
	return HTML(NewDocument(sub, s.letterheads.Resolve(sub.FromDepartment)))
}

// Render prints and stores the transmittal document and returns its URL.
func (s *Service) Render(ctx context.Context, sub types.Submission) (string, error) {
	html, err := s.Preview(ctx, sub)
	if err != nil {
		return "", err
	}

	pdf, err := s.pdf.PrintPDF(ctx, html)
	if err != nil {
		return "", err
	}

	now := s.opts.Now().In(s.opts.Location)
	name := docstore.GenerateName(s.opts.NameFormat, now, map[string]string{
		"transmittal": sub.TransmittalNo,
		"dept":        departmentKey(sub.FromDepartment),
	})
	key := docstore.DatedKey(s.opts.KeyPrefix, now, name)

	url, err := s.store.Put(ctx, key, pdf, docstore.ContentTypePDF)
	if err != nil {
		return "", NewError(ErrCodeStorageFailed, "failed to store document "+key, err)
	}

	s.opts.Logger.Info("document stored",
		zap.String("transmittal_no", sub.TransmittalNo),
		zap.String("key", key),
		zap.Int("bytes", len(pdf)),
	)
	return url, nil
}
