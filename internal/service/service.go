// =============================================================================
// Transmittal Log - Application Service
// =============================================================================
//
// Service is the single entry point used by the HTTP API and the CLI. It
// exposes the operations a transmittal form needs:
//
//   ListSources  sources to search in
//   Search       line items matching a reference number in one source
//   Allocate     a fresh transmittal number
//   Append       record a filled-in form
//   Preview      HTML of the transmittal document, nothing is written
//
// and the operator operations Pending and Rerender.
//
// =============================================================================

package service

import (
	"context"

	"github.com/ginjaninja78/transmittal-log/internal/transmittal"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"go.uber.org/zap"
)

// Registry lists configured sources.
type Registry interface {
	ListSources(ctx context.Context) ([]types.SourceEntry, error)
}

// Searcher finds line items by reference number.
type Searcher interface {
	Search(ctx context.Context, referenceNumber, sourceID string) ([]types.MatchedItem, error)
}

// Allocator hands out transmittal numbers.
type Allocator interface {
	Allocate(ctx context.Context) (string, error)
}

// Writer records submissions.
type Writer interface {
	Append(ctx context.Context, s types.Submission) (*transmittal.Result, error)
	Rerender(ctx context.Context, transmittalNo string) (*transmittal.Result, error)
	Pending(ctx context.Context) ([]string, error)
}

// Previewer renders the transmittal document as HTML.
type Previewer interface {
	Preview(ctx context.Context, s types.Submission) (string, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Registry  Registry
	Searcher  Searcher
	Allocator Allocator
	Writer    Writer
	Previewer Previewer
	Logger    *zap.Logger
}

// Service implements the transmittal form operations.
type Service struct {
	deps   Deps
	logger *zap.Logger
}

// New creates a Service.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, logger: logger}
}

// ListSources returns every registered source in registry order.
func (s *Service) ListSources(ctx context.Context) ([]types.SourceEntry, error) {
	return s.deps.Registry.ListSources(ctx)
}

// Search returns the line items of sourceID whose reference equals
// referenceNumber. An empty result is not an error.
func (s *Service) Search(ctx context.Context, referenceNumber, sourceID string) ([]types.MatchedItem, error) {
	items, err := s.deps.Searcher.Search(ctx, referenceNumber, sourceID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []types.MatchedItem{}
	}
	s.logger.Debug("search completed",
		zap.String("source", sourceID),
		zap.String("reference", referenceNumber),
		zap.Int("matches", len(items)),
	)
	return items, nil
}

// Allocate returns a new transmittal number.
func (s *Service) Allocate(ctx context.Context) (string, error) {
	return s.deps.Allocator.Allocate(ctx)
}

// Append records sub and renders its document.
func (s *Service) Append(ctx context.Context, sub types.Submission) (*transmittal.Result, error) {
	return s.deps.Writer.Append(ctx, sub)
}

// Preview returns the transmittal document for sub as HTML.
func (s *Service) Preview(ctx context.Context, sub types.Submission) (string, error) {
	return s.deps.Previewer.Preview(ctx, transmittal.Normalize(sub))
}

// Pending lists transmittals still waiting for their document.
func (s *Service) Pending(ctx context.Context) ([]string, error) {
	return s.deps.Writer.Pending(ctx)
}

// Rerender renders a logged transmittal again and records the new document.
func (s *Service) Rerender(ctx context.Context, transmittalNo string) (*transmittal.Result, error) {
	return s.deps.Writer.Rerender(ctx, transmittalNo)
}

// Reconcile rerenders every pending transmittal and returns the results in
// order. It stops at the first lock or log error; render failures are
// collected in the results and the loop continues.
func (s *Service) Reconcile(ctx context.Context) ([]ReconcileResult, error) {
	pending, err := s.Pending(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ReconcileResult, 0, len(pending))
	for _, no := range pending {
		res, err := s.Rerender(ctx, no)
		rr := ReconcileResult{TransmittalNo: no, Result: res}
		if err != nil {
			rr.Err = err
			if res == nil {
				results = append(results, rr)
				return results, err
			}
		}
		results = append(results, rr)
	}
	s.logger.Info("reconcile completed", zap.Int("pending", len(pending)))
	return results, nil
}

// ReconcileResult is the outcome for one pending transmittal.
type ReconcileResult struct {
	TransmittalNo string
	Result        *transmittal.Result
	Err           error
}
