// =============================================================================
// Transmittal Log - Row Matcher
// =============================================================================
//
// The matcher answers "which rows of source S carry reference number R?".
//
// SEARCH PIPELINE:
//   1. Trim the inputs; an empty reference or source means nothing to search
//   2. Resolve the source through the registry
//   3. Open the source workbook
//   4. Choose tabs: the registry's allowed tabs that exist, or every tab
//   5. Per tab, resolve the header row into a TabSchema once
//   6. Compare every data row's reference cell with the query
//   7. Concatenate matches in tab order
//
// Any read failure aborts the whole search; no partial results are returned.
//
// =============================================================================

package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/internal/xlsxparser"
	"go.uber.org/zap"
)

// Registry resolves source ids.
type Registry interface {
	Resolve(ctx context.Context, sourceID string) (types.SourceEntry, error)
}

// WorkbookOpener opens the workbook behind a source id.
type WorkbookOpener interface {
	Open(sourceID string) (*xlsxparser.Workbook, error)
}

// Policy controls how the matcher treats heterogeneous tabs.
type Policy struct {
	// HeaderRow is the one-based header row of every searchable tab.
	HeaderRow int

	// ReferenceHeader is the header text of the reference-number column.
	ReferenceHeader string

	// Columns are the business columns copied into each match.
	Columns []types.FieldHeader

	// SkipTabsWithoutReference skips tabs lacking the reference header.
	// When false such a tab fails the search.
	SkipTabsWithoutReference bool

	// AllowMissingColumns blanks fields whose header is absent. When false a
	// tab missing any business header fails the search.
	AllowMissingColumns bool
}

// DefaultPolicy returns the lenient policy: header on row 5, tabs without a
// reference column skipped, missing business columns left blank.
func DefaultPolicy() Policy {
	return Policy{
		HeaderRow:                5,
		ReferenceHeader:          types.DefaultReferenceHeader,
		Columns:                  types.DefaultFieldHeaders(),
		SkipTabsWithoutReference: true,
		AllowMissingColumns:      true,
	}
}

// Matcher searches source workbooks for reference numbers.
type Matcher struct {
	registry Registry
	opener   WorkbookOpener
	policy   Policy
	logger   *zap.Logger
}

// New creates a matcher.
func New(registry Registry, opener WorkbookOpener, policy Policy, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.HeaderRow < 1 {
		policy.HeaderRow = DefaultPolicy().HeaderRow
	}
	if policy.ReferenceHeader == "" {
		policy.ReferenceHeader = types.DefaultReferenceHeader
	}
	return &Matcher{registry: registry, opener: opener, policy: policy, logger: logger}
}

// Search returns every row of the source whose reference cell equals
// referenceNumber after trimming. Matching is exact and case-sensitive.
//
// PARAMETERS:
//   - referenceNumber: The business key typed by the user.
//   - sourceID: The registry id of the source to search.
//
// RETURNS:
//   - The matched items in tab order, then row order. Empty input yields an
//     empty result.
//   - UnknownSource, NoMatchingTabs, ExternalSourceError or ConfigError.
func (m *Matcher) Search(ctx context.Context, referenceNumber, sourceID string) ([]types.MatchedItem, error) {
	query := strings.TrimSpace(referenceNumber)
	sourceID = strings.TrimSpace(sourceID)
	if query == "" || sourceID == "" {
		return nil, nil
	}

	// STEP 1: Resolve the source.
	entry, err := m.registry.Resolve(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	// STEP 2: Open the workbook.
	wb, err := m.opener.Open(entry.ID)
	if err != nil {
		return nil, apperr.ExternalSource(entry.ID, err)
	}
	defer wb.Close()

	// STEP 3: Choose the tabs.
	tabs, err := m.tabsToSearch(wb, entry)
	if err != nil {
		return nil, err
	}

	// STEP 4: Scan each tab.
	var matches []types.MatchedItem
	for _, tab := range tabs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := m.searchTab(wb, tab, query)
		if err != nil {
			return nil, err
		}
		matches = append(matches, found...)
	}

	m.logger.Debug("search complete",
		zap.String("source", entry.ID),
		zap.String("reference", query),
		zap.Int("tabs", len(tabs)),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}

// tabsToSearch returns the allowed tabs that exist, in registry order, or
// every tab when the entry does not restrict them.
func (m *Matcher) tabsToSearch(wb *xlsxparser.Workbook, entry types.SourceEntry) ([]string, error) {
	if len(entry.AllowedTabs) == 0 {
		return wb.Sheets(), nil
	}

	var tabs []string
	for _, name := range entry.AllowedTabs {
		if wb.HasSheet(name) {
			tabs = append(tabs, name)
			continue
		}
		m.logger.Debug("allowed tab not in workbook", zap.String("source", entry.ID), zap.String("tab", name))
	}
	if len(tabs) == 0 {
		return nil, apperr.NoMatchingTabs(entry.ID)
	}
	return tabs, nil
}

// searchTab scans one tab. Reference cells are compared in their stored form
// so numeric references are not subject to display formats; the other fields
// are read as displayed.
func (m *Matcher) searchTab(wb *xlsxparser.Workbook, tab, query string) ([]types.MatchedItem, error) {
	raw, err := wb.RawRows(tab)
	if err != nil {
		return nil, apperr.ExternalSource(tab, err)
	}

	headerIdx := m.policy.HeaderRow - 1
	var header []string
	if headerIdx < len(raw) {
		header = raw[headerIdx]
	}

	schema := xlsxparser.ResolveSchema(header, m.policy.ReferenceHeader, m.policy.Columns)
	if !schema.HasReference() {
		if m.policy.SkipTabsWithoutReference {
			m.logger.Debug("tab skipped, no reference column", zap.String("tab", tab))
			return nil, nil
		}
		return nil, apperr.ExternalSource(tab, fmt.Errorf("header %q not found on row %d", m.policy.ReferenceHeader, m.policy.HeaderRow))
	}
	if !m.policy.AllowMissingColumns && len(schema.Missing) > 0 {
		return nil, apperr.ExternalSource(tab, fmt.Errorf("missing headers: %s", strings.Join(schema.Missing, ", ")))
	}

	var hits []int
	for i := headerIdx + 1; i < len(raw); i++ {
		if xlsxparser.Cell(raw[i], schema.Reference) == query {
			hits = append(hits, i)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	display, err := wb.Rows(tab)
	if err != nil {
		return nil, apperr.ExternalSource(tab, err)
	}

	items := make([]types.MatchedItem, 0, len(hits))
	for _, i := range hits {
		var row []string
		if i < len(display) {
			row = display[i]
		}
		item := types.MatchedItem{ReferenceNumber: query}
		for field, col := range schema.Fields {
			item.SetField(field, xlsxparser.Cell(row, col))
		}
		items = append(items, item)
	}
	return items, nil
}
