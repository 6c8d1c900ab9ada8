package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/testutil"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.xlsx")
	testutil.WriteWorkbook(t, path, testutil.Sheet{Name: "Sources", Rows: [][]any{
		{"Source ID", "Label", "Allowed Tabs"},
		{"payables", "AP Register", "2025, 2026 ,,"},
		{"", "orphan label", "x"},
		{" leases ", "Lease Tracker"},
		nil,
		{"X", "Test", ""},
	}})
	return path
}

func TestReader_ListSources(t *testing.T) {
	r := NewReader(writeFixture(t), "Sources", WithLogger(zaptest.NewLogger(t)))

	got, err := r.ListSources(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.SourceEntry{
		{ID: "payables", Label: "AP Register", AllowedTabs: []string{"2025", "2026"}},
		{ID: "leases", Label: "Lease Tracker"},
		{ID: "X", Label: "Test"},
	}, got)
}

func TestReader_Resolve(t *testing.T) {
	r := NewReader(writeFixture(t), "")
	ctx := context.Background()

	t.Run("trimmed match", func(t *testing.T) {
		e, err := r.Resolve(ctx, "  leases ")
		require.NoError(t, err)
		assert.Equal(t, "Lease Tracker", e.Label)
		assert.Empty(t, e.AllowedTabs)
	})

	t.Run("case sensitive", func(t *testing.T) {
		_, err := r.Resolve(ctx, "x")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrUnknownSource))
	})

	t.Run("unknown names the id", func(t *testing.T) {
		_, err := r.Resolve(ctx, "nope")
		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "nope", appErr.Subject)
	})
}

func TestReader_ConfigErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing workbook", func(t *testing.T) {
		r := NewReader(filepath.Join(t.TempDir(), "missing.xlsx"), "Sources")
		_, err := r.ListSources(ctx)
		assert.True(t, errors.Is(err, apperr.ErrConfig))
		assert.False(t, r.Exists())
	})

	t.Run("missing sheet", func(t *testing.T) {
		r := NewReader(writeFixture(t), "Registry")
		_, err := r.Resolve(ctx, "payables")
		assert.True(t, errors.Is(err, apperr.ErrConfig))
	})
}

func TestReader_CustomColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.xlsx")
	testutil.WriteWorkbook(t, path, testutil.Sheet{Name: "Config", Rows: [][]any{
		{"Registry of sources"},
		{"Label", "Tabs", "ID"},
		{"AP", "Jan", "ap"},
	}})

	r := NewReader(path, "Config", WithColumns(Columns{ID: 2, Label: 0, Tabs: 1, HeaderRow: 2}))
	got, err := r.ListSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.SourceEntry{{ID: "ap", Label: "AP", AllowedTabs: []string{"Jan"}}}, got)
}

func TestReader_Init(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.xlsx")
	r := NewReader(path, "Sources")

	require.NoError(t, r.Init(false))
	assert.True(t, r.Exists())

	entries, err := r.ListSources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Error(t, r.Init(false))
	assert.NoError(t, r.Init(true))
}
