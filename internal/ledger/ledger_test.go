package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/testutil"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.xlsx")
	l := New(path, "Log", WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, l.Init(false))
	return l, path
}

func rowsFor(no string, refs ...string) []types.LogRow {
	s := types.Submission{TransmittalNo: no, FromName: "Ana", FromDepartment: "FIN", ToName: "Ben"}
	var rows []types.LogRow
	for _, ref := range refs {
		rows = append(rows, types.NewLogRow(s, types.LineItem{ReferenceNumber: ref, Amount: "10"}, "2026-10-18 09:00:00", types.PendingDocumentRef))
	}
	return rows
}

func TestLedger_InitAndEmpty(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	last, err := l.LastRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, last, "header row only")

	ids, err := l.TransmittalNumbers(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.Error(t, l.Init(false), "init refuses to overwrite")
	assert.NoError(t, l.Init(true))
}

func TestLedger_AppendContiguous(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	first, err := l.Append(ctx, rowsFor("20261018-1111", "A", "B"))
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	first, err = l.Append(ctx, rowsFor("20261018-2222", "C"))
	require.NoError(t, err)
	assert.Equal(t, 4, first)

	entries, err := l.Entries(ctx, "20261018-1111")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Row)
	assert.Equal(t, "A", entries[0].Item.ReferenceNumber)
	assert.Equal(t, "FIN", entries[1].FromDepartment)
	assert.Equal(t, types.PendingDocumentRef, entries[1].DocumentRef)

	ok, err := l.Contains(ctx, " 20261018-2222 ")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedger_SaveReplacesWorkbookInPlace(t *testing.T) {
	l, path := newLedger(t)
	ctx := context.Background()

	_, err := l.Append(ctx, rowsFor("20261018-1111", "A"))
	require.NoError(t, err)
	require.NoError(t, l.SetDocumentRef(ctx, "20261018-1111", []int{2}, "https://docs.example/1111.pdf"))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "log.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestLedger_AppendAfterLastPrimaryRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.xlsx")
	header := make([]any, 0, types.LogColumnCount)
	for _, h := range types.LogHeaders() {
		header = append(header, h)
	}
	onlyDocRef := make([]any, types.LogColumnCount)
	onlyDocRef[types.DocumentRefColumn-1] = "stray"

	testutil.WriteWorkbook(t, path, testutil.Sheet{Name: "Log", Rows: [][]any{
		header,
		{"ts", "20261001-1000"},
		nil,
		{"", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "late"},
		onlyDocRef,
	}})

	l := New(path, "Log")
	ctx := context.Background()

	last, err := l.LastRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, last, "column S counts, column T does not")

	first, err := l.Append(ctx, rowsFor("20261018-3333", "X"))
	require.NoError(t, err)
	assert.Equal(t, 5, first)
}

func TestLedger_SetDocumentRef(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	first, err := l.Append(ctx, rowsFor("20261018-1111", "A", "B"))
	require.NoError(t, err)
	_, err = l.Append(ctx, rowsFor("20261018-2222", "C"))
	require.NoError(t, err)

	pending, err := l.PendingTransmittals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "20261018-1111", pending[0].TransmittalNo)
	assert.Len(t, pending[0].Entries, 2)

	require.NoError(t, l.SetDocumentRef(ctx, "20261018-1111", RowRange(first, 2), "https://docs/a.pdf"))

	entries, err := l.Entries(ctx, "20261018-1111")
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "https://docs/a.pdf", e.DocumentRef)
	}

	pending, err = l.PendingTransmittals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "20261018-2222", pending[0].TransmittalNo)

	err = l.SetDocumentRef(ctx, "20261018-1111", []int{4}, "https://docs/wrong.pdf")
	assert.Error(t, err, "row 4 belongs to another transmittal")
}

func TestLedger_MissingWorkbookOrSheet(t *testing.T) {
	ctx := context.Background()

	l := New(filepath.Join(t.TempDir(), "none.xlsx"), "Log")
	_, err := l.TransmittalNumbers(ctx)
	assert.True(t, errors.Is(err, apperr.ErrConfig))
	_, err = l.Append(ctx, rowsFor("n", "r"))
	assert.True(t, errors.Is(err, apperr.ErrConfig))

	_, path := newLedger(t)
	l = New(path, "Other")
	_, err = l.LastRow(ctx)
	assert.True(t, errors.Is(err, apperr.ErrConfig))
}

func TestRowRange(t *testing.T) {
	assert.Equal(t, []int{5, 6, 7}, RowRange(5, 3))
	assert.Empty(t, RowRange(5, 0))
}
