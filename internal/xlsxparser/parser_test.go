package xlsxparser

import (
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/transmittal-log/internal/testutil"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveColumns(t *testing.T) {
	cols := ResolveColumns([]string{"", " Supplier ", "Amount", "Supplier"})

	i, ok := cols.Index("Supplier")
	require.True(t, ok)
	assert.Equal(t, 1, i, "leftmost duplicate wins")

	i, ok = cols.Index("Amount")
	require.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = cols.Index("supplier")
	assert.False(t, ok, "header lookup is case-sensitive")
}

func TestResolveSchema(t *testing.T) {
	t.Run("full header", func(t *testing.T) {
		header := []string{"Notes", "Amount", types.DefaultReferenceHeader, "Supplier"}
		schema := ResolveSchema(header, types.DefaultReferenceHeader, []types.FieldHeader{
			{Field: types.FieldSupplier, Header: "Supplier"},
			{Field: types.FieldAmount, Header: "Amount"},
		})

		assert.True(t, schema.HasReference())
		assert.Equal(t, 2, schema.Reference)
		assert.Equal(t, map[string]int{types.FieldSupplier: 3, types.FieldAmount: 1}, schema.Fields)
		assert.Empty(t, schema.Missing)
	})

	t.Run("missing reference and field", func(t *testing.T) {
		schema := ResolveSchema([]string{"Supplier"}, types.DefaultReferenceHeader, types.DefaultFieldHeaders())

		assert.False(t, schema.HasReference())
		assert.Contains(t, schema.Missing, types.DefaultReferenceHeader)
		assert.Contains(t, schema.Missing, "Amount")
		assert.NotContains(t, schema.Missing, "Supplier")
	})
}

func TestCellAndHelpers(t *testing.T) {
	row := []string{"  a ", "b"}
	assert.Equal(t, "a", Cell(row, 0))
	assert.Equal(t, "", Cell(row, 5))
	assert.Equal(t, "", Cell(row, -1))

	assert.True(t, IsRowEmpty([]string{"", "  "}))
	assert.False(t, IsRowEmpty([]string{"", "x"}))

	assert.Equal(t, []string{"A", "B C"}, SplitList(" A, ,B C ,"))
	assert.Nil(t, SplitList("  "))
}

func TestWorkbook_ReadsSheetsAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.xlsx")
	testutil.WriteWorkbook(t, path,
		testutil.Sheet{Name: "A", Rows: [][]any{{"x", 123}, {"y", 4.5}}},
		testutil.Sheet{Name: "B", Rows: [][]any{{"z"}}},
	)

	wb, err := OpenWorkbook(path)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{"A", "B"}, wb.Sheets())
	assert.True(t, wb.HasSheet("A"))
	assert.False(t, wb.HasSheet("a"))

	rows, err := wb.RawRows("A")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "123"}, {"y", "4.5"}}, rows)

	_, err = wb.Rows("missing")
	assert.Error(t, err)
}

func TestOpener_Path(t *testing.T) {
	o := NewOpener("/data/sources")

	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{id: "payables", want: filepath.Join("/data/sources", "payables.xlsx")},
		{id: " payables ", want: filepath.Join("/data/sources", "payables.xlsx")},
		{id: "book.xlsm", want: filepath.Join("/data/sources", "book.xlsm")},
		{id: "", wantErr: true},
		{id: "../etc/passwd", wantErr: true},
		{id: "a/b", wantErr: true},
		{id: `a\b`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := o.Path(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpener_OpenMissing(t *testing.T) {
	_, err := NewOpener(t.TempDir()).Open("nope")
	assert.Error(t, err)
}
