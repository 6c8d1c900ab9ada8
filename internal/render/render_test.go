package render

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/pkg/docstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePDF struct {
	html string
	err  error
}

func (f *fakePDF) PrintPDF(_ context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7 fake"), nil
}

func (f *fakePDF) Close() error { return nil }

func sample() types.Submission {
	return types.Submission{
		TransmittalNo:   "20261018-4821",
		FromName:        "Ana Cruz",
		FromDepartment:  "fin",
		DateTransmitted: "October 18, 2026",
		ToName:          "Ben Reyes",
		ToDepartment:    "AP",
		ToAddress:       "12 Ayala Ave",
		Items: []types.LineItem{
			{ReferenceNumber: "RFP-1", Supplier: "ACME <Corp>", Amount: "1,250.50"},
			{ReferenceNumber: "RFP-2", Amount: "₱ 749.50"},
			{ReferenceNumber: "RFP-3", Amount: "see memo"},
			{ReferenceNumber: "RFP-4"},
		},
	}
}

func letterheads() *Letterheads {
	return NewLetterheads(map[string]Letterhead{
		"default": {Title: "Head Office"},
		" Fin ":   {Title: "Finance Department", Address: "5F Tower 1", Phone: "8888-0000"},
	})
}

func TestLetterheads_Resolve(t *testing.T) {
	l := letterheads()
	assert.Equal(t, "Finance Department", l.Resolve("FIN").Title)
	assert.Equal(t, "Finance Department", l.Resolve(" fin").Title)
	assert.Equal(t, "Head Office", l.Resolve("HR").Title)
	assert.Equal(t, "Head Office", l.Resolve("").Title)

	var none *Letterheads
	assert.Equal(t, Letterhead{}, none.Resolve("FIN"))
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"1,250.50":  "1250.5",
		" 100 ":     "100",
		"₱ 749.50":  "749.5",
		"$12":       "12",
		"-3.25":     "-3.25",
	}
	for in, want := range cases {
		d, ok := ParseAmount(in)
		require.True(t, ok, in)
		assert.Equal(t, want, d.String(), in)
	}
	for _, in := range []string{"", "see memo", "1.2.3"} {
		_, ok := ParseAmount(in)
		assert.False(t, ok, in)
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0.00", FormatMoney(decimal.Zero))
	assert.Equal(t, "1,234.50", FormatMoney(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "-1,000,000.00", FormatMoney(decimal.RequireFromString("-1000000")))
}

func TestNewDocument_Totals(t *testing.T) {
	doc := NewDocument(sample(), Letterhead{})
	assert.Equal(t, "2000", doc.Total.String())
	assert.Equal(t, 1, doc.Unparsed, "blank amounts are not counted as unparsed")
	require.Len(t, doc.Items, 4)
	assert.Equal(t, 3, doc.Items[2].No)
	assert.False(t, doc.Items[2].Parsed)
}

func TestService_Preview(t *testing.T) {
	svc := NewService(&fakePDF{}, nil, letterheads(), Options{})

	html, err := svc.Preview(context.Background(), sample())
	require.NoError(t, err)
	assert.Contains(t, html, "Finance Department")
	assert.Contains(t, html, "20261018-4821")
	assert.Contains(t, html, "(FIN)")
	assert.Contains(t, html, "ACME &lt;Corp&gt;")
	assert.Contains(t, html, "2,000.00")
	assert.Contains(t, html, "see memo")
	assert.Contains(t, html, "excludes 1 unparsed")
}

func TestService_RenderStoresDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := docstore.NewFileStore(docstore.FSConfig{BaseDir: dir, BaseURL: "https://docs.example"})
	require.NoError(t, err)

	pdf := &fakePDF{}
	now := time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)
	svc := NewService(pdf, store, letterheads(), Options{
		Now:    func() time.Time { return now },
		Logger: zaptest.NewLogger(t),
	})

	url, err := svc.Render(context.Background(), sample())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://docs.example/transmittals/2026/10/20261018-4821_"), url)
	assert.True(t, strings.HasSuffix(url, ".pdf"))
	assert.Contains(t, pdf.html, "Finance Department")

	key := strings.TrimPrefix(url, "https://docs.example/")
	data, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(data))
}

func TestService_RenderFailure(t *testing.T) {
	store, err := docstore.NewFileStore(docstore.FSConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	svc := NewService(&fakePDF{err: NewError(ErrCodeRenderTimeout, "timed out", nil)}, store, letterheads(), Options{})
	_, err = svc.Render(context.Background(), sample())

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ErrCodeRenderTimeout, rerr.Code)
}

func TestDisabledRenderer(t *testing.T) {
	_, err := DisabledRenderer{}.PrintPDF(context.Background(), "<p>x</p>")
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ErrCodeDisabled, rerr.Code)
}

func TestChromedpRenderer_RejectsEmptyHTML(t *testing.T) {
	r := NewChromedpRenderer(ChromedpConfig{})
	defer r.Close()

	_, err := r.PrintPDF(context.Background(), "  ")
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ErrCodeInvalidHTML, rerr.Code)
}
