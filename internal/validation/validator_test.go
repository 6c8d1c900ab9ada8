package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission() *types.Submission {
	return &types.Submission{
		TransmittalNo:   "20261018-4821",
		FromName:        "Ana Cruz",
		FromDepartment:  "FIN",
		DateTransmitted: "2026-10-18",
		ToName:          "Ben Reyes",
		Items: []types.LineItem{
			{ReferenceNumber: "RFP-001", Amount: "1,250.00"},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Default().Validate(validSubmission()))
}

func TestValidate_MissingRequired(t *testing.T) {
	s := validSubmission()
	s.FromName = ""
	s.ToName = ""

	err := New().Validate(s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidSubmission))

	details := Details(err)
	require.Len(t, details, 2)
	fields := []string{details[0].Field, details[1].Field}
	assert.ElementsMatch(t, []string{"from_name", "to_name"}, fields)
	assert.Equal(t, "required", details[0].Rule)
}

func TestValidate_SenderAndRecipientRequired(t *testing.T) {
	s := validSubmission()
	s.FromName, s.FromDepartment, s.DateTransmitted, s.ToName = "", "", "", ""
	s.ToDepartment, s.ToAddress = "", ""

	var fields []string
	for _, d := range Details(New().Validate(s)) {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"from_name", "from_department", "date_transmitted", "to_name"}, fields)
}

func TestValidate_TransmittalNoShape(t *testing.T) {
	for _, no := range []string{"2026-1018", "20261018-482", "abcdefgh-1234", "20261018_4821"} {
		s := validSubmission()
		s.TransmittalNo = no
		details := Details(New().Validate(s))
		require.Len(t, details, 1, no)
		assert.Equal(t, "transmittal_no", details[0].Field)
		assert.Equal(t, TransmittalNoTag, details[0].Rule)
	}
}

func TestValidate_ItemFieldPath(t *testing.T) {
	s := validSubmission()
	s.Items = append(s.Items, types.LineItem{Amount: strings.Repeat("9", 101)})

	details := Details(New().Validate(s))
	require.Len(t, details, 1)
	assert.Equal(t, "items[1].amount", details[0].Field)
	assert.Equal(t, "max", details[0].Rule)
	assert.Contains(t, details[0].Message, "100 characters")
	assert.True(t, strings.HasSuffix(details[0].Value, "..."))
}

func TestIsTransmittalNo(t *testing.T) {
	assert.True(t, IsTransmittalNo("20261018-1000"))
	assert.True(t, IsTransmittalNo(" 20261018-9999 "))
	assert.False(t, IsTransmittalNo(""))
}

func TestFormatErrors(t *testing.T) {
	assert.Equal(t, "No validation errors.", FormatErrors(nil))

	s := validSubmission()
	s.FromDepartment = ""
	out := FormatErrors(Details(New().Validate(s)))
	assert.Contains(t, out, "1 error(s)")
	assert.Contains(t, out, "from_department")
}
