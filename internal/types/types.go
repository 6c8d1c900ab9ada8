// =============================================================================
// Transmittal Log - Shared Types
// =============================================================================
//
// This package contains the data model shared by the registry reader, the
// row matcher, the transmittal writer, the renderer and the HTTP layer.
// Keeping it here avoids import cycles between those packages.
//
// CENTRAL LOG LAYOUT (20 columns, header in row 1):
//   A Timestamp        F To Name          K Supplier        P Service Type
//   B Transmittal No   G To Department    L Payor Company   Q Period Covered
//   C From Name        H To Address       M Property        R Particulars
//   D From Department  I RFP/ PEF #       N Location        S Amount
//   E Date Transmitted J Document Details O Sector          T Document Ref
//
// =============================================================================

package types

// =============================================================================
// REGISTRY
// =============================================================================

// SourceEntry is one row of the source registry.
type SourceEntry struct {
	// ID identifies the external source workbook.
	ID string `json:"id" yaml:"id"`

	// Label is the human-readable name shown in the source picker.
	Label string `json:"label" yaml:"label"`

	// AllowedTabs restricts the search to the named tabs.
	// An empty list means every tab in the workbook.
	AllowedTabs []string `json:"allowed_tabs" yaml:"allowed_tabs"`
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// Field keys for the business columns of a line item.
const (
	FieldReferenceNumber = "reference_number"
	FieldDocDetails      = "doc_details"
	FieldSupplier        = "supplier"
	FieldPayorCompany    = "payor_company"
	FieldProperty        = "property"
	FieldLocation        = "location"
	FieldSector          = "sector"
	FieldServiceType     = "service_type"
	FieldPeriodCovered   = "period_covered"
	FieldParticulars     = "particulars"
	FieldAmount          = "amount"
)

// MatchedItem is one source row reshaped into the fixed output schema.
type MatchedItem struct {
	ReferenceNumber string `json:"reference_number" yaml:"reference_number" validate:"max=200"`
	DocDetails      string `json:"doc_details" yaml:"doc_details" validate:"max=1000"`
	Supplier        string `json:"supplier" yaml:"supplier" validate:"max=500"`
	PayorCompany    string `json:"payor_company" yaml:"payor_company" validate:"max=500"`
	Property        string `json:"property" yaml:"property" validate:"max=500"`
	Location        string `json:"location" yaml:"location" validate:"max=500"`
	Sector          string `json:"sector" yaml:"sector" validate:"max=200"`
	ServiceType     string `json:"service_type" yaml:"service_type" validate:"max=200"`
	PeriodCovered   string `json:"period_covered" yaml:"period_covered" validate:"max=200"`
	Particulars     string `json:"particulars" yaml:"particulars" validate:"max=2000"`
	Amount          string `json:"amount" yaml:"amount" validate:"max=100"`
}

// LineItem is a MatchedItem after the user has reviewed it on the form.
type LineItem = MatchedItem

// SetField assigns value to the field named by key. Unknown keys are ignored.
func (m *MatchedItem) SetField(key, value string) {
	switch key {
	case FieldReferenceNumber:
		m.ReferenceNumber = value
	case FieldDocDetails:
		m.DocDetails = value
	case FieldSupplier:
		m.Supplier = value
	case FieldPayorCompany:
		m.PayorCompany = value
	case FieldProperty:
		m.Property = value
	case FieldLocation:
		m.Location = value
	case FieldSector:
		m.Sector = value
	case FieldServiceType:
		m.ServiceType = value
	case FieldPeriodCovered:
		m.PeriodCovered = value
	case FieldParticulars:
		m.Particulars = value
	case FieldAmount:
		m.Amount = value
	}
}

// Values returns the eleven item fields in log column order (I to S).
func (m MatchedItem) Values() []string {
	return []string{
		m.ReferenceNumber,
		m.DocDetails,
		m.Supplier,
		m.PayorCompany,
		m.Property,
		m.Location,
		m.Sector,
		m.ServiceType,
		m.PeriodCovered,
		m.Particulars,
		m.Amount,
	}
}

// =============================================================================
// HEADER MAPPING
// =============================================================================

// DefaultReferenceHeader is the header text of the reference-number column in
// source tabs.
const DefaultReferenceHeader = "RFP/ PEF #"

// FieldHeader binds a line-item field to the header text that carries it in a
// source tab.
type FieldHeader struct {
	Field  string `json:"field" yaml:"field"`
	Header string `json:"header" yaml:"header"`
}

// DefaultFieldHeaders returns the ten business columns read from source tabs.
func DefaultFieldHeaders() []FieldHeader {
	return []FieldHeader{
		{Field: FieldDocDetails, Header: "Document Details"},
		{Field: FieldSupplier, Header: "Supplier"},
		{Field: FieldPayorCompany, Header: "Payor Company"},
		{Field: FieldProperty, Header: "Property"},
		{Field: FieldLocation, Header: "Location"},
		{Field: FieldSector, Header: "Sector"},
		{Field: FieldServiceType, Header: "Service Type"},
		{Field: FieldPeriodCovered, Header: "Period Covered"},
		{Field: FieldParticulars, Header: "Particulars"},
		{Field: FieldAmount, Header: "Amount"},
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submission is one transmittal as filled in on the form.
type Submission struct {
	TransmittalNo   string     `json:"transmittal_no" yaml:"transmittal_no" validate:"required,transmittalno"`
	FromName        string     `json:"from_name" yaml:"from_name" validate:"required,max=200"`
	FromDepartment  string     `json:"from_department" yaml:"from_department" validate:"required,max=100"`
	DateTransmitted string     `json:"date_transmitted" yaml:"date_transmitted" validate:"required,max=50"`
	ToName          string     `json:"to_name" yaml:"to_name" validate:"required,max=200"`
	ToDepartment    string     `json:"to_department" yaml:"to_department" validate:"max=100"`
	ToAddress       string     `json:"to_address" yaml:"to_address" validate:"max=500"`
	Items           []LineItem `json:"items" yaml:"items" validate:"dive"`
}

// =============================================================================
// CENTRAL LOG
// =============================================================================

// Central log geometry. Column numbers are one-based.
const (
	LogColumnCount      = 20
	PrimaryColumnCount  = 19
	TransmittalNoColumn = 2
	DocumentRefColumn   = 20
)

// PendingDocumentRef is written to the document-ref column until rendering
// succeeds.
const PendingDocumentRef = "PENDING"

// TimestampLayout formats the capture timestamp in column A.
const TimestampLayout = "2006-01-02 15:04:05"

// LogRow is one persisted line item.
type LogRow struct {
	Timestamp       string
	TransmittalNo   string
	FromName        string
	FromDepartment  string
	DateTransmitted string
	ToName          string
	ToDepartment    string
	ToAddress       string
	Item            LineItem
	DocumentRef     string
}

// NewLogRow builds the log row for one item of a submission.
func NewLogRow(s Submission, item LineItem, timestamp, documentRef string) LogRow {
	return LogRow{
		Timestamp:       timestamp,
		TransmittalNo:   s.TransmittalNo,
		FromName:        s.FromName,
		FromDepartment:  s.FromDepartment,
		DateTransmitted: s.DateTransmitted,
		ToName:          s.ToName,
		ToDepartment:    s.ToDepartment,
		ToAddress:       s.ToAddress,
		Item:            item,
		DocumentRef:     documentRef,
	}
}

// Cells returns the 20 cell values of the row in column order.
func (r LogRow) Cells() []any {
	cells := make([]any, 0, LogColumnCount)
	cells = append(cells,
		r.Timestamp,
		r.TransmittalNo,
		r.FromName,
		r.FromDepartment,
		r.DateTransmitted,
		r.ToName,
		r.ToDepartment,
		r.ToAddress,
	)
	for _, v := range r.Item.Values() {
		cells = append(cells, v)
	}
	return append(cells, r.DocumentRef)
}

// LogRowFromCells rebuilds a row from its string cells. Short rows are padded
// with empty values.
func LogRowFromCells(cells []string) LogRow {
	get := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return ""
	}
	return LogRow{
		Timestamp:       get(0),
		TransmittalNo:   get(1),
		FromName:        get(2),
		FromDepartment:  get(3),
		DateTransmitted: get(4),
		ToName:          get(5),
		ToDepartment:    get(6),
		ToAddress:       get(7),
		Item: LineItem{
			ReferenceNumber: get(8),
			DocDetails:      get(9),
			Supplier:        get(10),
			PayorCompany:    get(11),
			Property:        get(12),
			Location:        get(13),
			Sector:          get(14),
			ServiceType:     get(15),
			PeriodCovered:   get(16),
			Particulars:     get(17),
			Amount:          get(18),
		},
		DocumentRef: get(19),
	}
}

// LogHeaders returns the header titles of the central log.
func LogHeaders() []string {
	return []string{
		"Timestamp",
		"Transmittal No",
		"From Name",
		"From Department",
		"Date Transmitted",
		"To Name",
		"To Department",
		"To Address",
		DefaultReferenceHeader,
		"Document Details",
		"Supplier",
		"Payor Company",
		"Property",
		"Location",
		"Sector",
		"Service Type",
		"Period Covered",
		"Particulars",
		"Amount",
		"Document Ref",
	}
}
