package httpapi

import (
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/internal/validation"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code    string                        `json:"code"`
	Message string                        `json:"message"`
	Details []*validation.ValidationError `json:"details,omitempty"`
}

// NewSuccessResponse wraps data in a success envelope.
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewErrorResponse creates an error envelope.
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// SearchResponse is the data of GET /api/v1/search.
type SearchResponse struct {
	Source    string              `json:"source"`
	Reference string              `json:"reference"`
	Items     []types.MatchedItem `json:"items"`
}

// AllocateResponse is the data of POST /api/v1/transmittals/allocate.
type AllocateResponse struct {
	TransmittalNo string `json:"transmittal_no"`
}

// PendingResponse is the data of GET /api/v1/transmittals/pending.
type PendingResponse struct {
	TransmittalNos []string `json:"transmittal_nos"`
}
