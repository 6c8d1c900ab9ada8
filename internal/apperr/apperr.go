// =============================================================================
// Transmittal Log - Error Taxonomy
// =============================================================================
//
// Every failure the core can report to a caller is an *Error carrying a stable
// code. Callers branch on the code with errors.Is against the sentinel values
// below; the HTTP layer maps codes to status codes.
//
// CODES:
//   CONFIG_ERROR                registry or log workbook missing
//   UNKNOWN_SOURCE              source id not present in the registry
//   NO_MATCHING_TABS            none of a source's allowed tabs exist
//   EXTERNAL_SOURCE_ERROR       a source workbook or tab could not be read
//   BUSY                        the log lock could not be acquired in time
//   EXHAUSTED_ATTEMPTS          every candidate transmittal number collided
//   EMPTY_SUBMISSION            a submission without line items
//   INVALID_SUBMISSION          a submission failing structural validation
//   DUPLICATE_TRANSMITTAL       the transmittal number is already logged
//   DOCUMENT_GENERATION_FAILED  rows were written but rendering failed
//   TRANSMITTAL_NOT_FOUND       no log rows carry the transmittal number
//
// =============================================================================

package apperr

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeConfig                   = "CONFIG_ERROR"
	CodeUnknownSource            = "UNKNOWN_SOURCE"
	CodeNoMatchingTabs           = "NO_MATCHING_TABS"
	CodeExternalSource           = "EXTERNAL_SOURCE_ERROR"
	CodeBusy                     = "BUSY"
	CodeExhaustedAttempts        = "EXHAUSTED_ATTEMPTS"
	CodeEmptySubmission          = "EMPTY_SUBMISSION"
	CodeInvalidSubmission        = "INVALID_SUBMISSION"
	CodeDuplicateTransmittal     = "DUPLICATE_TRANSMITTAL"
	CodeDocumentGenerationFailed = "DOCUMENT_GENERATION_FAILED"
	CodeTransmittalNotFound      = "TRANSMITTAL_NOT_FOUND"
)

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrConfig                   = &Error{Code: CodeConfig}
	ErrUnknownSource            = &Error{Code: CodeUnknownSource}
	ErrNoMatchingTabs           = &Error{Code: CodeNoMatchingTabs}
	ErrExternalSource           = &Error{Code: CodeExternalSource}
	ErrBusy                     = &Error{Code: CodeBusy}
	ErrExhaustedAttempts        = &Error{Code: CodeExhaustedAttempts}
	ErrEmptySubmission          = &Error{Code: CodeEmptySubmission}
	ErrInvalidSubmission        = &Error{Code: CodeInvalidSubmission}
	ErrDuplicateTransmittal     = &Error{Code: CodeDuplicateTransmittal}
	ErrDocumentGenerationFailed = &Error{Code: CodeDocumentGenerationFailed}
	ErrTransmittalNotFound      = &Error{Code: CodeTransmittalNotFound}
)

// Error is a coded application error.
type Error struct {
	// Code is one of the Code* constants.
	Code string

	// Message is a human-readable description.
	Message string

	// Subject names the offending identifier: a source id, a tab name, a
	// workbook path or a transmittal number.
	Subject string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Subject != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Subject)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// Config reports a missing or unreadable registry or log workbook.
func Config(subject string, err error) *Error {
	return &Error{Code: CodeConfig, Message: "configuration table unavailable", Subject: subject, Err: err}
}

// UnknownSource reports a source id that the registry does not list.
func UnknownSource(sourceID string) *Error {
	return &Error{Code: CodeUnknownSource, Message: "unknown source", Subject: sourceID}
}

// NoMatchingTabs reports a source none of whose allowed tabs exist.
func NoMatchingTabs(sourceID string) *Error {
	return &Error{Code: CodeNoMatchingTabs, Message: "none of the allowed tabs exist", Subject: sourceID}
}

// ExternalSource reports a source workbook or tab that could not be read.
func ExternalSource(subject string, err error) *Error {
	return &Error{Code: CodeExternalSource, Message: "external source unreadable", Subject: subject, Err: err}
}

// Busy reports a lock acquisition timeout.
func Busy(key string, err error) *Error {
	return &Error{Code: CodeBusy, Message: "transmittal log is busy, try again shortly", Subject: key, Err: err}
}

// ExhaustedAttempts reports that every candidate number collided.
func ExhaustedAttempts(prefix string, attempts int) *Error {
	return &Error{
		Code:    CodeExhaustedAttempts,
		Message: fmt.Sprintf("no free transmittal number after %d attempts", attempts),
		Subject: prefix,
	}
}

// EmptySubmission reports a submission without line items.
func EmptySubmission(transmittalNo string) *Error {
	return &Error{Code: CodeEmptySubmission, Message: "submission has no line items", Subject: transmittalNo}
}

// InvalidSubmission reports a submission that failed validation.
func InvalidSubmission(transmittalNo string, err error) *Error {
	return &Error{Code: CodeInvalidSubmission, Message: "submission is invalid", Subject: transmittalNo, Err: err}
}

// DuplicateTransmittal reports a transmittal number that is already logged.
func DuplicateTransmittal(transmittalNo string) *Error {
	return &Error{Code: CodeDuplicateTransmittal, Message: "transmittal number already recorded", Subject: transmittalNo}
}

// DocumentGenerationFailed reports a render failure after rows were written.
func DocumentGenerationFailed(transmittalNo string, err error) *Error {
	return &Error{
		Code:    CodeDocumentGenerationFailed,
		Message: "rows saved but document generation failed",
		Subject: transmittalNo,
		Err:     err,
	}
}

// TransmittalNotFound reports a transmittal number absent from the log.
func TransmittalNotFound(transmittalNo string) *Error {
	return &Error{Code: CodeTransmittalNotFound, Message: "transmittal not found in log", Subject: transmittalNo}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
