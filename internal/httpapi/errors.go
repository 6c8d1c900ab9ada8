package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/validation"
	"github.com/gin-gonic/gin"
)

// Codes produced by the HTTP layer itself.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInProgress     = "REQUEST_IN_PROGRESS"
	CodeInternal       = "INTERNAL_ERROR"
)

// retryAfterSeconds is sent with 503 responses for retryable failures.
const retryAfterSeconds = 5

// StatusFor maps an error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case apperr.CodeBusy, apperr.CodeExhaustedAttempts:
		return http.StatusServiceUnavailable
	case apperr.CodeUnknownSource, apperr.CodeTransmittalNotFound:
		return http.StatusNotFound
	case apperr.CodeNoMatchingTabs:
		return http.StatusUnprocessableEntity
	case apperr.CodeEmptySubmission, apperr.CodeInvalidSubmission, CodeInvalidRequest:
		return http.StatusBadRequest
	case apperr.CodeDuplicateTransmittal, CodeInProgress:
		return http.StatusConflict
	case apperr.CodeExternalSource, apperr.CodeDocumentGenerationFailed:
		return http.StatusBadGateway
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the envelope for err. Errors without a code are
// reported as INTERNAL_ERROR without their text.
func errorResponse(err error) (int, Response) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, NewErrorResponse(CodeInternal, "internal error")
	}

	resp := NewErrorResponse(appErr.Code, appErr.Error())
	if appErr.Code == apperr.CodeInvalidSubmission {
		resp.Error.Message = appErr.Message
		resp.Error.Details = validation.Details(err)
	}
	return StatusFor(appErr.Code), resp
}

// abortWithError writes err and stops the handler chain. data, when not nil,
// is included alongside the error.
func abortWithError(c *gin.Context, err error, data any) {
	status, resp := errorResponse(err)
	resp.Data = data
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// badRequest writes an INVALID_REQUEST response.
func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse(CodeInvalidRequest, message))
}
