package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/transmittal"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// API is the application surface served over HTTP.
type API interface {
	ListSources(ctx context.Context) ([]types.SourceEntry, error)
	Search(ctx context.Context, referenceNumber, sourceID string) ([]types.MatchedItem, error)
	Allocate(ctx context.Context) (string, error)
	Append(ctx context.Context, s types.Submission) (*transmittal.Result, error)
	Preview(ctx context.Context, s types.Submission) (string, error)
	Pending(ctx context.Context) ([]string, error)
	Rerender(ctx context.Context, transmittalNo string) (*transmittal.Result, error)
}

// Handler serves the transmittal API.
type Handler struct {
	api         API
	idempotency *IdempotencyCache
}

// NewHandler creates a Handler.
func NewHandler(api API, idempotency *IdempotencyCache) *Handler {
	if idempotency == nil {
		idempotency = NewIdempotencyCache(0)
	}
	return &Handler{api: api, idempotency: idempotency}
}

// Health godoc
// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{"status": "ok"}))
}

// ListSources godoc
// GET /api/v1/sources
func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.api.ListSources(c.Request.Context())
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(sources))
}

// Search godoc
// GET /api/v1/search?ref=&source=
func (h *Handler) Search(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("ref"))
	source := strings.TrimSpace(c.Query("source"))

	// A blank ref or source matches nothing.
	items, err := h.api.Search(c.Request.Context(), ref, source)
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	if items == nil {
		items = []types.MatchedItem{}
	}
	c.JSON(http.StatusOK, NewSuccessResponse(SearchResponse{
		Source:    source,
		Reference: ref,
		Items:     items,
	}))
}

// Allocate godoc
// POST /api/v1/transmittals/allocate
func (h *Handler) Allocate(c *gin.Context) {
	no, err := h.api.Allocate(c.Request.Context())
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(AllocateResponse{TransmittalNo: no}))
}

// Append godoc
// POST /api/v1/transmittals
//
// A repeated Idempotency-Key replays the first response instead of appending
// again. Responses are only stored once rows were written.
func (h *Handler) Append(c *gin.Context) {
	var sub types.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, "invalid submission body: "+err.Error())
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if key != "" {
		stored, busy := h.idempotency.begin(key)
		if busy {
			c.AbortWithStatusJSON(http.StatusConflict,
				NewErrorResponse(CodeInProgress, "a request with this Idempotency-Key is in progress"))
			return
		}
		if stored != nil {
			c.Header("Idempotent-Replayed", "true")
			c.JSON(stored.status, stored.body)
			return
		}
	}

	result, err := h.api.Append(c.Request.Context(), sub)
	written := result != nil
	if err != nil {
		if key != "" {
			if written {
				status, resp := errorResponse(err)
				resp.Data = result
				h.idempotency.finish(key, status, resp)
			} else {
				h.idempotency.abandon(key)
			}
		}
		if written {
			requestLogger(c).Warn("transmittal saved without document",
				zap.String("transmittal_no", result.TransmittalNo),
				zap.Error(err),
			)
		}
		abortWithError(c, err, resultData(result))
		return
	}

	resp := NewSuccessResponse(result)
	if key != "" {
		h.idempotency.finish(key, http.StatusCreated, resp)
	}
	c.JSON(http.StatusCreated, resp)
}

// Preview godoc
// POST /api/v1/transmittals/preview
func (h *Handler) Preview(c *gin.Context) {
	var sub types.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		badRequest(c, "invalid submission body: "+err.Error())
		return
	}
	if len(sub.Items) == 0 {
		abortWithError(c, apperr.EmptySubmission(sub.TransmittalNo), nil)
		return
	}

	html, err := h.api.Preview(c.Request.Context(), sub)
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// Pending godoc
// GET /api/v1/transmittals/pending
func (h *Handler) Pending(c *gin.Context) {
	nos, err := h.api.Pending(c.Request.Context())
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(PendingResponse{TransmittalNos: nos}))
}

// Rerender godoc
// POST /api/v1/transmittals/:no/render
func (h *Handler) Rerender(c *gin.Context) {
	no := strings.TrimSpace(c.Param("no"))
	result, err := h.api.Rerender(c.Request.Context(), no)
	if err != nil {
		abortWithError(c, err, resultData(result))
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(result))
}

// resultData keeps a nil result out of the response envelope.
func resultData(result *transmittal.Result) any {
	if result == nil {
		return nil
	}
	return result
}
