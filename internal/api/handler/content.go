package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/internal/api/middleware"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/service"
)

// maxCallbackBody bounds what n8n may post back.
const maxCallbackBody = 10 << 20

type ContentHandler struct {
	generationService *service.GenerationService
}

func NewContentHandler(generationService *service.GenerationService) *ContentHandler {
	return &ContentHandler{
		generationService: generationService,
	}
}

// Generate starts a content calendar. The response returns before the
// workflow finishes; clients poll the status endpoint.
// POST /api/content/generate
func (h *ContentHandler) Generate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.GenerateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.generationService.Generate(c.Request.Context(), userID, middleware.GetTenant(c), &req)
	if err != nil {
		writeGenerationError(c, err)
		return
	}

	response.SuccessWithMessage(c, "content generation started", resp)
}

// List
// GET /api/content?page=1&page_size=20&kind=calendar
func (h *ContentHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	kind := c.Query("kind")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.generationService.List(userID, page, pageSize, kind)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Status is polled until the request is completed or failed.
// GET /api/content/status/:id
func (h *ContentHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid request id")
		return
	}

	status, err := h.generationService.GetStatus(userID, requestID)
	if err != nil {
		writeGenerationError(c, err)
		return
	}

	response.Success(c, status)
}

// Download serves the finished CSV as an attachment.
// GET /api/content/:id/download
func (h *ContentHandler) Download(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid request id")
		return
	}

	data, filename, err := h.generationService.Download(userID, requestID)
	if err != nil {
		writeGenerationError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// Callback receives the asynchronous result from the n8n workflow.
// POST /api/content/callback?request_id=<key>
func (h *ContentHandler) Callback(c *gin.Context) {
	secret := c.GetHeader("X-Callback-Secret")
	if secret == "" {
		secret = c.Query("secret")
	}
	if !h.generationService.VerifyCallbackSecret(secret) {
		response.AuthError(c, "invalid callback secret")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		response.ParamError(c, "unreadable body")
		return
	}

	if err := h.generationService.HandleCallback(c.Request.Context(), c.Query("request_id"), body); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCallbackKey):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrRequestNotFound):
			response.NotFoundError(c, err.Error())
		default:
			log.WithError(err).Error("content callback failed")
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, gin.H{"received": true})
}

// writeGenerationError maps generation and script errors to the envelope.
func writeGenerationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		response.QuotaError(c, "monthly generation limit reached")
	case errors.Is(err, service.ErrScriptsNotAllowed):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrInvalidGeneration):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrRequestNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrNotReady):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.AuthError(c, err.Error())
	case errors.Is(err, service.ErrDispatchFailed):
		response.UpstreamError(c, err.Error())
	default:
		log.WithError(err).Error("content request failed")
		response.ServerError(c, "")
	}
}
