package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xauti/content_go_server/internal/api/middleware"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/service"
)

type ScriptHandler struct {
	scriptService *service.ScriptService
}

func NewScriptHandler(scriptService *service.ScriptService) *ScriptHandler {
	return &ScriptHandler{scriptService: scriptService}
}

// Generate starts 30 days of text-to-speech scripts (Pro and Unlimited).
// Progress is polled through the content status endpoint.
// POST /api/scripts/generate
func (h *ScriptHandler) Generate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.GenerateScriptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.scriptService.Generate(c.Request.Context(), userID, middleware.GetTenant(c), &req)
	if err != nil {
		writeGenerationError(c, err)
		return
	}

	response.SuccessWithMessage(c, "script generation started", resp)
}
