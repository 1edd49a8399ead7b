package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/service"
)

type PlansHandler struct {
	billingService *service.BillingService
}

func NewPlansHandler(billingService *service.BillingService) *PlansHandler {
	return &PlansHandler{billingService: billingService}
}

// List returns the subscription tiers and the add-on packages.
// GET /api/plans
func (h *PlansHandler) List(c *gin.Context) {
	response.Success(c, gin.H{
		"tiers":    h.billingService.Tiers(),
		"packages": h.billingService.Packages(),
	})
}
