package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/internal/api/middleware"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/service"
)

type BillingHandler struct {
	billingService *service.BillingService
}

func NewBillingHandler(billingService *service.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

// Packages
// GET /api/purchase/packages
func (h *BillingHandler) Packages(c *gin.Context) {
	response.Success(c, gin.H{"packages": h.billingService.Packages()})
}

// Checkout opens a Stripe Checkout session for an add-on package.
// POST /api/purchase/checkout
func (h *BillingHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.billingService.CreateCheckout(c.Request.Context(), userID, middleware.GetTenant(c), req.PackageID)
	if err != nil {
		writeBillingError(c, err)
		return
	}

	response.Success(c, resp)
}

// Verify credits a paid session when the user returns from Stripe before
// the webhook did.
// POST /api/purchase/verify
func (h *BillingHandler) Verify(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.VerifyPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.billingService.VerifySession(c.Request.Context(), userID, middleware.GetTenant(c), req.SessionID)
	if err != nil {
		writeBillingError(c, err)
		return
	}

	response.Success(c, resp)
}

// History
// GET /api/purchase/history
func (h *BillingHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	items, err := h.billingService.History(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"purchases": items})
}

func writeBillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPackageNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrPaymentsNotConfigured):
		response.ServerError(c, err.Error())
	case errors.Is(err, service.ErrSessionMismatch):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrInvalidPurchase):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.AuthError(c, err.Error())
	case errors.Is(err, service.ErrPaymentProvider):
		log.WithError(err).Warn("stripe request failed")
		response.UpstreamError(c, service.ErrPaymentProvider.Error())
	default:
		log.WithError(err).Error("billing request failed")
		response.ServerError(c, "")
	}
}
