package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/internal/api/middleware"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/service"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	billingService *service.BillingService
	crmService     *service.CRMService
}

func NewWebhookHandler(billingService *service.BillingService, crmService *service.CRMService) *WebhookHandler {
	return &WebhookHandler{
		billingService: billingService,
		crmService:     crmService,
	}
}

// Stripe verifies and applies a Stripe event. Unlike the rest of the API
// it answers with real HTTP status codes, Stripe retries on anything but 2xx.
// POST /api/webhooks/stripe
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, response.CodeParamError, "unreadable body")
		return
	}

	err = h.billingService.HandleWebhook(middleware.GetTenant(c), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		response.Success(c, gin.H{"received": true})
	case errors.Is(err, service.ErrInvalidSignature):
		response.ErrorWithStatus(c, http.StatusBadRequest, response.CodeAuthFailed, err.Error())
	case errors.Is(err, service.ErrInvalidPurchase),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPaymentsNotConfigured):
		// retrying cannot fix these
		log.WithError(err).Warn("stripe event not applied")
		response.Success(c, gin.H{"received": true})
	default:
		log.WithError(err).Error("stripe webhook failed")
		response.ErrorWithStatus(c, http.StatusInternalServerError, response.CodeServerError, "")
	}
}

// CRM syncs a contact's tags into the current instance.
// POST /api/webhooks/crm
func (h *WebhookHandler) CRM(c *gin.Context) {
	secret := c.GetHeader("X-Webhook-Secret")
	if secret == "" {
		secret = c.Query("secret")
	}
	if !h.crmService.VerifySecret(secret) {
		response.AuthError(c, "invalid webhook secret")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ParamError(c, "unreadable body")
		return
	}

	result, err := h.crmService.HandleWebhook(middleware.GetTenantID(c), body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCRMInvalidBody), errors.Is(err, service.ErrCRMMissingEmail):
			response.ParamError(c, err.Error())
		default:
			log.WithError(err).Error("crm webhook failed")
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, result)
}
