package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/internal/api/middleware"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/service"
)

type TenantHandler struct {
	tenantService *service.TenantService
}

func NewTenantHandler(tenantService *service.TenantService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

// Branding returns the look of the instance serving this host.
// GET /api/tenant/branding
func (h *TenantHandler) Branding(c *gin.Context) {
	response.Success(c, h.tenantService.Branding(middleware.GetTenant(c)))
}

// List
// GET /api/admin/tenants
func (h *TenantHandler) List(c *gin.Context) {
	tenants, err := h.tenantService.List()
	if err != nil {
		response.ServerError(c, "")
		return
	}
	response.Success(c, gin.H{"tenants": tenants})
}

// Get
// GET /api/admin/tenants/:id
func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}

	tenant, err := h.tenantService.Get(id)
	if err != nil {
		writeTenantError(c, err)
		return
	}
	response.Success(c, tenant)
}

// Create
// POST /api/admin/tenants
func (h *TenantHandler) Create(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	tenant, err := h.tenantService.Create(&req)
	if err != nil {
		writeTenantError(c, err)
		return
	}
	response.SuccessWithMessage(c, "tenant created", tenant)
}

// Update applies a partial update. Empty secrets clear the stored value.
// PUT /api/admin/tenants/:id
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}

	var req dto.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	tenant, err := h.tenantService.Update(id, &req)
	if err != nil {
		writeTenantError(c, err)
		return
	}
	response.Success(c, tenant)
}

// Delete
// DELETE /api/admin/tenants/:id
func (h *TenantHandler) Delete(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}

	if err := h.tenantService.Delete(c.Request.Context(), id); err != nil {
		writeTenantError(c, err)
		return
	}
	response.SuccessWithMessage(c, "tenant deleted", nil)
}

// CheckDNS reports whether the custom domain points at the platform.
// GET /api/admin/tenants/:id/dns-check
func (h *TenantHandler) CheckDNS(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}

	result, err := h.tenantService.CheckDNS(c.Request.Context(), id)
	if err != nil {
		writeTenantError(c, err)
		return
	}
	response.Success(c, result)
}

// ProvisionDNS creates the subdomain CNAME through Cloudflare.
// POST /api/admin/tenants/:id/provision-dns
func (h *TenantHandler) ProvisionDNS(c *gin.Context) {
	id, ok := tenantID(c)
	if !ok {
		return
	}

	result, err := h.tenantService.ProvisionDNS(c.Request.Context(), id)
	if err != nil {
		writeTenantError(c, err)
		return
	}
	response.SuccessWithMessage(c, "dns record provisioned", result)
}

func tenantID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid tenant id")
		return 0, false
	}
	return id, true
}

func writeTenantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTenantNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrTenantExists):
		response.DuplicateError(c, err.Error())
	case errors.Is(err, service.ErrInvalidSubdomain),
		errors.Is(err, service.ErrTenantNoDomain),
		errors.Is(err, service.ErrTenantNoSubdomain):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrDNSNotConfigured):
		response.ServerError(c, err.Error())
	case errors.Is(err, service.ErrDNSProvider):
		log.WithError(err).Warn("dns provider request failed")
		response.UpstreamError(c, service.ErrDNSProvider.Error())
	default:
		log.WithError(err).Error("tenant request failed")
		response.ServerError(c, "")
	}
}
