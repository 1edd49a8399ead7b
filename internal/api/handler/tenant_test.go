package handler

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/testutil"
)

func tenantRouter(ctx *testContext) *gin.Engine {
	router := gin.New()
	admin := router.Group("/admin")
	admin.GET("/tenants", ctx.Tenant.List)
	admin.POST("/tenants", ctx.Tenant.Create)
	admin.GET("/tenants/:id", ctx.Tenant.Get)
	admin.PUT("/tenants/:id", ctx.Tenant.Update)
	admin.DELETE("/tenants/:id", ctx.Tenant.Delete)
	admin.GET("/tenants/:id/dns-check", ctx.Tenant.CheckDNS)
	admin.POST("/tenants/:id/provision-dns", ctx.Tenant.ProvisionDNS)
	return router
}

func TestTenantHandler_CRUD(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	router := tenantRouter(ctx)

	w := performRequest(router, "POST", "/admin/tenants", dto.CreateTenantRequest{
		Name:            "Acme",
		Subdomain:       "acme",
		Domain:          "content.acme.com",
		StripeSecretKey: "sk_acme",
		Branding:        map[string]interface{}{"primary_color": "#ff0000"},
	})
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)
	created := dataMap(t, resp)
	assert.Equal(t, true, created["has_stripe_secret_key"])
	assert.NotContains(t, w.Body.String(), "sk_acme")
	id := int64(created["id"].(float64))

	// Subdomains are unique.
	w = performRequest(router, "POST", "/admin/tenants", dto.CreateTenantRequest{Name: "Copy", Subdomain: "acme"})
	assert.Equal(t, response.CodeDuplicateAction, parseResponse(t, w).Code)

	w = performRequest(router, "POST", "/admin/tenants", dto.CreateTenantRequest{Name: "Bad", Subdomain: "Not_Valid"})
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)

	name := "Acme Inc"
	w = performRequest(router, "PUT", fmt.Sprintf("/admin/tenants/%d", id), dto.UpdateTenantRequest{Name: &name})
	assert.Equal(t, "Acme Inc", dataMap(t, parseResponse(t, w))["name"])

	w = performRequest(router, "GET", "/admin/tenants", nil)
	assert.Len(t, dataMap(t, parseResponse(t, w))["tenants"], 1)

	w = performRequest(router, "DELETE", fmt.Sprintf("/admin/tenants/%d", id), nil)
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "GET", fmt.Sprintf("/admin/tenants/%d", id), nil)
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)

	w = performRequest(router, "GET", "/admin/tenants/zero", nil)
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
}

func TestTenantHandler_DNS(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	router := tenantRouter(ctx)
	noDomain := testutil.TestTenant(t, ctx.DB)
	withDomain := testutil.TestTenant(t, ctx.DB, testutil.WithDomain("content.acme.com"))

	w := performRequest(router, "GET", fmt.Sprintf("/admin/tenants/%d/dns-check", noDomain.ID), nil)
	assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)

	w = performRequest(router, "GET", fmt.Sprintf("/admin/tenants/%d/dns-check", withDomain.ID), nil)
	data := dataMap(t, parseResponse(t, w))
	assert.Equal(t, "content.acme.com", data["domain"])
	assert.Equal(t, false, data["verified"])

	// No Cloudflare provisioner in tests.
	w = performRequest(router, "POST", fmt.Sprintf("/admin/tenants/%d/provision-dns", noDomain.ID), nil)
	assert.Equal(t, response.CodeServerError, parseResponse(t, w).Code)
}

func TestTenantHandler_Branding(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	tenant := testutil.TestTenant(t, ctx.DB)

	router := gin.New()
	router.GET("/primary", mockTenant(nil), ctx.Tenant.Branding)
	router.GET("/tenant", mockTenant(tenant), ctx.Tenant.Branding)

	w := performRequest(router, "GET", "/tenant", nil)
	data := dataMap(t, parseResponse(t, w))
	assert.Equal(t, float64(tenant.ID), data["tenant_id"])
	assert.Equal(t, "Test Tenant", data["name"])

	w = performRequest(router, "GET", "/primary", nil)
	data = dataMap(t, parseResponse(t, w))
	assert.Equal(t, float64(0), data["tenant_id"])
}
