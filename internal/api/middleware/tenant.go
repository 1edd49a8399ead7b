package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/service"
)

const TenantKey = "tenant"

// TenantResolver is satisfied by *service.TenantService.
type TenantResolver interface {
	Resolve(host, override string) (*model.Tenant, error)
}

// Tenant resolves the white-label instance from the Host header or the
// ?tenant= override. Unknown hosts are served by the primary instance.
func Tenant(resolver TenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := resolver.Resolve(c.Request.Host, c.Query("tenant"))
		if err != nil {
			if errors.Is(err, service.ErrTenantInactive) {
				response.PermissionError(c, err.Error())
				c.Abort()
				return
			}
			log.WithError(err).WithField("host", c.Request.Host).Error("tenant resolution failed")
			response.ServerError(c, "")
			c.Abort()
			return
		}

		c.Set(TenantKey, tenant)
		c.Next()
	}
}

// GetTenant returns the resolved tenant, nil for the primary instance.
func GetTenant(c *gin.Context) *model.Tenant {
	v, exists := c.Get(TenantKey)
	if !exists {
		return nil
	}
	tenant, _ := v.(*model.Tenant)
	return tenant
}

// GetTenantID is 0 for the primary instance.
func GetTenantID(c *gin.Context) int64 {
	if tenant := GetTenant(c); tenant != nil {
		return tenant.ID
	}
	return 0
}
