package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/pkg/response"
)

// UserLoader is satisfied by *service.AuthService.
type UserLoader interface {
	GetUserByID(id int64) (*model.User, error)
}

// AdminOnly lets through administrators of the primary instance. Tenant
// admins cannot manage other tenants.
func AdminOnly(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		user, err := users.GetUserByID(userID)
		if err != nil {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		if !user.IsAdmin || user.TenantID != 0 {
			response.PermissionError(c, "admin access required")
			c.Abort()
			return
		}

		c.Next()
	}
}
