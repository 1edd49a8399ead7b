package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xauti/content_go_server/internal/pkg/jwt"
	"github.com/xauti/content_go_server/internal/pkg/response"
)

const (
	UserIDKey   = "userID"
	TenantIDKey = "tenantID"
)

// Auth JWT authentication. A token only works on the instance that issued
// it, so it must run after Tenant.
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "missing authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "authorization header must be a bearer token")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "invalid or expired token")
			c.Abort()
			return
		}

		if claims.TenantID != GetTenantID(c) {
			response.AuthError(c, "token was issued by another instance")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(TenantIDKey, claims.TenantID)
		c.Next()
	}
}

// GetUserID reads the authenticated user id.
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}
