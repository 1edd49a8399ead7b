package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/service"
)

// QuotaCheck refuses early when the user has no generations left. The
// service still consumes quota atomically, this only saves a round trip.
func QuotaCheck(quotaService *service.QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		hasQuota, err := quotaService.CheckQuota(userID)
		if err != nil {
			response.ServerError(c, "quota check failed")
			c.Abort()
			return
		}

		if !hasQuota {
			response.QuotaError(c, "monthly generation limit reached")
			c.Abort()
			return
		}

		c.Next()
	}
}
