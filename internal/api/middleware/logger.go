package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Logger writes one structured line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
			"tenant_id": GetTenantID(c),
		}
		if userID, ok := GetUserID(c); ok {
			fields["user_id"] = userID
		}
		if fields["path"] == "" {
			fields["path"] = c.Request.URL.Path
		}

		entry := log.WithFields(fields)
		switch {
		case len(c.Errors) > 0:
			entry.Warn(c.Errors.String())
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		default:
			entry.Debug("request")
		}
	}
}
