package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/internal/pkg/queue"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/pkg/ws"
)

type HealthHandler struct {
	db    *gorm.DB
	hub   *ws.Hub
	queue *queue.Queue
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// SetHub adds the open websocket count to the report.
func (h *HealthHandler) SetHub(hub *ws.Hub) {
	h.hub = hub
}

// SetQueue adds the pending job backlog to the report. Only set in redis
// queue mode.
func (h *HealthHandler) SetQueue(q *queue.Queue) {
	h.queue = q
}

// Health pings the database. Load balancers read the HTTP status.
// GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		response.ErrorWithStatus(c, http.StatusServiceUnavailable, response.CodeServerError, "database unavailable")
		return
	}

	data := gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if h.hub != nil {
		data["ws_connections"] = h.hub.ConnectionCount()
	}
	if h.queue != nil {
		// a slow queue degrades the report, not the status
		if length, err := h.queue.Length(ctx); err != nil {
			log.WithError(err).Warn("failed to read queue length")
		} else {
			data["queue_length"] = length
		}
	}

	response.Success(c, data)
}
