package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xauti/content_go_server/internal/pkg/queue"
	"github.com/xauti/content_go_server/internal/pkg/ws"
)

func TestHealthHandler(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	router := gin.New()
	router.GET("/health", ctx.Health.Health)

	w := performRequest(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, parseResponse(t, w))
	assert.Equal(t, "ok", data["status"])
	assert.NotContains(t, data, "ws_connections")
	assert.NotContains(t, data, "queue_length")
}

func TestHealthHandler_HubAndQueue(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	jobQueue := queue.NewQueue(client, "health_queue")
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, jobQueue.Push(context.Background(), &queue.JobMessage{RequestID: i, Kind: "calendar"}))
	}

	health := NewHealthHandler(ctx.DB)
	health.SetHub(ws.NewHub())
	health.SetQueue(jobQueue)

	router := gin.New()
	router.GET("/health", health.Health)

	w := performRequest(router, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, parseResponse(t, w))
	assert.Equal(t, float64(0), data["ws_connections"])
	assert.Equal(t, float64(3), data["queue_length"])

	// a dead queue still reports healthy
	mr.Close()
	w = performRequest(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, dataMap(t, parseResponse(t, w)), "queue_length")
}
