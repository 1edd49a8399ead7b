package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/pkg/response"
	"github.com/xauti/content_go_server/internal/repository"
	"github.com/xauti/content_go_server/internal/service"
	"github.com/xauti/content_go_server/internal/testutil"
)

func setupQuotaService(t *testing.T) (*service.QuotaService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	userRepo := repository.NewUserRepository(db)
	quotaService := service.NewQuotaService(userRepo, cfg)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return quotaService, db, cleanup
}

func quotaRouter(quotaService *service.QuotaService, userID int64) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	})
	router.Use(QuotaCheck(quotaService))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func TestQuotaCheck(t *testing.T) {
	quotaService, db, cleanup := setupQuotaService(t)
	defer cleanup()

	tests := []struct {
		name     string
		used     int
		bonus    int
		wantCode int
	}{
		{"available", 0, 0, -1},
		{"last generation", 4, 0, -1},
		{"exhausted", 5, 0, response.CodeQuotaExceeded},
		{"bonus extends limit", 5, 2, -1},
		{"bonus spent", 7, 2, response.CodeQuotaExceeded},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := testutil.TestUser(t, db,
				testutil.WithEmail(fmt.Sprintf("quota%d@example.com", i)),
				testutil.WithUsage(tt.used, tt.bonus))

			req := httptest.NewRequest("GET", "/test", nil)
			w := httptest.NewRecorder()
			quotaRouter(quotaService, user.ID).ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			if tt.wantCode < 0 {
				assert.JSONEq(t, `{"message":"ok"}`, w.Body.String())
				return
			}
			assert.Equal(t, tt.wantCode, parseResponse(t, w).Code)
		})
	}
}

func TestQuotaCheck_FreeTier(t *testing.T) {
	quotaService, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithTier("free", 0))

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	quotaRouter(quotaService, user.ID).ServeHTTP(w, req)

	assert.Equal(t, response.CodeQuotaExceeded, parseResponse(t, w).Code)
}

func TestQuotaCheck_NoUserID(t *testing.T) {
	quotaService, _, cleanup := setupQuotaService(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	quotaRouter(quotaService, 0).ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestQuotaCheck_UserNotFound(t *testing.T) {
	quotaService, _, cleanup := setupQuotaService(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	quotaRouter(quotaService, 99999).ServeHTTP(w, req)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeServerError, resp.Code)
}
