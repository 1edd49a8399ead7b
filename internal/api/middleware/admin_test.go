package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/pkg/response"
)

type stubUsers map[int64]*model.User

func (s stubUsers) GetUserByID(id int64) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func TestAdminOnly(t *testing.T) {
	users := stubUsers{
		1: {ID: 1, IsAdmin: true},
		2: {ID: 2},
		3: {ID: 3, IsAdmin: true, TenantID: 9},
	}

	tests := []struct {
		name     string
		userID   int64
		wantCode int
	}{
		{"primary admin", 1, response.CodeSuccess},
		{"regular user", 2, response.CodePermissionDenied},
		{"tenant admin", 3, response.CodePermissionDenied},
		{"unknown user", 4, response.CodeAuthFailed},
		{"anonymous", 0, response.CodeAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				if tt.userID != 0 {
					c.Set(UserIDKey, tt.userID)
				}
				c.Next()
			})
			router.Use(AdminOnly(users))
			router.GET("/test", func(c *gin.Context) {
				response.Success(c, nil)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantCode, parseResponse(t, w).Code)
		})
	}
}
