package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/pkg/jwt"
	"github.com/xauti/content_go_server/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret-key-for-middleware"

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// withTenant stands in for the Tenant middleware.
func withTenant(tenant *model.Tenant) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(TenantKey, tenant)
		c.Next()
	}
}

func authRouter(tenant *model.Tenant) *gin.Engine {
	router := gin.New()
	router.Use(withTenant(tenant))
	router.Use(Auth(testJWTSecret))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})
	return router
}

func doAuth(router http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuth_Success(t *testing.T) {
	router := gin.New()
	router.Use(withTenant(nil))
	router.Use(Auth(testJWTSecret))
	router.GET("/test", func(c *gin.Context) {
		userID, ok := GetUserID(c)
		assert.True(t, ok)
		assert.Equal(t, int64(123), userID)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	token, err := jwt.GenerateToken(123, 0, testJWTSecret, 24)
	require.NoError(t, err)

	w := doAuth(router, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":123}`, w.Body.String())
}

func TestAuth_Rejected(t *testing.T) {
	wrongSecret, err := jwt.GenerateToken(123, 0, "different-secret", 24)
	require.NoError(t, err)
	expired, err := jwt.GenerateToken(123, 0, testJWTSecret, 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "some-token-without-bearer"},
		{"invalid token", "Bearer invalid-token"},
		{"wrong secret", "Bearer " + wrongSecret},
		{"expired", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuth(authRouter(nil), tt.header)
			resp := parseResponse(t, w)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, response.CodeAuthFailed, resp.Code)
		})
	}
}

func TestAuth_TenantMismatch(t *testing.T) {
	tenant := &model.Tenant{ID: 7, IsActive: true}

	primaryToken, err := jwt.GenerateToken(1, 0, testJWTSecret, 24)
	require.NoError(t, err)
	tenantToken, err := jwt.GenerateToken(1, 7, testJWTSecret, 24)
	require.NoError(t, err)

	// A primary-instance token is refused on a tenant host and vice versa.
	w := doAuth(authRouter(tenant), "Bearer "+primaryToken)
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)

	w = doAuth(authRouter(nil), "Bearer "+tenantToken)
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)

	w = doAuth(authRouter(tenant), "Bearer "+tenantToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestGetUserID(t *testing.T) {
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		_, ok := GetUserID(c)
		assert.False(t, ok)

		c.Set(UserIDKey, "not-an-int64")
		userID, ok := GetUserID(c)
		assert.False(t, ok)
		assert.Equal(t, int64(0), userID)

		c.Set(UserIDKey, int64(789))
		userID, ok = GetUserID(c)
		assert.True(t, ok)
		assert.Equal(t, int64(789), userID)
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
