package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddlewareHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	refresh, err := GenerateRefreshToken(1, "judoka@example.com", RoleMember, "secret")
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"Empty header", "", http.StatusUnauthorized},
		{"Invalid format", "Token abc", http.StatusUnauthorized},
		{"Empty token", "Bearer ", http.StatusUnauthorized},
		{"Garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"Refresh token", "Bearer " + refresh, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			req := httptest.NewRequest("GET", "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			c.Request = req

			AuthMiddleware("secret")(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestAuthMiddleware_SetsIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	token, err := GenerateAccessToken(9, "sensei@example.com", RoleCoach, "secret")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/", AuthMiddleware("secret"), func(c *gin.Context) {
		id, ok := GetMemberID(c)
		require.True(t, ok)
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":9,"role":"coach"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		role           any
		allowed        []string
		expectedStatus int
	}{
		{"Exact role", RoleAdmin, []string{RoleAdmin}, http.StatusOK},
		{"One of several", RoleCoach, []string{RoleCoach, RoleAdmin}, http.StatusOK},
		{"Missing role", nil, []string{RoleAdmin}, http.StatusUnauthorized},
		{"Wrong role type", 123, []string{RoleAdmin}, http.StatusUnauthorized},
		{"Insufficient role", RoleMember, []string{RoleCoach, RoleAdmin}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			if tt.role != nil {
				c.Set(ctxRole, tt.role)
			}
			c.Request = httptest.NewRequest("GET", "/", nil)

			RequireRole(tt.allowed...)(c)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestGetMemberID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		value    any
		expected int64
		ok       bool
	}{
		{"Valid ID", int64(42), 42, true},
		{"Missing ID", nil, 0, false},
		{"Wrong type", "abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			if tt.value != nil {
				c.Set(ctxMemberID, tt.value)
			}

			id, ok := GetMemberID(c)
			assert.Equal(t, tt.expected, id)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
