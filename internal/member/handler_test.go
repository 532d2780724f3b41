package member

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"judoclub/internal/api"
	"judoclub/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMemberRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(NewService(NewMemoryRepository(), "test-secret", ""))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if id, err := strconv.ParseInt(c.GetHeader("X-Member-ID"), 10, 64); err == nil {
			auth.SetIdentity(c, id, auth.RoleAdmin)
		}
		c.Next()
	})
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	router.POST("/auth/refresh", h.RefreshToken)
	router.GET("/me", h.GetMe)
	router.PUT("/admin/members/:memberID/role", h.SetRole)
	return router
}

func send(router *gin.Engine, method, path, memberID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if memberID != "" {
		req.Header.Set("X-Member-ID", memberID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginFlow(t *testing.T) {
	router := setupMemberRouter(t)

	w := send(router, http.MethodPost, "/auth/register", "", `{"name":"Aiko Tanaka","email":"aiko@example.com","password":"password123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var registered LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	assert.NotEmpty(t, registered.AccessToken)
	assert.Equal(t, auth.RoleMember, registered.Member.Role)
	assert.NotContains(t, w.Body.String(), "password_hash")

	w = send(router, http.MethodPost, "/auth/register", "", `{"name":"Aiko Tanaka","email":"aiko@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = send(router, http.MethodPost, "/auth/login", "", `{"email":"aiko@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = send(router, http.MethodPost, "/auth/login", "", `{"email":"aiko@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = send(router, http.MethodPost, "/auth/refresh", "", `{"refresh_token":"`+registered.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var refreshed RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	assert.NotEmpty(t, refreshed.AccessToken)

	id := strconv.FormatInt(registered.Member.ID, 10)
	w = send(router, http.MethodGet, "/me", id, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = send(router, http.MethodPut, "/admin/members/"+id+"/role", id, `{"role":"coach"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated Member
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, auth.RoleCoach, updated.Role)
}

func TestRegisterValidation(t *testing.T) {
	router := setupMemberRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@example.com","password":"password123"}`},
		{"bad email", `{"name":"Aiko","email":"nope","password":"password123"}`},
		{"short password", `{"name":"Aiko","email":"a@example.com","password":"short"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(router, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestMeAndRoleErrors(t *testing.T) {
	router := setupMemberRouter(t)

	w := send(router, http.MethodGet, "/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = send(router, http.MethodGet, "/me", "42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(router, http.MethodPut, "/admin/members/42/role", "1", `{"role":"coach"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(router, http.MethodPut, "/admin/members/42/role", "1", `{"role":"grandmaster"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(router, http.MethodPut, "/admin/members/x/role", "1", `{"role":"coach"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid member ID", resp.Error)
}
