package member

import (
	"errors"
	"net/http"
	"strconv"

	"judoclub/internal/api"
	"judoclub/internal/auth"
	"judoclub/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register godoc
// @Summary      Register new member
// @Description  Creates a member account and returns access & refresh tokens.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      member.RegisterRequest  true  "Member registration data"
// @Success      201      {object}  member.LoginResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	m, accessToken, refreshToken, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Email already registered", Code: "email_exists"})
			return
		}
		logger.Error("register failed", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create member"})
		return
	}

	c.JSON(http.StatusCreated, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Member:       *m,
	})
}

// Login godoc
// @Summary      Login
// @Description  Authenticates a member by email and password.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      member.LoginRequest  true  "Credentials"
// @Success      200      {object}  member.LoginResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	m, accessToken, refreshToken, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Member:       *m,
	})
}

// GetMe godoc
// @Summary      Current member
// @Tags         members
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  member.Member
// @Failure      401  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /me [get]
func (h *Handler) GetMe(c *gin.Context) {
	memberID, ok := auth.GetMemberID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member not authenticated"})
		return
	}

	m, err := h.service.GetByID(c.Request.Context(), memberID)
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Member not found"})
		return
	}

	c.JSON(http.StatusOK, m)
}

// RefreshToken godoc
// @Summary      Refresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      member.RefreshRequest  true  "Refresh token"
// @Success      200      {object}  member.RefreshResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "refresh_token is required"})
		return
	}

	accessToken, m, err := h.service.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "member not found"})
			return
		}
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid or expired refresh token"})
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{AccessToken: accessToken, Member: *m})
}

// SetRole godoc
// @Summary      Change a member's role
// @Tags         admin,members
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        memberID  path  int                     true  "Member ID"
// @Param        request   body  member.SetRoleRequest   true  "New role"
// @Success      200  {object}  member.Member
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /admin/members/{memberID}/role [put]
func (h *Handler) SetRole(c *gin.Context) {
	memberID, err := strconv.ParseInt(c.Param("memberID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid member ID"})
		return
	}

	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindError(c, err)
		return
	}

	m, err := h.service.SetRole(c.Request.Context(), memberID, req.Role)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Member not found"})
			return
		}
		if errors.Is(err, ErrInvalidRole) {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error(), Code: "invalid_role"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to update role"})
		return
	}

	c.JSON(http.StatusOK, m)
}
