package auth

import (
	"errors"
	"net/http"
	"strings"

	"judoclub/internal/api"

	"github.com/gin-gonic/gin"
)

const (
	ctxMemberID = "member_id"
	ctxEmail    = "member_email"
	ctxRole     = "member_role"
)

func AuthMiddleware(accessTokenSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid authorization header format"})
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Token is empty"})
			return
		}

		claims, err := ValidateToken(tokenString, accessTokenSecret)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Token expired"})
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid or malformed token"})
			}
			return
		}

		if claims.TokenType != TokenAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Access token required"})
			return
		}

		c.Set(ctxMemberID, claims.MemberID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRole, claims.Role)

		c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := GetRole(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Member role not found"})
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, api.ErrorResponse{Error: "Insufficient permissions"})
	}
}

func GetMemberID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(ctxMemberID)
	if !exists {
		return 0, false
	}

	id, ok := v.(int64)
	return id, ok
}

func GetRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxRole)
	if !exists {
		return "", false
	}

	role, ok := v.(string)
	return role, ok
}

// SetIdentity stores the caller identity the way AuthMiddleware does.
func SetIdentity(c *gin.Context, memberID int64, role string) {
	c.Set(ctxMemberID, memberID)
	c.Set(ctxRole, role)
}
