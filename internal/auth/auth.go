package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtIssuer   = "judoclub-api"
	jwtAudience = "judoclub-members"

	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

const (
	RoleMember = "member"
	RoleCoach  = "coach"
	RoleAdmin  = "admin"
)

// StaffRoles may manage the timetable and check members in.
var StaffRoles = []string{RoleCoach, RoleAdmin}

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrEmptyJWTSecret   = errors.New("jwt secret cannot be empty")
)

type JWTClaims struct {
	MemberID  int64     `json:"member_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

func ValidRole(role string) bool {
	switch role {
	case RoleMember, RoleCoach, RoleAdmin:
		return true
	}
	return false
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hashedPassword, plainPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword)) == nil
}

func sign(memberID int64, email, role string, typ TokenType, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptyJWTSecret
	}

	now := time.Now()
	claims := &JWTClaims{
		MemberID:  memberID,
		Email:     email,
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(memberID, 10),
			Issuer:    jwtIssuer,
			Audience:  jwt.ClaimStrings{jwtAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func GenerateAccessToken(memberID int64, email, role, secret string) (string, error) {
	return sign(memberID, email, role, TokenAccess, secret, AccessTokenTTL)
}

func GenerateRefreshToken(memberID int64, email, role, secret string) (string, error) {
	return sign(memberID, email, role, TokenRefresh, secret, RefreshTokenTTL)
}

// GenerateTokens issues the access/refresh pair handed out at login.
func GenerateTokens(memberID int64, email, role, accessSecret, refreshSecret string) (accessToken, refreshToken string, err error) {
	if accessToken, err = GenerateAccessToken(memberID, email, role, accessSecret); err != nil {
		return "", "", err
	}
	if refreshToken, err = GenerateRefreshToken(memberID, email, role, refreshSecret); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func ValidateToken(tokenString, secret string) (*JWTClaims, error) {
	if secret == "" {
		return nil, ErrEmptyJWTSecret
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, err
	case !token.Valid || claims.MemberID <= 0:
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// RefreshAccessToken trades a refresh token for a new access token carrying
// the same identity.
func RefreshAccessToken(refreshToken, refreshSecret, accessSecret string) (string, *JWTClaims, error) {
	claims, err := ValidateToken(refreshToken, refreshSecret)
	if err != nil {
		return "", nil, err
	}
	if claims.TokenType != TokenRefresh {
		return "", nil, ErrInvalidTokenType
	}

	access, err := GenerateAccessToken(claims.MemberID, claims.Email, claims.Role, accessSecret)
	if err != nil {
		return "", nil, err
	}
	return access, claims, nil
}
