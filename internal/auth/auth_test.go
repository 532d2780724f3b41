package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345"

func TestHashPassword(t *testing.T) {
	t.Run("Successfully hash password", func(t *testing.T) {
		password := "uchikomi-every-day"
		hashed, err := HashPassword(password)

		assert.NoError(t, err)
		assert.NotEmpty(t, hashed)
		assert.NotEqual(t, password, hashed)
	})

	t.Run("Different hashes for same password", func(t *testing.T) {
		hash1, _ := HashPassword("samePassword")
		hash2, _ := HashPassword("samePassword")

		assert.NotEqual(t, hash1, hash2)
	})
}

func TestCheckPassword(t *testing.T) {
	hashed, _ := HashPassword("correctPassword")

	assert.True(t, CheckPassword(hashed, "correctPassword"))
	assert.False(t, CheckPassword(hashed, "wrongPassword"))
	assert.False(t, CheckPassword(hashed, ""))
}

func TestGenerateAccessToken(t *testing.T) {
	t.Run("Fail with empty secret", func(t *testing.T) {
		token, err := GenerateAccessToken(1, "judoka@example.com", RoleMember, "")

		assert.Equal(t, ErrEmptyJWTSecret, err)
		assert.Empty(t, token)
	})

	t.Run("Token contains correct claims", func(t *testing.T) {
		token, err := GenerateAccessToken(42, "sensei@example.com", RoleCoach, testSecret)
		require.NoError(t, err)

		claims, err := ValidateToken(token, testSecret)
		require.NoError(t, err)

		assert.Equal(t, int64(42), claims.MemberID)
		assert.Equal(t, "sensei@example.com", claims.Email)
		assert.Equal(t, RoleCoach, claims.Role)
		assert.Equal(t, TokenAccess, claims.TokenType)
		assert.Equal(t, jwtIssuer, claims.Issuer)
		assert.Contains(t, claims.Audience, jwtAudience)
	})

	t.Run("Access token expires after 15 minutes", func(t *testing.T) {
		token, err := GenerateAccessToken(1, "judoka@example.com", RoleMember, testSecret)
		require.NoError(t, err)

		claims, err := ValidateToken(token, testSecret)
		require.NoError(t, err)

		diff := claims.ExpiresAt.Time.Sub(time.Now().Add(AccessTokenTTL)).Abs()
		assert.Less(t, diff, 2*time.Second)
	})
}

func TestGenerateTokens(t *testing.T) {
	t.Run("Successfully generate both tokens", func(t *testing.T) {
		accessToken, refreshToken, err := GenerateTokens(1, "judoka@example.com", RoleMember, "access-secret", "refresh-secret")

		assert.NoError(t, err)
		assert.NotEmpty(t, accessToken)
		assert.NotEmpty(t, refreshToken)
		assert.NotEqual(t, accessToken, refreshToken)
	})

	t.Run("Fail with empty refresh secret", func(t *testing.T) {
		accessToken, refreshToken, err := GenerateTokens(1, "judoka@example.com", RoleMember, "access-secret", "")

		assert.Error(t, err)
		assert.Empty(t, accessToken)
		assert.Empty(t, refreshToken)
	})
}

func TestValidateToken(t *testing.T) {
	t.Run("Fail with wrong secret", func(t *testing.T) {
		token, _ := GenerateAccessToken(100, "judoka@example.com", RoleAdmin, testSecret)

		claims, err := ValidateToken(token, "wrong-secret")
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("Fail with invalid token format", func(t *testing.T) {
		claims, err := ValidateToken("invalid.token.format", testSecret)
		assert.Error(t, err)
		assert.Nil(t, claims)
	})

	t.Run("Fail with expired token", func(t *testing.T) {
		pastTime := time.Now().Add(-1 * time.Hour)

		claims := &JWTClaims{
			MemberID:  100,
			Email:     "judoka@example.com",
			Role:      RoleMember,
			TokenType: "access",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    jwtIssuer,
				Audience:  []string{jwtAudience},
				ExpiresAt: jwt.NewNumericDate(pastTime),
				IssuedAt:  jwt.NewNumericDate(pastTime.Add(-15 * time.Minute)),
			},
		}
		tokenString, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))

		validated, err := ValidateToken(tokenString, testSecret)
		assert.Equal(t, ErrTokenExpired, err)
		assert.Nil(t, validated)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	accessSecret := "access-secret"
	refreshSecret := "refresh-secret"

	t.Run("Successfully refresh access token", func(t *testing.T) {
		refreshToken, _ := GenerateRefreshToken(7, "judoka@example.com", RoleMember, refreshSecret)

		newAccessToken, claims, err := RefreshAccessToken(refreshToken, refreshSecret, accessSecret)
		require.NoError(t, err)
		assert.Equal(t, int64(7), claims.MemberID)

		accessClaims, err := ValidateToken(newAccessToken, accessSecret)
		require.NoError(t, err)
		assert.Equal(t, TokenAccess, accessClaims.TokenType)
	})

	t.Run("Fail with access token instead of refresh token", func(t *testing.T) {
		accessToken, _ := GenerateAccessToken(7, "judoka@example.com", RoleMember, accessSecret)

		newAccessToken, claims, err := RefreshAccessToken(accessToken, accessSecret, accessSecret)
		assert.Equal(t, ErrInvalidTokenType, err)
		assert.Empty(t, newAccessToken)
		assert.Nil(t, claims)
	})
}

func TestValidateToken_RejectsForeignTokens(t *testing.T) {
	base := func(memberID int64) *JWTClaims {
		now := time.Now()
		return &JWTClaims{
			MemberID:  memberID,
			Role:      RoleAdmin,
			TokenType: TokenAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    jwtIssuer,
				Audience:  []string{jwtAudience},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
		}
	}

	t.Run("other HMAC algorithm", func(t *testing.T) {
		tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS512, base(3)).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = ValidateToken(tokenString, testSecret)
		assert.Error(t, err)
	})

	t.Run("missing member id", func(t *testing.T) {
		tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, base(0)).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = ValidateToken(tokenString, testSecret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("subject carries the member id", func(t *testing.T) {
		token, err := GenerateAccessToken(12, "judoka@example.com", RoleMember, testSecret)
		require.NoError(t, err)

		claims, err := ValidateToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, "12", claims.Subject)
		assert.NotEmpty(t, claims.ID)
	})
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleMember, RoleCoach, RoleAdmin} {
		assert.True(t, ValidRole(role), role)
	}
	assert.False(t, ValidRole("user"))
	assert.False(t, ValidRole(""))
}
