package checkin

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "judoclub-checkin"

// Token is the server-side view of a check-in credential.
type Token struct {
	MemberID   int64
	Nonce      string
	IssuedAt   time.Time
	ValidUntil time.Time
}

// IssuedToken is what the member's device renders as a QR code.
type IssuedToken struct {
	Token      string    `json:"token"`
	MemberID   int64     `json:"member_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ValidUntil time.Time `json:"valid_until"`
}

type tokenClaims struct {
	MemberID int64 `json:"mid"`
	jwt.RegisteredClaims
}

type codec struct {
	secret []byte
}

var errBadPayload = errors.New("malformed check-in token")

// newToken truncates to whole seconds because the payload carries
// NumericDate values.
func newToken(memberID int64, now time.Time, ttl time.Duration) Token {
	issued := now.Truncate(time.Second)
	return Token{
		MemberID:   memberID,
		Nonce:      uuid.NewString(),
		IssuedAt:   issued,
		ValidUntil: issued.Add(ttl),
	}
}

func (c codec) encode(t Token) (string, error) {
	claims := tokenClaims{
		MemberID: t.MemberID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ID:        t.Nonce,
			IssuedAt:  jwt.NewNumericDate(t.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(t.ValidUntil),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// decode checks the signature and shape only. Expiry is judged by the
// caller against an explicit now.
func (c codec) decode(payload string) (Token, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(payload, &claims,
		func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Token{}, errBadPayload
	}
	if claims.Issuer != tokenIssuer || claims.ID == "" || claims.MemberID <= 0 ||
		claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Token{}, errBadPayload
	}
	return Token{
		MemberID:   claims.MemberID,
		Nonce:      claims.ID,
		IssuedAt:   claims.IssuedAt.Time,
		ValidUntil: claims.ExpiresAt.Time,
	}, nil
}
