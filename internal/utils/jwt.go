package utils // package utils provides token, credential and input helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminRole is the only role carried by issued tokens.
const AdminRole = "admin"

// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// AdminToken is a signed session token returned by the admin login.
type AdminToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // UTC expiration time
}

// AdminClaims is the payload of an admin session token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewAdminToken signs an HS256 token for the shared admin identity. The
// subject names who logged in so payment verifications can be attributed.
func NewAdminToken(secret, subject string, ttl time.Duration) (AdminToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AdminToken{}, fmt.Errorf("sign admin token: %w", err)
	}
	return AdminToken{Token: signed, Exp: exp}, nil
}

// ParseAdminToken validates signature, algorithm and expiry and returns the
// claims. Any failure is reported as ErrInvalidToken.
func ParseAdminToken(secret, raw string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
