package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the token failed signature or claim
	// validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenExpired indicates the token's expiry has passed.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrMissingSubject indicates a token without a principal.
	ErrMissingSubject = errors.New("auth: token has no subject")
)

// Claims are the JWT claims carried by SensorGrid bearer tokens.
//
// The subject is the caller principal: the identity that owns devices,
// holds a wallet balance, and appears in access entries. The service
// trusts the subject completely once the signature checks out.
type Claims struct {
	jwt.RegisteredClaims
}

// Principal returns the caller identity the token asserts.
func (c *Claims) Principal() string {
	return c.Subject
}

// GenerateToken issues a signed HS256 token for the given principal.
func GenerateToken(secret, principal string, ttl time.Duration) (string, error) {
	if principal == "" {
		return "", ErrMissingSubject
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			Issuer:    "sensorgrid",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a bearer token and returns its claims.
//
// Only HS256 is accepted; a token signed with any other method is
// rejected before signature verification.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}
