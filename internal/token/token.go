// Package token issues and verifies session tokens. A token is an HS256 JWT
// binding a phone number to an expiry; the same process-wide secret signs and
// verifies.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the session lifetime when no TTL is configured.
const DefaultTTL = 30 * 24 * time.Hour

// ErrInvalidToken is returned for malformed, tampered, or expired tokens.
var ErrInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	PhoneNumber string `json:"phone_number"`
	jwt.RegisteredClaims
}

// Service signs and verifies session tokens with a symmetric secret.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService builds a token service. A zero ttl falls back to DefaultTTL.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{secret: []byte(secret), ttl: ttl}, nil
}

// Issue creates a signed token for the phone number.
func (s *Service) Issue(phone string) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		PhoneNumber: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   phone,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded phone number.
// The phone number is an identity capability only; callers re-resolve the
// user row on every request.
func (s *Service) Verify(tokenString string) (string, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.PhoneNumber == "" {
		return "", ErrInvalidToken
	}
	return claims.PhoneNumber, nil
}
