// Package auth issues and validates the JWTs guarding the engine API. A
// shared API token is exchanged for a short-lived signed token.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stock-pattern-engine/config"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrBadCredentials = errors.New("bad credentials")
)

// Service handles token exchange and validation.
type Service struct {
	secret   []byte
	apiToken string
	tokenTTL time.Duration
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret:   []byte(cfg.JWTSecret),
		apiToken: cfg.APIToken,
		tokenTTL: time.Duration(cfg.TokenTTLMin) * time.Minute,
	}
}

// ExchangeToken trades the shared API token for a signed JWT.
func (s *Service) ExchangeToken(apiToken string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(apiToken), []byte(s.apiToken)) != 1 {
		return "", ErrBadCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "api-client",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "stock-pattern-engine",
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks a bearer token's signature and expiry.
func (s *Service) Validate(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// TokenTTLSeconds reports the issued token lifetime.
func (s *Service) TokenTTLSeconds() int64 {
	return int64(s.tokenTTL.Seconds())
}
