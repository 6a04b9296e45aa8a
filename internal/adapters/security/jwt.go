// Package security provides password hashing and access-token signing.
package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hylla/minikan/internal/domain"
)

// DefaultTokenTTL matches the lifetime of the client token cookie.
const DefaultTokenTTL = 24 * time.Hour

const tokenIssuer = "minikan"

// JWTSigner issues and verifies HS256 access tokens.
type JWTSigner struct {
	secret []byte
	ttl    time.Duration
}

type accessClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// NewJWTSigner builds a signer from a shared secret.
func NewJWTSigner(secret string, ttl time.Duration) (*JWTSigner, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTSigner{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for user valid from now until now+ttl.
func (s *JWTSigner) Issue(user domain.User, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}

// Verify validates raw at now and returns the subject user id.
func (s *JWTSigner) Verify(raw string, now time.Time) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token claims")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
