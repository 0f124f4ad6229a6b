package localfs

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

// Signer issues short-lived object access tokens.
type Signer struct {
	key []byte
	now func() time.Time
}

func NewSigner(key string) *Signer {
	if key == "" {
		return nil
	}
	return &Signer{key: []byte(key), now: time.Now}
}

func (s *Signer) Sign(key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign object token: %w", err)
	}
	return token, nil
}

func (s *Signer) Verify(key, raw string) error {
	var claims jwt.RegisteredClaims
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return domain.WrapError(domain.ErrUnauthorized, "verify object token", err)
	}
	if claims.Subject != key {
		return domain.WrapError(domain.ErrUnauthorized, "verify object token", errors.New("token issued for another object"))
	}
	return nil
}
