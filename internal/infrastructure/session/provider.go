// Package session owns credential freshness for outbound document access.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
)

const defaultTTL = time.Hour

// LocalProvider issues HS256 access tokens for a single service identity.
type LocalProvider struct {
	secret []byte
	userID string
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current *domain.Session
}

func NewLocalProvider(secret, userID string, ttl time.Duration) (*LocalProvider, error) {
	if secret == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new session provider", errors.New("secret is required"))
	}
	if userID == "" {
		userID = "document-service"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &LocalProvider{secret: []byte(secret), userID: userID, ttl: ttl, now: time.Now}, nil
}

// CurrentSession returns nil, nil when no valid session exists.
func (p *LocalProvider) CurrentSession(_ context.Context) (*domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current.Valid(p.now()) {
		return nil, nil
	}
	copied := *p.current
	return &copied, nil
}

func (p *LocalProvider) RefreshSession(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := p.now()
	expires := now.Add(p.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   p.userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	p.mu.Lock()
	p.current = &domain.Session{
		UserID:       p.userID,
		AccessToken:  token,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    expires,
	}
	p.mu.Unlock()
	return nil
}

// Verify checks an access token and returns its subject.
func (p *LocalProvider) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}); err != nil {
		return "", domain.WrapError(domain.ErrUnauthorized, "verify session token", err)
	}
	return claims.Subject, nil
}
