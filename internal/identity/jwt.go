package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures token minting.
type JWTConfig struct {
	Secret  string
	Subject string
	Issuer  string
	TTL     time.Duration
	// RefreshBefore renews a cached token this long before it expires.
	RefreshBefore time.Duration
}

// DefaultJWTConfig returns default minting settings.
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		Issuer:        "incident-garden",
		TTL:           15 * time.Minute,
		RefreshBefore: time.Minute,
	}
}

// Claims are the claims carried by viewer tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTProvider mints short-lived HS256 tokens for a single subject.
type JWTProvider struct {
	config JWTConfig
	now    func() time.Time

	mu        sync.Mutex
	signedOut bool
	token     string
	expiresAt time.Time
}

// NewJWTProvider creates a signed-in provider.
func NewJWTProvider(config JWTConfig) (*JWTProvider, error) {
	if config.Secret == "" {
		return nil, ErrNoSecret
	}
	if config.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &JWTProvider{config: config, now: time.Now}, nil
}

// IsSignedIn implements Provider.
func (p *JWTProvider) IsSignedIn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.signedOut
}

// Token returns the cached token or mints a new one when the cached token
// is within RefreshBefore of expiry.
func (p *JWTProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.signedOut {
		return "", ErrSignedOut
	}

	now := p.now()
	if p.token != "" && now.Add(p.config.RefreshBefore).Before(p.expiresAt) {
		return p.token, nil
	}

	expiresAt := now.Add(p.config.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.config.Subject,
			Issuer:    p.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	p.token, p.expiresAt = token, expiresAt
	return token, nil
}

// SignOut drops the cached token. Later Token calls fail.
func (p *JWTProvider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signedOut = true
	p.token = ""
	p.expiresAt = time.Time{}
}

// ValidateToken verifies an HS256 token signed with secret and returns its
// claims.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
