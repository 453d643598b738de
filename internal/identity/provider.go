// Package identity supplies the bearer credential presented on the
// realtime handshake.
package identity

import (
	"context"
	"sync"
)

// Provider reports sign-in state and hands out credentials.
type Provider interface {
	IsSignedIn() bool
	Token(ctx context.Context) (string, error)
}

// StaticProvider serves a fixed token. An empty token means signed out.
type StaticProvider struct {
	mu    sync.RWMutex
	token string
}

// NewStaticProvider creates a provider for token.
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

// IsSignedIn implements Provider.
func (p *StaticProvider) IsSignedIn() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token != ""
}

// Token implements Provider.
func (p *StaticProvider) Token(_ context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return "", ErrSignedOut
	}
	return p.token, nil
}

// SignOut forgets the token.
func (p *StaticProvider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
}
