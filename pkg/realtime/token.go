package realtime

import (
	"slices"
	"sync"
)

// TokenSource supplies the bearer credential embedded in the handshake.
// An empty token means the user is not authenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() string { return string(t) }

// TokenStore holds the current token and notifies listeners when it
// changes. A Client built with WithTokenStore disconnects when the token
// is cleared (for example on logout).
type TokenStore struct {
	mu        sync.RWMutex
	token     string
	listeners []func(token string)
}

// NewTokenStore returns a store holding token.
func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

// Token returns the current token.
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the token and notifies listeners.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(token)
	}
}

// Clear removes the token.
func (s *TokenStore) Clear() { s.Set("") }

// OnChange registers fn to be called after every Set.
func (s *TokenStore) OnChange(fn func(token string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
