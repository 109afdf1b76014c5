package shipping

import (
	"context"
	"slices"
	"sync"
	"time"
)

// maxRejected bounds how many refused tokens are remembered per account.
const maxRejected = 8

// Token is a bearer token held in memory.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

func (t Token) validAt(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// TokenStore persists a freshly issued token so later processes can reuse it.
type TokenStore interface {
	SaveToken(ctx context.Context, token PersistedToken) error
}

// TokenCache holds one token per account. Tokens discarded after a 401/403 are
// remembered so that a stale persisted copy of any of them is not reused.
type TokenCache struct {
	mu       sync.RWMutex
	tokens   map[string]Token
	rejected map[string][]string
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens:   make(map[string]Token),
		rejected: make(map[string][]string),
	}
}

// Get returns the cached token for key if it has not expired at now.
func (c *TokenCache) Get(key string, now time.Time) (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tokens[key]
	if !ok || !t.validAt(now) {
		return Token{}, false
	}
	return t, true
}

// Set replaces the cached token for key.
func (c *TokenCache) Set(key string, t Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = t
	if i := slices.Index(c.rejected[key], t.Value); i >= 0 {
		c.rejected[key] = slices.Delete(c.rejected[key], i, i+1)
	}
}

// Invalidate drops the cached token for key and marks value as rejected by the provider.
func (c *TokenCache) Invalidate(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.tokens[key]; ok && cur.Value == value {
		delete(c.tokens, key)
	}
	if value == "" || slices.Contains(c.rejected[key], value) {
		return
	}
	seen := append(c.rejected[key], value)
	if len(seen) > maxRejected {
		seen = seen[len(seen)-maxRejected:]
	}
	c.rejected[key] = seen
}

// Rejected reports whether the provider refused value for key. Only the most
// recent maxRejected refusals are remembered.
func (c *TokenCache) Rejected(key, value string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.rejected[key], value)
}
