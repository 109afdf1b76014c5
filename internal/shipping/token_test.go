package shipping

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenCache_GetRespectsExpiry(t *testing.T) {
	c := NewTokenCache()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.Set("a@example.com", Token{Value: "t1", ExpiresAt: now.Add(time.Hour)})

	got, ok := c.Get("a@example.com", now)
	assert.True(t, ok)
	assert.Equal(t, "t1", got.Value)

	_, ok = c.Get("a@example.com", now.Add(time.Hour))
	assert.False(t, ok)

	_, ok = c.Get("b@example.com", now)
	assert.False(t, ok)
}

func TestTokenCache_InvalidateRemembersRejectedValue(t *testing.T) {
	c := NewTokenCache()
	exp := time.Now().Add(time.Hour)
	c.Set("k", Token{Value: "old", ExpiresAt: exp})

	c.Invalidate("k", "old")
	_, ok := c.Get("k", time.Now())
	assert.False(t, ok)
	assert.True(t, c.Rejected("k", "old"))

	c.Set("k", Token{Value: "new", ExpiresAt: exp})
	assert.True(t, c.Rejected("k", "old"))
	assert.False(t, c.Rejected("k", "new"))

	c.Set("k", Token{Value: "old", ExpiresAt: exp})
	assert.False(t, c.Rejected("k", "old"))
}

func TestTokenCache_RemembersEveryRecentRejection(t *testing.T) {
	c := NewTokenCache()

	c.Invalidate("k", "a")
	c.Invalidate("k", "b")
	assert.True(t, c.Rejected("k", "a"))
	assert.True(t, c.Rejected("k", "b"))
	assert.False(t, c.Rejected("other", "a"))

	for i := range maxRejected {
		c.Invalidate("k", fmt.Sprintf("t%d", i))
	}
	assert.False(t, c.Rejected("k", "a"), "oldest rejection is forgotten")
	assert.True(t, c.Rejected("k", fmt.Sprintf("t%d", maxRejected-1)))
}

func TestTokenCache_ConcurrentAccess(t *testing.T) {
	c := NewTokenCache()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("k", Token{Value: "v", ExpiresAt: exp})
		}()
		go func() {
			defer wg.Done()
			if tok, ok := c.Get("k", time.Now()); ok {
				assert.Equal(t, "v", tok.Value)
			}
		}()
	}
	wg.Wait()
}
