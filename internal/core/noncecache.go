package core

import (
	"strings"
	"sync"
	"time"

	"github.com/stabledesk/liquidity-router/internal/port"
)

type nonceEntry struct {
	nonce uint64
	seen  time.Time
}

// MemNonceCache tracks the highest nonce observed per seller in-process,
// evicting entries older than the window on each write. State does not
// survive a restart; the store-side nonce check remains authoritative.
type MemNonceCache struct {
	mu      sync.Mutex
	entries map[string]nonceEntry
	window  time.Duration
	now     func() time.Time
}

var _ port.NonceCache = (*MemNonceCache)(nil)

func NewMemNonceCache(window time.Duration) *MemNonceCache {
	return &MemNonceCache{
		entries: make(map[string]nonceEntry),
		window:  window,
		now:     time.Now,
	}
}

func (c *MemNonceCache) Stale(seller string, nonce uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[nonceKey(seller)]
	if !ok {
		return false
	}
	if c.window > 0 && c.now().Sub(e.seen) > c.window {
		return false
	}
	return nonce <= e.nonce
}

func (c *MemNonceCache) Observe(seller string, nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	key := nonceKey(seller)
	if e, ok := c.entries[key]; !ok || nonce > e.nonce {
		c.entries[key] = nonceEntry{nonce: nonce, seen: now}
	}
	if c.window <= 0 {
		return
	}
	for k, e := range c.entries {
		if now.Sub(e.seen) > c.window {
			delete(c.entries, k)
		}
	}
}

func nonceKey(seller string) string {
	return strings.ToLower(strings.TrimSpace(seller))
}
