package in_memory

import (
	"context"
	"strings"
	"sync"

	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/port"
)

type Cache struct {
	mu    sync.Mutex
	store map[string][]*domain.Offer
}

var _ port.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{store: make(map[string][]*domain.Offer)}
}

func cacheKey(chain, token string) string {
	return chain + ":" + strings.ToUpper(token)
}

func (c *Cache) GetOffers(ctx context.Context, chain, token string) ([]*domain.Offer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	offers, ok := c.store[cacheKey(chain, token)]
	if !ok {
		return nil, nil
	}
	out := make([]*domain.Offer, len(offers))
	for i, o := range offers {
		out[i] = o.Clone()
	}
	return out, nil
}

func (c *Cache) SetOffers(ctx context.Context, chain, token string, offers []*domain.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]*domain.Offer, len(offers))
	for i, o := range offers {
		stored[i] = o.Clone()
	}
	c.store[cacheKey(chain, token)] = stored
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, chain, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, cacheKey(chain, token))
	return nil
}
