package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/port"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ port.Cache = (*RedisCache)(nil)

func NewRedisCache(addr string, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: rdb,
		ttl:    ttl,
	}
}

func key(chain, token string) string {
	return "offers:" + chain + ":" + strings.ToUpper(token)
}

func (c *RedisCache) GetOffers(ctx context.Context, chain, token string) ([]*domain.Offer, error) {
	b, err := c.client.Get(ctx, key(chain, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var offers []*domain.Offer
	if err := json.Unmarshal(b, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func (c *RedisCache) SetOffers(ctx context.Context, chain, token string, offers []*domain.Offer) error {
	b, err := json.Marshal(offers)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(chain, token), b, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, chain, token string) error {
	return c.client.Del(ctx, key(chain, token)).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
