package port

import (
	"context"

	"github.com/stabledesk/liquidity-router/internal/domain"
)

// Cache stores eligible-offer listings per (chain, token). GetOffers returns
// (nil, nil) on a miss.
type Cache interface {
	GetOffers(ctx context.Context, chain, token string) ([]*domain.Offer, error)
	SetOffers(ctx context.Context, chain, token string, offers []*domain.Offer) error
	Invalidate(ctx context.Context, chain, token string) error
}

// NonceCache is an advisory, process-scoped fast path for rejecting stale
// signed mutations before touching the store. The authoritative nonce check
// always happens again inside the row-locked transaction.
type NonceCache interface {
	Stale(seller string, nonce uint64) bool
	Observe(seller string, nonce uint64)
}
