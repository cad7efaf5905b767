package port

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stabledesk/liquidity-router/internal/domain"
)

// OfferFilter narrows listing scans. Adapters always restrict to active,
// non-expired offers; the remaining fields are optional.
type OfferFilter struct {
	Chain        string
	Token        string
	MinAmount    decimal.Decimal // only offers able to fill at least this
	MaxAmount    decimal.Decimal // only offers whose minimum fits under this
	MaxLatencyMS int64
	MaxFee       decimal.Decimal
	SortBy       string // "rate" (default), "fee", "latency"
	Limit        int
	Offset       int
}

type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)
	ListOffers(ctx context.Context, f OfferFilter) ([]*domain.Offer, error)
	// GetOffer and GetReservation return (nil, nil) when the row is absent;
	// mapping absence to a NotFound error is the caller's concern.
	GetOffer(ctx context.Context, id string) (*domain.Offer, error)
	GetReservation(ctx context.Context, id string) (*domain.Reservation, error)
}

// Tx is one atomic unit. The ForUpdate loads hold an exclusive row lock until
// Commit or Rollback; they return (nil, nil) for absent rows.
type Tx interface {
	InsertOffer(ctx context.Context, o *domain.Offer) error
	UpdateOffer(ctx context.Context, o *domain.Offer) error
	OfferForUpdate(ctx context.Context, id string) (*domain.Offer, error)
	LatestOfferBySellerForUpdate(ctx context.Context, seller string) (*domain.Offer, error)

	InsertReservation(ctx context.Context, r *domain.Reservation) error
	UpdateReservation(ctx context.Context, r *domain.Reservation) error
	ReservationForUpdate(ctx context.Context, id string) (*domain.Reservation, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
