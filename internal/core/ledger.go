package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/port"
)

// Ledger owns reservation records. Reserve creates the reservation and
// decrements the offer's available quantity inside one row-locked
// transaction, which is what makes oversell structurally impossible.
type Ledger struct {
	repo  port.Repository
	cache port.Cache
	log   *slog.Logger
	now   func() time.Time
}

type LedgerOption func(*Ledger)

func WithLedgerCache(c port.Cache) LedgerOption {
	return func(l *Ledger) { l.cache = c }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func WithLedgerLogger(log *slog.Logger) LedgerOption {
	return func(l *Ledger) { l.log = log }
}

func NewLedger(repo port.Repository, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		repo: repo,
		log:  slog.Default(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve places a pending hold of quantity against the offer and returns the
// reservation plus the offer's remaining available quantity.
func (l *Ledger) Reserve(ctx context.Context, offerID string, quantity decimal.Decimal) (*domain.Reservation, decimal.Decimal, error) {
	if quantity.Sign() <= 0 {
		return nil, decimal.Zero, domain.Validationf("quantity must be positive")
	}

	var (
		res       *domain.Reservation
		remaining decimal.Decimal
		chain     string
		token     string
	)
	err := withTx(ctx, l.repo, func(tx port.Tx) error {
		o, err := tx.OfferForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFoundf("offer %s not found", offerID)
		}
		if o.Status != domain.OfferActive {
			return domain.Conflictf("offer is not active")
		}
		if quantity.GreaterThan(o.Available) {
			return domain.Conflictf("insufficient liquidity: requested %s, available %s", quantity, o.Available)
		}
		now := l.now()
		res = &domain.Reservation{
			ID:        uuid.NewString(),
			OfferID:   o.ID,
			Quantity:  quantity,
			Status:    domain.ReservationPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		o.Available = o.Available.Sub(quantity)
		o.UpdatedAt = now
		if err := tx.UpdateOffer(ctx, o); err != nil {
			return err
		}
		remaining = o.Available
		chain, token = o.Chain, o.Token
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	l.invalidate(ctx, chain, token)
	l.log.Info("reservation created", "reservation_id", res.ID, "offer_id", offerID, "quantity", quantity)
	return res, remaining, nil
}

// Commit finalizes a pending reservation. Committing an already-committed
// reservation is an idempotent no-op.
func (l *Ledger) Commit(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	var res *domain.Reservation
	err := withTx(ctx, l.repo, func(tx port.Tx) error {
		r, err := tx.ReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if r == nil {
			return domain.NotFoundf("reservation %s not found", reservationID)
		}
		if r.Status == domain.ReservationCommitted {
			res = r
			return nil
		}
		if r.Status != domain.ReservationPending {
			return domain.Conflictf("reservation is %s, not pending", r.Status)
		}
		r.Status = domain.ReservationCommitted
		r.UpdatedAt = l.now()
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Release returns a pending reservation's quantity to its offer.
func (l *Ledger) Release(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	var (
		res   *domain.Reservation
		chain string
		token string
	)
	err := withTx(ctx, l.repo, func(tx port.Tx) error {
		r, err := tx.ReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if r == nil {
			return domain.NotFoundf("reservation %s not found", reservationID)
		}
		if r.Status != domain.ReservationPending {
			return domain.Conflictf("reservation is %s, not pending", r.Status)
		}
		o, err := tx.OfferForUpdate(ctx, r.OfferID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFoundf("offer %s not found", r.OfferID)
		}
		now := l.now()
		o.Available = o.Available.Add(r.Quantity)
		o.UpdatedAt = now
		if err := tx.UpdateOffer(ctx, o); err != nil {
			return err
		}
		r.Status = domain.ReservationReleased
		r.UpdatedAt = now
		if err := tx.UpdateReservation(ctx, r); err != nil {
			return err
		}
		res = r
		chain, token = o.Chain, o.Token
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.invalidate(ctx, chain, token)
	l.log.Info("reservation released", "reservation_id", reservationID, "offer_id", res.OfferID)
	return res, nil
}

// GetByID is a plain read, no locking.
func (l *Ledger) GetByID(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	r, err := l.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, domain.NotFoundf("reservation %s not found", reservationID)
	}
	return r, nil
}

func (l *Ledger) invalidate(ctx context.Context, chain, token string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, chain, token); err != nil {
		l.log.Warn("offer cache invalidation failed", "chain", chain, "token", token, "err", err)
	}
}
