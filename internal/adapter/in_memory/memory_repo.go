package in_memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/port"
)

// MemoryRepo is the in-process backing store used by tests and local runs.
// BeginTx takes the repo mutex for the transaction's lifetime, which stands
// in for the row-lock serialization the Postgres adapter gets from
// SELECT ... FOR UPDATE; writes are staged and applied on Commit so a failed
// transaction leaves no partial state.
type MemoryRepo struct {
	mu           sync.Mutex
	offers       map[string]*domain.Offer
	reservations map[string]*domain.Reservation
}

var _ port.Repository = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		offers:       make(map[string]*domain.Offer),
		reservations: make(map[string]*domain.Reservation),
	}
}

func (r *MemoryRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	r.mu.Lock()
	return &memTx{
		repo:         r,
		offers:       make(map[string]*domain.Offer),
		reservations: make(map[string]*domain.Reservation),
	}, nil
}

func (r *MemoryRepo) ListOffers(ctx context.Context, f port.OfferFilter) ([]*domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var res []*domain.Offer
	for _, o := range r.offers {
		if matchesFilter(o, f, now) {
			res = append(res, o.Clone())
		}
	}
	sortOffers(res, f.SortBy)
	if f.Offset > 0 {
		if f.Offset >= len(res) {
			return nil, nil
		}
		res = res[f.Offset:]
	}
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (r *MemoryRepo) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offers[id].Clone(), nil
}

func (r *MemoryRepo) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reservations[id].Clone(), nil
}

func matchesFilter(o *domain.Offer, f port.OfferFilter, now time.Time) bool {
	if o.Status != domain.OfferActive || o.Expired(now) {
		return false
	}
	if f.Chain != "" && o.Chain != f.Chain {
		return false
	}
	if f.Token != "" && !strings.EqualFold(o.Token, f.Token) {
		return false
	}
	if f.MinAmount.Sign() > 0 && (o.Available.LessThan(f.MinAmount) || o.MaxAmount.LessThan(f.MinAmount)) {
		return false
	}
	if f.MaxAmount.Sign() > 0 && o.MinAmount.GreaterThan(f.MaxAmount) {
		return false
	}
	if f.MaxLatencyMS > 0 && o.LatencyMS > f.MaxLatencyMS {
		return false
	}
	if f.MaxFee.Sign() > 0 && o.Fee.GreaterThan(f.MaxFee) {
		return false
	}
	return true
}

func sortOffers(offers []*domain.Offer, sortBy string) {
	sort.SliceStable(offers, func(i, j int) bool {
		switch sortBy {
		case "fee":
			if !offers[i].Fee.Equal(offers[j].Fee) {
				return offers[i].Fee.LessThan(offers[j].Fee)
			}
		case "latency":
			if offers[i].LatencyMS != offers[j].LatencyMS {
				return offers[i].LatencyMS < offers[j].LatencyMS
			}
		default:
			if !offers[i].Rate.Equal(offers[j].Rate) {
				return offers[i].Rate.LessThan(offers[j].Rate)
			}
		}
		return offers[i].CreatedAt.Before(offers[j].CreatedAt)
	})
}

type memTx struct {
	repo         *MemoryRepo
	offers       map[string]*domain.Offer
	reservations map[string]*domain.Reservation
	done         bool
}

func (t *memTx) InsertOffer(ctx context.Context, o *domain.Offer) error {
	if _, ok := t.offers[o.ID]; ok {
		return errors.New("offer already exists")
	}
	if _, ok := t.repo.offers[o.ID]; ok {
		return errors.New("offer already exists")
	}
	t.offers[o.ID] = o.Clone()
	return nil
}

func (t *memTx) UpdateOffer(ctx context.Context, o *domain.Offer) error {
	t.offers[o.ID] = o.Clone()
	return nil
}

func (t *memTx) OfferForUpdate(ctx context.Context, id string) (*domain.Offer, error) {
	if o, ok := t.offers[id]; ok {
		return o.Clone(), nil
	}
	o, ok := t.repo.offers[id]
	if !ok {
		return nil, nil
	}
	return o.Clone(), nil
}

func (t *memTx) LatestOfferBySellerForUpdate(ctx context.Context, seller string) (*domain.Offer, error) {
	var latest *domain.Offer
	consider := func(o *domain.Offer) {
		if !strings.EqualFold(o.Seller, seller) {
			return
		}
		if latest == nil || o.Nonce > latest.Nonce {
			latest = o
		}
	}
	for _, o := range t.repo.offers {
		if _, staged := t.offers[o.ID]; staged {
			continue
		}
		consider(o)
	}
	for _, o := range t.offers {
		consider(o)
	}
	return latest.Clone(), nil
}

func (t *memTx) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	if _, ok := t.reservations[r.ID]; ok {
		return errors.New("reservation already exists")
	}
	if _, ok := t.repo.reservations[r.ID]; ok {
		return errors.New("reservation already exists")
	}
	t.reservations[r.ID] = r.Clone()
	return nil
}

func (t *memTx) UpdateReservation(ctx context.Context, r *domain.Reservation) error {
	t.reservations[r.ID] = r.Clone()
	return nil
}

func (t *memTx) ReservationForUpdate(ctx context.Context, id string) (*domain.Reservation, error) {
	if r, ok := t.reservations[id]; ok {
		return r.Clone(), nil
	}
	r, ok := t.repo.reservations[id]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already finished")
	}
	for id, o := range t.offers {
		t.repo.offers[id] = o
	}
	for id, r := range t.reservations {
		t.repo.reservations[id] = r
	}
	t.done = true
	t.repo.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.mu.Unlock()
	return nil
}
