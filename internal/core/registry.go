package core

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/port"
	"github.com/stabledesk/liquidity-router/internal/signing"
)

const defaultMaxPageSize = 100

var decimalOne = decimal.NewFromInt(1)

// Registry owns offer records: it validates, authenticates and persists
// seller-signed creations, available-amount updates and cancellations, and
// serves matching scans. Every mutation runs under an exclusive row lock and
// is guarded by the seller's monotonic nonce; the two guards are deliberately
// independent.
type Registry struct {
	repo        port.Repository
	cache       port.Cache
	nonces      port.NonceCache
	log         *slog.Logger
	now         func() time.Time
	maxPageSize int
}

type RegistryOption func(*Registry)

func WithRegistryCache(c port.Cache) RegistryOption {
	return func(r *Registry) { r.cache = c }
}

func WithNonceCache(n port.NonceCache) RegistryOption {
	return func(r *Registry) { r.nonces = n }
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithRegistryLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

func WithMaxPageSize(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxPageSize = n
		}
	}
}

func NewRegistry(repo port.Repository, opts ...RegistryOption) *Registry {
	r := &Registry{
		repo:        repo,
		log:         slog.Default(),
		now:         time.Now,
		maxPageSize: defaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit creates the seller's offer, or replaces their most recent one when
// the new nonce exceeds the stored nonce.
func (r *Registry) Submit(ctx context.Context, o *domain.Offer, signature string) (*domain.Offer, error) {
	if err := validateOffer(o); err != nil {
		return nil, err
	}
	if r.nonces != nil && r.nonces.Stale(o.Seller, o.Nonce) {
		return nil, domain.Conflictf("nonce %d already used by seller", o.Nonce)
	}
	sig, err := signing.ParseSignature(signature)
	if err != nil {
		return nil, domain.Validationf("invalid signature encoding")
	}
	if !signing.Verify(offerMessage(o, o.Available, o.Nonce), sig, o.Seller) {
		r.log.Warn("offer signature rejected", "seller", o.Seller)
		return nil, domain.Authenticationf("signature does not match seller")
	}

	now := r.now()
	stored := o.Clone()
	stored.Seller = strings.ToLower(strings.TrimSpace(o.Seller))
	stored.Token = strings.ToUpper(strings.TrimSpace(o.Token))
	stored.Chain = strings.TrimSpace(o.Chain)
	stored.Status = domain.OfferActive
	stored.Signature = signature
	stored.UpdatedAt = now

	var prevChain, prevToken string
	err = withTx(ctx, r.repo, func(tx port.Tx) error {
		prior, err := tx.LatestOfferBySellerForUpdate(ctx, stored.Seller)
		if err != nil {
			return err
		}
		if prior == nil {
			if stored.ID == "" {
				stored.ID = uuid.NewString()
			}
			stored.CreatedAt = now
			return tx.InsertOffer(ctx, stored)
		}
		if stored.Nonce <= prior.Nonce {
			return domain.Conflictf("nonce %d not greater than stored nonce %d", stored.Nonce, prior.Nonce)
		}
		stored.ID = prior.ID
		stored.CreatedAt = prior.CreatedAt
		prevChain, prevToken = prior.Chain, prior.Token
		return tx.UpdateOffer(ctx, stored)
	})
	if err != nil {
		return nil, err
	}

	if r.nonces != nil {
		r.nonces.Observe(stored.Seller, stored.Nonce)
	}
	r.invalidate(ctx, stored.Chain, stored.Token)
	if prevChain != "" && (prevChain != stored.Chain || prevToken != stored.Token) {
		r.invalidate(ctx, prevChain, prevToken)
	}
	r.log.Info("offer submitted", "offer_id", stored.ID, "seller", stored.Seller, "nonce", stored.Nonce)
	return stored, nil
}

// UpdateAvailable applies a seller-signed available-amount change. The
// canonical string is recomputed from the stored offer's other fields, so a
// signature over anything but the current offer state fails authentication.
func (r *Registry) UpdateAvailable(ctx context.Context, offerID string, newAvailable decimal.Decimal, nonce uint64, signature, seller string) (*domain.Offer, error) {
	sig, err := signing.ParseSignature(signature)
	if err != nil {
		return nil, domain.Validationf("invalid signature encoding")
	}
	if r.nonces != nil && r.nonces.Stale(seller, nonce) {
		return nil, domain.Conflictf("nonce %d already used by seller", nonce)
	}

	var updated *domain.Offer
	err = withTx(ctx, r.repo, func(tx port.Tx) error {
		o, err := tx.OfferForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFoundf("offer %s not found", offerID)
		}
		if !strings.EqualFold(o.Seller, strings.TrimSpace(seller)) {
			return domain.Authenticationf("seller does not own offer")
		}
		if o.Status != domain.OfferActive {
			return domain.Conflictf("offer is not active")
		}
		if nonce <= o.Nonce {
			return domain.Conflictf("nonce %d not greater than stored nonce %d", nonce, o.Nonce)
		}
		if newAvailable.LessThan(o.MinAmount) || newAvailable.GreaterThan(o.MaxAmount) {
			return domain.Validationf("available must be within [%s, %s]", o.MinAmount, o.MaxAmount)
		}
		if !signing.Verify(offerMessage(o, newAvailable, nonce), sig, o.Seller) {
			r.log.Warn("available update signature rejected", "offer_id", offerID, "seller", seller)
			return domain.Authenticationf("signature does not match seller")
		}
		o.Available = newAvailable
		o.Nonce = nonce
		o.Signature = signature
		o.UpdatedAt = r.now()
		if err := tx.UpdateOffer(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.nonces != nil {
		r.nonces.Observe(updated.Seller, nonce)
	}
	r.invalidate(ctx, updated.Chain, updated.Token)
	return updated, nil
}

// Cancel marks the offer cancelled; the signed message is the distinct
// cancellation shape over offer id and nonce. Cancelled offers never
// reactivate.
func (r *Registry) Cancel(ctx context.Context, offerID string, nonce uint64, signature, seller string) (*domain.Offer, error) {
	sig, err := signing.ParseSignature(signature)
	if err != nil {
		return nil, domain.Validationf("invalid signature encoding")
	}
	if r.nonces != nil && r.nonces.Stale(seller, nonce) {
		return nil, domain.Conflictf("nonce %d already used by seller", nonce)
	}

	var cancelled *domain.Offer
	err = withTx(ctx, r.repo, func(tx port.Tx) error {
		o, err := tx.OfferForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFoundf("offer %s not found", offerID)
		}
		if !strings.EqualFold(o.Seller, strings.TrimSpace(seller)) {
			return domain.Authenticationf("seller does not own offer")
		}
		if o.Status != domain.OfferActive {
			return domain.Conflictf("offer is not active")
		}
		if nonce <= o.Nonce {
			return domain.Conflictf("nonce %d not greater than stored nonce %d", nonce, o.Nonce)
		}
		if !signing.Verify(signing.CancelMessage{OfferID: o.ID, Nonce: nonce}, sig, o.Seller) {
			r.log.Warn("cancellation signature rejected", "offer_id", offerID, "seller", seller)
			return domain.Authenticationf("signature does not match seller")
		}
		o.Status = domain.OfferCancelled
		o.Nonce = nonce
		o.Signature = signature
		o.UpdatedAt = r.now()
		if err := tx.UpdateOffer(ctx, o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.nonces != nil {
		r.nonces.Observe(cancelled.Seller, nonce)
	}
	r.invalidate(ctx, cancelled.Chain, cancelled.Token)
	r.log.Info("offer cancelled", "offer_id", cancelled.ID, "seller", cancelled.Seller)
	return cancelled, nil
}

// List returns active, non-expired offers matching the filter, capped at the
// configured page size. Plain chain+token scans are served from cache when
// one is wired.
func (r *Registry) List(ctx context.Context, f port.OfferFilter) ([]*domain.Offer, error) {
	if f.Limit <= 0 || f.Limit > r.maxPageSize {
		f.Limit = r.maxPageSize
	}
	cacheable := r.cache != nil && f.Chain != "" && f.Token != "" && isPlainFilter(f, r.maxPageSize)
	if cacheable {
		if offers, err := r.cache.GetOffers(ctx, f.Chain, f.Token); err == nil && offers != nil {
			return offers, nil
		}
	}
	offers, err := r.repo.ListOffers(ctx, f)
	if err != nil {
		return nil, err
	}
	if cacheable {
		_ = r.cache.SetOffers(ctx, f.Chain, f.Token, offers)
	}
	return offers, nil
}

// GetByID returns the offer when it is active and not expired; an expired
// offer is reported as not found even though its stored status is unchanged.
func (r *Registry) GetByID(ctx context.Context, offerID string) (*domain.Offer, error) {
	o, err := r.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.Status != domain.OfferActive || o.Expired(r.now()) {
		return nil, domain.NotFoundf("offer %s not found", offerID)
	}
	return o, nil
}

func (r *Registry) invalidate(ctx context.Context, chain, token string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, chain, token); err != nil {
		r.log.Warn("offer cache invalidation failed", "chain", chain, "token", token, "err", err)
	}
}

func isPlainFilter(f port.OfferFilter, maxPage int) bool {
	return f.MinAmount.IsZero() && f.MaxAmount.IsZero() &&
		f.MaxLatencyMS == 0 && f.MaxFee.IsZero() &&
		(f.SortBy == "" || f.SortBy == "rate") &&
		f.Offset == 0 && f.Limit == maxPage
}

func offerMessage(o *domain.Offer, available decimal.Decimal, nonce uint64) signing.OfferMessage {
	return signing.OfferMessage{
		Seller:            o.Seller,
		Chain:             o.Chain,
		Token:             o.Token,
		Rate:              o.Rate,
		MinAmount:         o.MinAmount,
		MaxAmount:         o.MaxAmount,
		Available:         available,
		Fee:               o.Fee,
		LatencyMS:         o.LatencyMS,
		SupportsSwap:      o.SupportsSwap,
		SupportsLocalRail: o.SupportsLocalRail,
		Nonce:             nonce,
		ExpiresAt:         o.ExpiresAt,
	}
}

func validateOffer(o *domain.Offer) error {
	if o == nil {
		return domain.Validationf("offer is required")
	}
	if strings.TrimSpace(o.Seller) == "" {
		return domain.Validationf("seller is required")
	}
	if strings.TrimSpace(o.Chain) == "" {
		return domain.Validationf("chain is required")
	}
	if strings.TrimSpace(o.Token) == "" {
		return domain.Validationf("token is required")
	}
	if o.Rate.Sign() <= 0 {
		return domain.Validationf("rate must be positive")
	}
	if o.MinAmount.Sign() < 0 {
		return domain.Validationf("min amount must not be negative")
	}
	if o.MaxAmount.LessThan(o.MinAmount) {
		return domain.Validationf("max amount must not be below min amount")
	}
	if o.Available.Sign() < 0 || o.Available.GreaterThan(o.MaxAmount) {
		return domain.Validationf("available must be within [0, max]")
	}
	if o.Fee.Sign() < 0 || o.Fee.GreaterThanOrEqual(decimalOne) {
		return domain.Validationf("fee must be within [0, 1)")
	}
	if o.LatencyMS < 0 {
		return domain.Validationf("latency must not be negative")
	}
	if o.Nonce == 0 {
		return domain.Validationf("nonce must be positive")
	}
	return nil
}
