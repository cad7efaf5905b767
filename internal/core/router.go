package core

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/port"
	"github.com/stabledesk/liquidity-router/internal/signing"
)

// Router composes registry, ranking, allocation and ledger into one routing
// call. It does not settle payments; callers drive the payment legs with the
// returned reservation ids.
type Router struct {
	registry *Registry
	ledger   *Ledger
	weights  RankWeights
	policy   AllocationPolicy
	auditKey *ecdsa.PrivateKey
	log      *slog.Logger
}

type RouterOption func(*Router)

func WithRankWeights(w RankWeights) RouterOption {
	return func(r *Router) { r.weights = w }
}

func WithAllocationPolicy(p AllocationPolicy) RouterOption {
	return func(r *Router) { r.policy = p }
}

// WithAuditKey enables signing of the audit record emitted per route call.
func WithAuditKey(key *ecdsa.PrivateKey) RouterOption {
	return func(r *Router) { r.auditKey = key }
}

func WithRouterLogger(log *slog.Logger) RouterOption {
	return func(r *Router) { r.log = log }
}

func NewRouter(registry *Registry, ledger *Ledger, opts ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		ledger:   ledger,
		weights:  DefaultRankWeights,
		policy:   DefaultAllocationPolicy,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route matches the request against eligible offers and reserves every
// planned chunk. A reservation failure on any chunk releases the chunks
// already reserved, so a failed call leaves no pending reservations behind.
func (r *Router) Route(ctx context.Context, req domain.RouteRequest) (*domain.RouteResult, error) {
	if req.TokenAmount.Sign() <= 0 && req.FiatAmount.Sign() <= 0 {
		return nil, domain.Validationf("either token amount or fiat amount must be positive")
	}

	auditID := uuid.NewString()

	filter := port.OfferFilter{
		MaxLatencyMS: req.MaxLatencyMS,
		MaxFee:       req.MaxFee,
	}
	if !req.AllowAltTokens {
		filter.Token = req.Token
	}
	offers, err := r.registry.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, domain.NoLiquidityf("no eligible offers")
	}

	ranked := Rank(offers, r.weights, RankPreferences{
		PreferredToken: req.Token,
		PreferredChain: req.Chain,
	})
	if len(ranked) == 0 {
		return nil, domain.NoLiquidityf("no eligible offers")
	}

	target, err := targetQuantity(req, ranked)
	if err != nil {
		return nil, err
	}

	plan := Allocate(ranked, target, r.policy)
	if plan.TotalQuantity.LessThan(target) {
		return nil, domain.InsufficientLiquidityf("allocated %s of requested %s", plan.TotalQuantity, target)
	}

	result := &domain.RouteResult{AuditID: auditID}
	weightedLatency := decimal.Zero
	for _, chunk := range plan.Chunks {
		res, _, err := r.ledger.Reserve(ctx, chunk.Offer.ID, chunk.Quantity)
		if err != nil {
			r.rollbackReservations(ctx, auditID, result.Matched)
			return nil, err
		}
		result.Matched = append(result.Matched, domain.MatchedOffer{
			OfferID:       chunk.Offer.ID,
			Seller:        chunk.Offer.Seller,
			Rate:          chunk.Offer.Rate,
			Fee:           chunk.Offer.Fee,
			Quantity:      chunk.Quantity,
			FiatValue:     chunk.FiatValue,
			ReservationID: res.ID,
			LatencyMS:     chunk.Offer.LatencyMS,
		})
		result.PendingTransfers = append(result.PendingTransfers, domain.PendingTransfer{
			ReservationID: res.ID,
			OfferID:       chunk.Offer.ID,
			Seller:        chunk.Offer.Seller,
			Quantity:      chunk.Quantity,
			FiatValue:     chunk.FiatValue,
			LocalRail:     chunk.Offer.SupportsLocalRail,
		})
		weightedLatency = weightedLatency.Add(chunk.Quantity.Mul(decimal.NewFromInt(chunk.Offer.LatencyMS)))
	}

	result.Totals = domain.Totals{
		Quantity:  plan.TotalQuantity,
		FiatValue: plan.TotalFiat,
	}
	if plan.TotalQuantity.Sign() > 0 {
		result.Totals.LatencyMS = weightedLatency.DivRound(plan.TotalQuantity, 0).IntPart()
	}

	if r.auditKey != nil {
		sig, err := signing.Sign(auditMessage(auditID, plan), r.auditKey)
		if err != nil {
			r.log.Error("audit record signing failed", "audit_id", auditID, "err", err)
		} else {
			result.AuditSignature = hex.EncodeToString(sig)
		}
	}

	r.log.Info("route completed",
		"audit_id", auditID,
		"chunks", len(result.Matched),
		"quantity", result.Totals.Quantity,
		"fiat", result.Totals.FiatValue,
	)
	return result, nil
}

// targetQuantity resolves the numeric target: directly from the request, or
// derived from the requested fiat value and the average implied fiat rate of
// the ranked set.
func targetQuantity(req domain.RouteRequest, ranked []RankedOffer) (decimal.Decimal, error) {
	if req.TokenAmount.Sign() > 0 {
		return req.TokenAmount, nil
	}
	sum := decimal.Zero
	for _, r := range ranked {
		sum = sum.Add(r.ImpliedFiatRate)
	}
	avg := sum.DivRound(decimal.NewFromInt(int64(len(ranked))), 18)
	if avg.Sign() <= 0 {
		return decimal.Zero, domain.Validationf("no priceable liquidity for fiat target")
	}
	return req.FiatAmount.DivRound(avg, 8), nil
}

func (r *Router) rollbackReservations(ctx context.Context, auditID string, matched []domain.MatchedOffer) {
	for _, m := range matched {
		if _, err := r.ledger.Release(ctx, m.ReservationID); err != nil {
			r.log.Error("rollback release failed",
				"audit_id", auditID,
				"reservation_id", m.ReservationID,
				"err", err,
			)
		}
	}
}

func auditMessage(auditID string, plan Plan) signing.AuditMessage {
	entries := make([]signing.AuditEntry, 0, len(plan.Chunks))
	for _, c := range plan.Chunks {
		entries = append(entries, signing.AuditEntry{OfferID: c.Offer.ID, Quantity: c.Quantity})
	}
	return signing.AuditMessage{
		AuditID:       auditID,
		Entries:       entries,
		TotalQuantity: plan.TotalQuantity,
		TotalFiat:     plan.TotalFiat,
	}
}
