package core

import (
	"github.com/shopspring/decimal"
	"github.com/stabledesk/liquidity-router/internal/domain"
)

// AllocationPolicy names the one product toggle: whether the final chunk may
// take less than an offer's stated minimum when that exactly satisfies the
// remaining target.
type AllocationPolicy struct {
	AllowPartialFinalChunk bool
}

var DefaultAllocationPolicy = AllocationPolicy{AllowPartialFinalChunk: true}

type PlanChunk struct {
	Offer           *domain.Offer
	Quantity        decimal.Decimal
	FiatValue       decimal.Decimal
	ImpliedFiatRate decimal.Decimal
}

type Plan struct {
	Chunks        []PlanChunk
	TotalQuantity decimal.Decimal
	TotalFiat     decimal.Decimal
}

// Allocate greedily walks the ranked offers assembling a plan for the target
// quantity. Each chunk respects min ≤ take ≤ max except for the final-chunk
// exception above. This is a dry run: nothing is reserved here.
func Allocate(ranked []RankedOffer, target decimal.Decimal, policy AllocationPolicy) Plan {
	plan := Plan{TotalQuantity: decimal.Zero, TotalFiat: decimal.Zero}
	remaining := target
	for _, r := range ranked {
		if remaining.Sign() <= 0 {
			break
		}
		o := r.Offer
		take := decimal.Min(remaining, o.Available, o.MaxAmount)
		if take.Sign() <= 0 {
			continue
		}
		if take.LessThan(o.MinAmount) {
			if !policy.AllowPartialFinalChunk || !take.Equal(remaining) {
				continue
			}
		}
		fiat := take.Mul(r.ImpliedFiatRate).Mul(decimalOne.Sub(o.Fee))
		plan.Chunks = append(plan.Chunks, PlanChunk{
			Offer:           o,
			Quantity:        take,
			FiatValue:       fiat,
			ImpliedFiatRate: r.ImpliedFiatRate,
		})
		plan.TotalQuantity = plan.TotalQuantity.Add(take)
		plan.TotalFiat = plan.TotalFiat.Add(fiat)
		remaining = remaining.Sub(take)
	}
	return plan
}
