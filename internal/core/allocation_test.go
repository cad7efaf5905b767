package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stabledesk/liquidity-router/internal/domain"
)

func allocOffer(id string, min, max, available string) RankedOffer {
	o := &domain.Offer{
		ID:        id,
		Chain:     "base",
		Token:     "USDC",
		Rate:      dec("0.01"),
		MinAmount: dec(min),
		MaxAmount: dec(max),
		Available: dec(available),
		Fee:       dec("0.001"),
		LatencyMS: 5000,
		Status:    domain.OfferActive,
	}
	return RankedOffer{Offer: o, ImpliedFiatRate: o.ImpliedFiatRate()}
}

func TestAllocateGreedyInRankOrder(t *testing.T) {
	ranked := []RankedOffer{
		allocOffer("first", "10", "100", "100"),
		allocOffer("second", "10", "100", "100"),
	}

	plan := Allocate(ranked, dec("120"), DefaultAllocationPolicy)
	require.Len(t, plan.Chunks, 2)
	require.Equal(t, "first", plan.Chunks[0].Offer.ID)
	require.True(t, plan.Chunks[0].Quantity.Equal(dec("100")))
	require.Equal(t, "second", plan.Chunks[1].Offer.ID)
	require.True(t, plan.Chunks[1].Quantity.Equal(dec("20")))
	require.True(t, plan.TotalQuantity.Equal(dec("120")))
}

func TestAllocateRespectsMaxAndAvailable(t *testing.T) {
	ranked := []RankedOffer{
		allocOffer("capped", "10", "40", "100"), // max binds
		allocOffer("drained", "10", "100", "30"), // available binds
	}

	plan := Allocate(ranked, dec("200"), DefaultAllocationPolicy)
	require.Len(t, plan.Chunks, 2)
	require.True(t, plan.Chunks[0].Quantity.Equal(dec("40")))
	require.True(t, plan.Chunks[1].Quantity.Equal(dec("30")))
	require.True(t, plan.TotalQuantity.Equal(dec("70")))
}

func TestAllocateNeverExceedsTarget(t *testing.T) {
	ranked := []RankedOffer{
		allocOffer("a", "1", "100", "100"),
		allocOffer("b", "1", "100", "100"),
	}

	plan := Allocate(ranked, dec("55"), DefaultAllocationPolicy)
	require.Len(t, plan.Chunks, 1)
	require.True(t, plan.TotalQuantity.Equal(dec("55")))
}

func TestAllocateSkipsBelowMinimum(t *testing.T) {
	ranked := []RankedOffer{
		allocOffer("big-min", "50", "100", "100"),
		allocOffer("small-min", "10", "100", "100"),
	}

	// target below big-min's minimum: walk past it, never below the floor
	plan := Allocate(ranked, dec("30"), AllocationPolicy{AllowPartialFinalChunk: false})
	require.Len(t, plan.Chunks, 1)
	require.Equal(t, "small-min", plan.Chunks[0].Offer.ID)
	require.True(t, plan.TotalQuantity.Equal(dec("30")))
}

func TestAllocatePartialFinalChunk(t *testing.T) {
	ranked := []RankedOffer{
		allocOffer("a", "10", "100", "100"),
		allocOffer("b", "10", "100", "100"),
	}

	// the leftover 5 is below b's minimum; the policy decides whether it fills
	plan := Allocate(ranked, dec("105"), AllocationPolicy{AllowPartialFinalChunk: true})
	require.Len(t, plan.Chunks, 2)
	require.True(t, plan.Chunks[1].Quantity.Equal(dec("5")))
	require.True(t, plan.TotalQuantity.Equal(dec("105")))

	plan = Allocate(ranked, dec("105"), AllocationPolicy{AllowPartialFinalChunk: false})
	require.Len(t, plan.Chunks, 1)
	require.True(t, plan.TotalQuantity.Equal(dec("100")))
}

func TestAllocatePartialOnlyWhenItCompletesTarget(t *testing.T) {
	// the sub-minimum take here would NOT satisfy the remainder, so the
	// exception does not apply even with the policy on
	ranked := []RankedOffer{
		allocOffer("shallow", "10", "100", "5"),
		allocOffer("deep", "10", "100", "100"),
	}

	plan := Allocate(ranked, dec("50"), AllocationPolicy{AllowPartialFinalChunk: true})
	require.Len(t, plan.Chunks, 1)
	require.Equal(t, "deep", plan.Chunks[0].Offer.ID)
	require.True(t, plan.TotalQuantity.Equal(dec("50")))
}

func TestAllocateFiatAccountsForFee(t *testing.T) {
	ranked := []RankedOffer{allocOffer("a", "10", "100", "100")}

	plan := Allocate(ranked, dec("100"), DefaultAllocationPolicy)
	require.Len(t, plan.Chunks, 1)
	// 100 units × (1/0.01) fiat per unit × (1 − 0.001) fee
	require.True(t, plan.TotalFiat.Equal(dec("9990")))
}

func TestAllocateEmptyInputs(t *testing.T) {
	plan := Allocate(nil, dec("100"), DefaultAllocationPolicy)
	require.Empty(t, plan.Chunks)
	require.True(t, plan.TotalQuantity.IsZero())

	plan = Allocate([]RankedOffer{allocOffer("a", "10", "100", "100")}, dec("0"), DefaultAllocationPolicy)
	require.Empty(t, plan.Chunks)
}
