package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stabledesk/liquidity-router/internal/domain"
)

func rankOffer(id, chain, token, rate, fee string, latency int64) *domain.Offer {
	return &domain.Offer{
		ID:        id,
		Chain:     chain,
		Token:     token,
		Rate:      dec(rate),
		MinAmount: dec("1"),
		MaxAmount: dec("1000"),
		Available: dec("1000"),
		Fee:       dec(fee),
		LatencyMS: latency,
		Status:    domain.OfferActive,
	}
}

func TestRankOrdersByWeightedScore(t *testing.T) {
	offers := []*domain.Offer{
		rankOffer("worst", "base", "USDC", "0.02", "0.005", 30000),
		rankOffer("best", "base", "USDC", "0.01", "0.001", 1000),
		rankOffer("middle", "base", "USDC", "0.015", "0.003", 10000),
	}

	ranked := Rank(offers, DefaultRankWeights, RankPreferences{})
	require.Len(t, ranked, 3)
	require.Equal(t, "best", ranked[0].Offer.ID)
	require.Equal(t, "middle", ranked[1].Offer.ID)
	require.Equal(t, "worst", ranked[2].Offer.ID)
	require.Greater(t, ranked[0].Score, ranked[1].Score)
	require.Greater(t, ranked[1].Score, ranked[2].Score)
}

func TestRankUniformOffersScoreHalf(t *testing.T) {
	offers := []*domain.Offer{
		rankOffer("a", "base", "USDC", "0.01", "0.001", 5000),
		rankOffer("b", "base", "USDC", "0.01", "0.001", 5000),
	}

	ranked := Rank(offers, DefaultRankWeights, RankPreferences{})
	require.Len(t, ranked, 2)
	require.InDelta(t, 0.5, ranked[0].Score, 1e-9)
	require.InDelta(t, 0.5, ranked[1].Score, 1e-9)
	// stable: input order preserved when scores tie
	require.Equal(t, "a", ranked[0].Offer.ID)
}

func TestRankPreferredTokenOutranksScore(t *testing.T) {
	offers := []*domain.Offer{
		rankOffer("cheap-dai", "base", "DAI", "0.01", "0.001", 1000),
		rankOffer("pricey-usdc", "base", "USDC", "0.02", "0.005", 30000),
	}

	ranked := Rank(offers, DefaultRankWeights, RankPreferences{PreferredToken: "USDC"})
	require.Equal(t, "pricey-usdc", ranked[0].Offer.ID)

	// without the preference the better-scored offer leads
	ranked = Rank(offers, DefaultRankWeights, RankPreferences{})
	require.Equal(t, "cheap-dai", ranked[0].Offer.ID)
}

func TestRankPreferredChainBelowToken(t *testing.T) {
	offers := []*domain.Offer{
		rankOffer("dai-polygon", "polygon", "DAI", "0.01", "0.001", 1000),
		rankOffer("usdc-base", "base", "USDC", "0.01", "0.001", 1000),
		rankOffer("usdc-polygon", "polygon", "USDC", "0.01", "0.001", 1000),
	}

	ranked := Rank(offers, DefaultRankWeights, RankPreferences{PreferredToken: "USDC", PreferredChain: "polygon"})
	require.Equal(t, "usdc-polygon", ranked[0].Offer.ID)
	require.Equal(t, "usdc-base", ranked[1].Offer.ID)
	require.Equal(t, "dai-polygon", ranked[2].Offer.ID)
}

func TestRankClipsLatencyAtCeiling(t *testing.T) {
	offers := []*domain.Offer{
		rankOffer("slow", "base", "USDC", "0.01", "0.001", 60000),
		rankOffer("slower", "base", "USDC", "0.01", "0.001", 120000),
		rankOffer("fast", "base", "USDC", "0.01", "0.001", 1000),
	}

	ranked := Rank(offers, DefaultRankWeights, RankPreferences{})
	require.Equal(t, "fast", ranked[0].Offer.ID)
	// beyond the ceiling extra latency makes no difference
	require.InDelta(t, ranked[1].Score, ranked[2].Score, 1e-9)
}

func TestRankExcludesInactiveOffers(t *testing.T) {
	cancelled := rankOffer("cancelled", "base", "USDC", "0.01", "0.001", 1000)
	cancelled.Status = domain.OfferCancelled
	offers := []*domain.Offer{
		cancelled,
		rankOffer("active", "base", "USDC", "0.02", "0.002", 5000),
	}

	ranked := Rank(offers, DefaultRankWeights, RankPreferences{})
	require.Len(t, ranked, 1)
	require.Equal(t, "active", ranked[0].Offer.ID)

	require.Empty(t, Rank(nil, DefaultRankWeights, RankPreferences{}))
}
