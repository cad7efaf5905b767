package core

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stabledesk/liquidity-router/internal/domain"
)

// Latency contributions are clipped at this ceiling before normalization.
const latencyCeilingMS = 60_000

// RankWeights are the non-negative dimension weights; they need not sum to 1.
type RankWeights struct {
	Rate    float64
	Fee     float64
	Latency float64
}

var DefaultRankWeights = RankWeights{Rate: 0.5, Fee: 0.3, Latency: 0.2}

func (w RankWeights) total() float64 {
	return w.Rate + w.Fee + w.Latency
}

// RankPreferences drive the tie-break levels above the score.
type RankPreferences struct {
	PreferredToken string
	PreferredChain string
}

type RankedOffer struct {
	Offer           *domain.Offer
	Score           float64 // weighted sum divided by the weight total
	ImpliedFiatRate decimal.Decimal
}

// Rank scores active offers by min-max-normalized implied fiat rate, 1−fee
// and inverted latency, then orders descending by preferred token, preferred
// chain and score. The three-level tie-break keeps equal-score offers stably
// ordered between calls.
func Rank(offers []*domain.Offer, w RankWeights, prefs RankPreferences) []RankedOffer {
	eligible := make([]*domain.Offer, 0, len(offers))
	for _, o := range offers {
		if o != nil && o.Status == domain.OfferActive {
			eligible = append(eligible, o)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	rates := make([]float64, len(eligible))
	fees := make([]float64, len(eligible))
	latencies := make([]float64, len(eligible))
	implied := make([]decimal.Decimal, len(eligible))
	for i, o := range eligible {
		implied[i] = o.ImpliedFiatRate()
		rates[i] = implied[i].InexactFloat64()
		fees[i] = decimalOne.Sub(o.Fee).InexactFloat64()
		lat := o.LatencyMS
		if lat > latencyCeilingMS {
			lat = latencyCeilingMS
		}
		latencies[i] = float64(lat)
	}

	rateNorm := minMaxNormalize(rates, false)
	feeNorm := minMaxNormalize(fees, false)
	latencyNorm := minMaxNormalize(latencies, true)

	// raw weighted sums are what get compared; Score carries the
	// weight-total-normalized value consumers see.
	raw := make([]float64, len(eligible))
	total := w.total()
	for i := range eligible {
		raw[i] = w.Rate*rateNorm[i] + w.Fee*feeNorm[i] + w.Latency*latencyNorm[i]
	}

	order := make([]int, len(eligible))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		oi, oj := eligible[order[a]], eligible[order[b]]
		ti := prefs.PreferredToken != "" && oi.Token == prefs.PreferredToken
		tj := prefs.PreferredToken != "" && oj.Token == prefs.PreferredToken
		if ti != tj {
			return ti
		}
		ci := prefs.PreferredChain != "" && oi.Chain == prefs.PreferredChain
		cj := prefs.PreferredChain != "" && oj.Chain == prefs.PreferredChain
		if ci != cj {
			return ci
		}
		return raw[order[a]] > raw[order[b]]
	})

	ranked := make([]RankedOffer, len(eligible))
	for pos, idx := range order {
		score := 0.0
		if total > 0 {
			score = raw[idx] / total
		}
		ranked[pos] = RankedOffer{Offer: eligible[idx], Score: score, ImpliedFiatRate: implied[idx]}
	}
	return ranked
}

// minMaxNormalize maps values onto [0,1]; a degenerate (uniform) set maps to
// 0.5. With invert set, lower inputs score higher.
func minMaxNormalize(values []float64, invert bool) []float64 {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if max == min {
			out[i] = 0.5
		} else {
			out[i] = (v - min) / (max - min)
		}
		if invert {
			out[i] = 1 - out[i]
		}
	}
	return out
}
