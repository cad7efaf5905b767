package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferStatus string

const (
	OfferActive    OfferStatus = "ACTIVE"
	OfferCancelled OfferStatus = "CANCELLED"
)

// Offer is a seller's standing, signed commitment to exchange up to
// Available units of Token at Rate (asset per fiat unit).
type Offer struct {
	ID                string
	Seller            string // hex address recovered from the offer signature
	Chain             string
	Token             string
	Rate              decimal.Decimal // asset per fiat unit
	MinAmount         decimal.Decimal
	MaxAmount         decimal.Decimal
	Available         decimal.Decimal
	Fee               decimal.Decimal // fraction, e.g. 0.001
	LatencyMS         int64
	SupportsSwap      bool
	SupportsLocalRail bool
	Status            OfferStatus
	Nonce             uint64
	ExpiresAt         *time.Time
	Signature         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (o *Offer) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// ImpliedFiatRate is the fiat value of one asset unit (inverse of Rate).
// Returns zero for non-positive rates.
func (o *Offer) ImpliedFiatRate() decimal.Decimal {
	if o.Rate.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).DivRound(o.Rate, 18)
}

func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.ExpiresAt != nil {
		exp := *o.ExpiresAt
		clone.ExpiresAt = &exp
	}
	return &clone
}
