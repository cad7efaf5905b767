package domain

import "github.com/shopspring/decimal"

// RouteRequest describes one routing call. Exactly one of TokenAmount or
// FiatAmount must be positive; when only FiatAmount is given the target
// quantity is derived from the average implied fiat rate of the ranked set.
type RouteRequest struct {
	TokenAmount decimal.Decimal
	FiatAmount  decimal.Decimal

	Token          string
	AllowAltTokens bool
	MaxLatencyMS   int64           // 0 means no cap
	MaxFee         decimal.Decimal // zero means no cap

	// Payment context, passed through to the audit record.
	Chain      string
	Payer      string
	PaymentRef string
}

// MatchedOffer is one sized chunk of the resulting allocation plan with its
// reservation already made.
type MatchedOffer struct {
	OfferID       string
	Seller        string
	Rate          decimal.Decimal
	Fee           decimal.Decimal
	Quantity      decimal.Decimal
	FiatValue     decimal.Decimal
	ReservationID string
	LatencyMS     int64
}

// Totals aggregates a plan: LatencyMS is quantity-weighted.
type Totals struct {
	Quantity  decimal.Decimal
	FiatValue decimal.Decimal
	LatencyMS int64
}

// PendingTransfer is the payment leg the caller still has to execute for a
// matched chunk, referenced by reservation id.
type PendingTransfer struct {
	ReservationID string
	OfferID       string
	Seller        string
	Quantity      decimal.Decimal
	FiatValue     decimal.Decimal
	LocalRail     bool
}

type RouteResult struct {
	AuditID          string
	Matched          []MatchedOffer
	Totals           Totals
	PendingTransfers []PendingTransfer
	AuditSignature   string // hex, empty when no audit key is configured
}
