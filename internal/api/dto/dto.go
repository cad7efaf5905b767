package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubmitOfferRequest struct {
	ID                string          `json:"id,omitempty"`
	Seller            string          `json:"seller" binding:"required"`
	Chain             string          `json:"chain" binding:"required"`
	Token             string          `json:"token" binding:"required"`
	Rate              decimal.Decimal `json:"rate" binding:"required"`
	MinAmount         decimal.Decimal `json:"min_amount"`
	MaxAmount         decimal.Decimal `json:"max_amount" binding:"required"`
	Available         decimal.Decimal `json:"available"`
	Fee               decimal.Decimal `json:"fee"`
	LatencyMS         int64           `json:"latency_ms"`
	SupportsSwap      bool            `json:"supports_swap"`
	SupportsLocalRail bool            `json:"supports_local_rail"`
	Nonce             uint64          `json:"nonce" binding:"required"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	Signature         string          `json:"signature" binding:"required"`
}

type UpdateAvailableRequest struct {
	Available decimal.Decimal `json:"available" binding:"required"`
	Nonce     uint64          `json:"nonce" binding:"required"`
	Signature string          `json:"signature" binding:"required"`
	Seller    string          `json:"seller" binding:"required"`
}

type CancelOfferRequest struct {
	Nonce     uint64 `json:"nonce" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Seller    string `json:"seller" binding:"required"`
}

type ListOffersRequest struct {
	Chain        string `form:"chain"`
	Token        string `form:"token"`
	MinAmount    string `form:"min_amount"`
	MaxAmount    string `form:"max_amount"`
	MaxLatencyMS int64  `form:"max_latency_ms"`
	MaxFee       string `form:"max_fee"`
	SortBy       string `form:"sort"`
	Limit        int    `form:"limit"`
	Offset       int    `form:"offset"`
}

type ReserveRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

type ReserveResponse struct {
	ReservationID      string          `json:"reservation_id"`
	OfferID            string          `json:"offer_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	Status             string          `json:"status"`
	RemainingAvailable decimal.Decimal `json:"remaining_available"`
}

type RouteRequest struct {
	TokenAmount    decimal.Decimal `json:"token_amount"`
	FiatAmount     decimal.Decimal `json:"fiat_amount"`
	Token          string          `json:"token" binding:"required"`
	AllowAltTokens bool            `json:"allow_alt_tokens"`
	MaxLatencyMS   int64           `json:"max_latency_ms"`
	MaxFee         decimal.Decimal `json:"max_fee"`
	Chain          string          `json:"chain"`
	Payer          string          `json:"payer"`
	PaymentRef     string          `json:"payment_ref"`
}

type MatchedOffer struct {
	OfferID       string          `json:"offer_id"`
	Seller        string          `json:"seller"`
	Rate          decimal.Decimal `json:"rate"`
	Fee           decimal.Decimal `json:"fee"`
	Quantity      decimal.Decimal `json:"quantity"`
	FiatValue     decimal.Decimal `json:"fiat_value"`
	ReservationID string          `json:"reservation_id"`
	LatencyMS     int64           `json:"latency_ms"`
}

type Totals struct {
	Quantity  decimal.Decimal `json:"quantity"`
	FiatValue decimal.Decimal `json:"fiat_value"`
	LatencyMS int64           `json:"latency_ms"`
}

type PendingTransfer struct {
	ReservationID string          `json:"reservation_id"`
	OfferID       string          `json:"offer_id"`
	Seller        string          `json:"seller"`
	Quantity      decimal.Decimal `json:"quantity"`
	FiatValue     decimal.Decimal `json:"fiat_value"`
	LocalRail     bool            `json:"local_rail"`
}

type RouteResponse struct {
	AuditID          string            `json:"audit_id"`
	MatchedOffers    []MatchedOffer    `json:"matched_offers"`
	Totals           Totals            `json:"totals"`
	PendingTransfers []PendingTransfer `json:"pending_transfers"`
	AuditSignature   string            `json:"audit_signature,omitempty"`
}

// Offer is the outbound offer shape; the stored signature is not echoed back.
type Offer struct {
	ID                string          `json:"id"`
	Seller            string          `json:"seller"`
	Chain             string          `json:"chain"`
	Token             string          `json:"token"`
	Rate              decimal.Decimal `json:"rate"`
	MinAmount         decimal.Decimal `json:"min_amount"`
	MaxAmount         decimal.Decimal `json:"max_amount"`
	Available         decimal.Decimal `json:"available"`
	Fee               decimal.Decimal `json:"fee"`
	LatencyMS         int64           `json:"latency_ms"`
	SupportsSwap      bool            `json:"supports_swap"`
	SupportsLocalRail bool            `json:"supports_local_rail"`
	Status            string          `json:"status"`
	Nonce             uint64          `json:"nonce"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Reservation struct {
	ID        string          `json:"id"`
	OfferID   string          `json:"offer_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
