package signing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Domain strings versioning the canonical payload shapes.
const (
	offerDomainV1  = "STABLE_OFFER_V1"
	cancelDomainV1 = "STABLE_OFFER_CANCEL_V1"
	auditDomainV1  = "STABLE_ROUTE_AUDIT_V1"
)

// Fixed decimal precisions per semantic type. Rendering every numeric field
// at a fixed scale is what makes canonicalization deterministic across input
// representations ("10" vs "10.0").
const (
	rateDecimals     = 18
	quantityDecimals = 8
)

// Message is one canonicalizable payload variant. The canonical form is a
// pipe-delimited key=value string; '|' cannot appear in any field because
// identifiers and symbols are validated upstream and numerics/booleans/
// timestamps render from typed values.
type Message interface {
	Canonical() string
}

// OfferMessage covers both offer submission and available-amount updates:
// an update canonicalizes the stored offer's fields with the new available
// amount and nonce substituted in.
type OfferMessage struct {
	Seller            string
	Chain             string
	Token             string
	Rate              decimal.Decimal
	MinAmount         decimal.Decimal
	MaxAmount         decimal.Decimal
	Available         decimal.Decimal
	Fee               decimal.Decimal
	LatencyMS         int64
	SupportsSwap      bool
	SupportsLocalRail bool
	Nonce             uint64
	ExpiresAt         *time.Time
}

func (m OfferMessage) Canonical() string {
	expiry := ""
	if m.ExpiresAt != nil {
		expiry = m.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s|seller=%s|chain=%s|token=%s|rate=%s|min=%s|max=%s|available=%s|fee=%s|latency=%d|swap=%t|localRail=%t|nonce=%d|expiry=%s",
		offerDomainV1,
		strings.ToLower(strings.TrimSpace(m.Seller)),
		strings.TrimSpace(m.Chain),
		strings.ToUpper(strings.TrimSpace(m.Token)),
		m.Rate.StringFixed(rateDecimals),
		m.MinAmount.StringFixed(quantityDecimals),
		m.MaxAmount.StringFixed(quantityDecimals),
		m.Available.StringFixed(quantityDecimals),
		m.Fee.StringFixed(quantityDecimals),
		m.LatencyMS,
		m.SupportsSwap,
		m.SupportsLocalRail,
		m.Nonce,
		expiry,
	)
}

// CancelMessage is the distinct shape signed for cancellations.
type CancelMessage struct {
	OfferID string
	Nonce   uint64
}

func (m CancelMessage) Canonical() string {
	return fmt.Sprintf("%s|offer=%s|nonce=%d", cancelDomainV1, strings.TrimSpace(m.OfferID), m.Nonce)
}

// AuditEntry is one matched chunk inside an audit message.
type AuditEntry struct {
	OfferID  string
	Quantity decimal.Decimal
}

// AuditMessage is the canonical payload the orchestrator signs for each
// completed route call.
type AuditMessage struct {
	AuditID       string
	Entries       []AuditEntry
	TotalQuantity decimal.Decimal
	TotalFiat     decimal.Decimal
}

func (m AuditMessage) Canonical() string {
	parts := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		parts = append(parts, e.OfferID+":"+e.Quantity.StringFixed(quantityDecimals))
	}
	return fmt.Sprintf("%s|audit=%s|offers=%s|quantity=%s|fiat=%s",
		auditDomainV1,
		strings.TrimSpace(m.AuditID),
		strings.Join(parts, ","),
		m.TotalQuantity.StringFixed(quantityDecimals),
		m.TotalFiat.StringFixed(quantityDecimals),
	)
}
