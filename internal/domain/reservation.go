package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
)

// Reservation is a temporary hold against one offer's available quantity.
// Pending transitions exactly once to committed or released.
type Reservation struct {
	ID        string
	OfferID   string
	Quantity  decimal.Decimal
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}
