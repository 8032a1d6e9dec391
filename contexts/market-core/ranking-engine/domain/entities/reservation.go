package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReservationKind string

const (
	// KindStrong is a reservation placed by a verified account holder.
	KindStrong ReservationKind = "strong"
	// KindWeak is a reservation placed with a bare wallet address.
	KindWeak ReservationKind = "weak"
)

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Good is the scarce item reservations compete for. Once Finalized is set
// the good accepts no further reservations.
type Good struct {
	ID           string
	CollectionID string
	Published    bool
	Finalized    bool
	CreatedAt    time.Time
}

// Reservation is a bid on one good. Exactly one of AccountID or
// WalletAddress identifies the bidder; AccountID implies KindStrong,
// WalletAddress alone implies KindWeak.
//
// SupersededBy links a displaced reservation to the reservation that
// displaced it. The chain survives restarts, so it is an id reference,
// never an in-memory pointer.
type Reservation struct {
	ID              string
	GoodID          string
	AccountID       string
	AccountType     string
	WalletAddress   string
	Kind            ReservationKind
	Amount          decimal.Decimal
	SecondaryAmount decimal.Decimal
	ExchangeRate    decimal.Decimal
	Status          ReservationStatus
	IsCurrent       bool
	SupersededBy    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Winning reports whether the reservation is the good's single winner:
// active, current, and displaced by nobody.
func (r Reservation) Winning() bool {
	return r.Status == ReservationStatusActive && r.IsCurrent && r.SupersededBy == nil
}
