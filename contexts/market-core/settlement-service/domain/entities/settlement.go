package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleCreator              = "creator"
	RolePlatform             = "platform"
	RoleEnvironmentalPartner = "environmental_partner"
	RoleCollector            = "collector"
)

type DistributionStatus string

const (
	DistributionStatusPending DistributionStatus = "pending"
	DistributionStatusPaid    DistributionStatus = "paid"
	DistributionStatusFailed  DistributionStatus = "failed"
)

// Wallet is one beneficiary of a collection's settlement split. Share is a
// percentage; the shares of a collection must sum to exactly 100 before any
// settlement against it is allowed.
type Wallet struct {
	ID           string
	CollectionID string
	Address      string
	Share        decimal.Decimal
	Role         string
	CreatedAt    time.Time
}

// Distribution is one wallet's slice of a settled reservation.
type Distribution struct {
	ID            string
	ReservationID string
	GoodID        string
	CollectionID  string
	WalletID      string
	WalletAddress string
	Role          string
	Percentage    decimal.Decimal
	Amount        decimal.Decimal
	ExchangeRate  decimal.Decimal
	TopRanked     bool
	Status        DistributionStatus
	CreatedAt     time.Time
}

// ReservationView is the read-only projection of a reservation joined with
// its good. The settlement service never mutates ranking state through it.
type ReservationView struct {
	ID           string
	GoodID       string
	CollectionID string
	AccountType  string
	Status       string
	Amount       decimal.Decimal
	ExchangeRate decimal.Decimal
	Winning      bool
}

type StatsBucket struct {
	Count       int
	TotalAmount decimal.Decimal
}

// StatsSummary aggregates distributions for a collection. Headline numbers
// count rank-1 distributions only.
type StatsSummary struct {
	CollectionID string
	Count        int
	TotalAmount  decimal.Decimal
	ByRole       map[string]StatsBucket
	ByStatus     map[string]StatsBucket
}

var oneHundred = decimal.NewFromInt(100)

// SharesSumToHundred reports whether the wallet shares cover the full amount.
// Equality is exact; there is no tolerance band.
func SharesSumToHundred(wallets []Wallet) bool {
	sum := decimal.Zero
	for _, wallet := range wallets {
		sum = sum.Add(wallet.Share)
	}
	return sum.Equal(oneHundred)
}

// SplitAmount computes one wallet's slice, rounded half away from zero to
// the currency's minor unit.
func SplitAmount(amount decimal.Decimal, share decimal.Decimal) decimal.Decimal {
	return amount.Mul(share).Div(oneHundred).Round(2)
}

// ResolveRole picks the role recorded on a distribution. An explicit role
// tag on the wallet wins; otherwise the bidder's account type decides, and
// anything unmapped settles as a collector payout.
func ResolveRole(wallet Wallet, accountType string) string {
	switch strings.TrimSpace(wallet.Role) {
	case RoleCreator, RolePlatform, RoleEnvironmentalPartner:
		return strings.TrimSpace(wallet.Role)
	}
	switch strings.TrimSpace(accountType) {
	case "artist":
		return RoleCreator
	case "gallery":
		return RolePlatform
	}
	return RoleCollector
}
