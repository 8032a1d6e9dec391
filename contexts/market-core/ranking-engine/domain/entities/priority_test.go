package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHigherPriorityStrongBeatsWeakRegardlessOfAmount(t *testing.T) {
	strong := Reservation{Kind: KindStrong, Amount: decimal.NewFromInt(10)}
	weak := Reservation{Kind: KindWeak, Amount: decimal.NewFromInt(10000)}

	if !HigherPriority(strong, weak) {
		t.Fatalf("expected strong reservation to outrank weak one")
	}
	if HigherPriority(weak, strong) {
		t.Fatalf("expected weak reservation not to outrank strong one")
	}
}

func TestHigherPriorityAmountWithinSameKind(t *testing.T) {
	small := Reservation{Kind: KindWeak, Amount: decimal.NewFromInt(100)}
	large := Reservation{Kind: KindWeak, Amount: decimal.NewFromInt(250)}

	if !HigherPriority(large, small) {
		t.Fatalf("expected larger amount to outrank smaller one")
	}
	if HigherPriority(small, large) {
		t.Fatalf("expected smaller amount not to outrank larger one")
	}
}

func TestHigherPriorityExactTieIsUnordered(t *testing.T) {
	a := Reservation{Kind: KindStrong, Amount: decimal.NewFromInt(500)}
	b := Reservation{Kind: KindStrong, Amount: decimal.NewFromInt(500)}

	if HigherPriority(a, b) || HigherPriority(b, a) {
		t.Fatalf("expected exact kind+amount tie to be unordered")
	}
}

func TestSortByPriorityOrdersBestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reservations := []Reservation{
		{ID: "weak-large", Kind: KindWeak, Amount: decimal.NewFromInt(900), CreatedAt: base},
		{ID: "strong-late", Kind: KindStrong, Amount: decimal.NewFromInt(100), CreatedAt: base.Add(2 * time.Minute)},
		{ID: "strong-early", Kind: KindStrong, Amount: decimal.NewFromInt(100), CreatedAt: base.Add(time.Minute)},
		{ID: "strong-top", Kind: KindStrong, Amount: decimal.NewFromInt(300), CreatedAt: base.Add(3 * time.Minute)},
		{ID: "weak-small", Kind: KindWeak, Amount: decimal.NewFromInt(50), CreatedAt: base},
	}

	SortByPriority(reservations)

	want := []string{"strong-top", "strong-early", "strong-late", "weak-large", "weak-small"}
	for i, id := range want {
		if reservations[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, reservations[i].ID)
		}
	}
}

func TestWinningRequiresActiveCurrentUnsuperseded(t *testing.T) {
	winner := Reservation{Status: ReservationStatusActive, IsCurrent: true}
	if !winner.Winning() {
		t.Fatalf("expected active current reservation to be winning")
	}

	displacedBy := "other"
	cases := []Reservation{
		{Status: ReservationStatusCancelled, IsCurrent: true},
		{Status: ReservationStatusActive, IsCurrent: false},
		{Status: ReservationStatusActive, IsCurrent: true, SupersededBy: &displacedBy},
	}
	for i, reservation := range cases {
		if reservation.Winning() {
			t.Fatalf("case %d: expected reservation not to be winning", i)
		}
	}
}
