package commands_test

import (
	"context"
	"errors"
	"testing"

	"calyx/contexts/market-core/settlement-service/adapters/memory"
	"calyx/contexts/market-core/settlement-service/application/commands"
	"calyx/contexts/market-core/settlement-service/domain/entities"
	domainerrors "calyx/contexts/market-core/settlement-service/domain/errors"

	"github.com/shopspring/decimal"
)

func newCommands(store *memory.Store) commands.UseCase {
	return commands.UseCase{
		Repository: store,
		Outbox:     store,
		Audit:      store,
		Clock:      store,
		IDGen:      store,
	}
}

func fourWayWallets(collectionID string) []entities.Wallet {
	return []entities.Wallet{
		{ID: "w-creator", CollectionID: collectionID, Address: "0xcreator", Role: entities.RoleCreator, Share: decimal.RequireFromString("50")},
		{ID: "w-platform", CollectionID: collectionID, Address: "0xplatform", Role: entities.RolePlatform, Share: decimal.RequireFromString("15")},
		{ID: "w-partner", CollectionID: collectionID, Address: "0xpartner", Role: entities.RoleEnvironmentalPartner, Share: decimal.RequireFromString("25")},
		{ID: "w-reserve", CollectionID: collectionID, Address: "0xreserve", Share: decimal.RequireFromString("10")},
	}
}

func winningView(reservationID string) entities.ReservationView {
	return entities.ReservationView{
		ID:           reservationID,
		GoodID:       "good-1",
		CollectionID: "collection-1",
		AccountType:  "collector",
		Status:       "active",
		Amount:       decimal.NewFromInt(1000),
		ExchangeRate: decimal.NewFromInt(2),
		Winning:      true,
	}
}

func TestSettleSplitsAmountAcrossWallets(t *testing.T) {
	store := memory.NewStore(fourWayWallets("collection-1"))
	store.PutReservationView(winningView("res-1"))
	uc := newCommands(store)

	result, err := uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-1"})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if len(result.Distributions) != 4 {
		t.Fatalf("expected four distributions, got %d", len(result.Distributions))
	}
	if !result.TopRanked {
		t.Fatalf("expected top-ranked settlement")
	}
	if result.AuditedCount != 4 {
		t.Fatalf("expected four audit entries, got %d", result.AuditedCount)
	}

	byWallet := make(map[string]entities.Distribution, len(result.Distributions))
	total := decimal.Zero
	for _, distribution := range result.Distributions {
		byWallet[distribution.WalletID] = distribution
		total = total.Add(distribution.Amount)
		if distribution.Status != entities.DistributionStatusPending {
			t.Fatalf("expected pending status, got %s", distribution.Status)
		}
		if !distribution.TopRanked {
			t.Fatalf("expected top-ranked flag on every row")
		}
	}
	if !total.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected distributions to total 1000, got %s", total)
	}
	if !byWallet["w-creator"].Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected creator slice 500, got %s", byWallet["w-creator"].Amount)
	}
	if !byWallet["w-platform"].Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected platform slice 150, got %s", byWallet["w-platform"].Amount)
	}
	if !byWallet["w-partner"].Amount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected partner slice 250, got %s", byWallet["w-partner"].Amount)
	}
	if byWallet["w-reserve"].Role != entities.RoleCollector {
		t.Fatalf("expected untagged wallet to settle as collector, got %s", byWallet["w-reserve"].Role)
	}

	if !store.GoodFinalized("good-1") {
		t.Fatalf("expected the good finalized with the settlement")
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "reservation.settled" {
		t.Fatalf("expected one reservation.settled outbox message, got %v", pending)
	}
}

func TestSettleRejectsSecondAttempt(t *testing.T) {
	store := memory.NewStore(fourWayWallets("collection-1"))
	store.PutReservationView(winningView("res-1"))
	uc := newCommands(store)

	if _, err := uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-1"}); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}
	_, err := uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-1"})
	if !errors.Is(err, domainerrors.ErrDistributionsAlreadyExist) {
		t.Fatalf("expected ErrDistributionsAlreadyExist, got %v", err)
	}
}

func TestSettleValidatesPreconditions(t *testing.T) {
	store := memory.NewStore(fourWayWallets("collection-1"))
	uc := newCommands(store)

	_, err := uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "missing"})
	if !errors.Is(err, domainerrors.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}

	cancelled := winningView("res-cancelled")
	cancelled.Status = "cancelled"
	store.PutReservationView(cancelled)
	_, err = uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-cancelled"})
	if !errors.Is(err, domainerrors.ErrReservationNotActive) {
		t.Fatalf("expected ErrReservationNotActive, got %v", err)
	}

	zero := winningView("res-zero")
	zero.Amount = decimal.Zero
	store.PutReservationView(zero)
	_, err = uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-zero"})
	if !errors.Is(err, domainerrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	orphan := winningView("res-orphan")
	orphan.CollectionID = "collection-without-wallets"
	store.PutReservationView(orphan)
	_, err = uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-orphan"})
	if !errors.Is(err, domainerrors.ErrNoWalletsFound) {
		t.Fatalf("expected ErrNoWalletsFound, got %v", err)
	}

	_, err = uc.Settle(context.Background(), commands.SettleCommand{})
	if !errors.Is(err, domainerrors.ErrInvalidSettlementInput) {
		t.Fatalf("expected ErrInvalidSettlementInput, got %v", err)
	}
}

func TestSettleRejectsSharesNotSummingToHundred(t *testing.T) {
	wallets := fourWayWallets("collection-1")
	wallets[3].Share = decimal.RequireFromString("9.5")
	store := memory.NewStore(wallets)
	store.PutReservationView(winningView("res-1"))
	uc := newCommands(store)

	_, err := uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-1"})
	if !errors.Is(err, domainerrors.ErrInvalidSharePercentages) {
		t.Fatalf("expected ErrInvalidSharePercentages, got %v", err)
	}
	if store.GoodFinalized("good-1") {
		t.Fatalf("expected rejected settlement to leave the good open")
	}
	count, err := store.CountDistributions(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("count distributions failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no distribution rows after rejection, got %d", count)
	}
}

func TestSettleConservesTotalOnUnevenSplits(t *testing.T) {
	store := memory.NewStore([]entities.Wallet{
		{ID: "w-1", CollectionID: "collection-1", Role: entities.RoleCreator, Share: decimal.RequireFromString("33.333")},
		{ID: "w-2", CollectionID: "collection-1", Role: entities.RolePlatform, Share: decimal.RequireFromString("33.333")},
		{ID: "w-3", CollectionID: "collection-1", Role: entities.RoleCollector, Share: decimal.RequireFromString("33.334")},
	})
	view := winningView("res-1")
	view.Amount = decimal.RequireFromString("100")
	store.PutReservationView(view)
	uc := newCommands(store)

	result, err := uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-1"})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	total := decimal.Zero
	for _, distribution := range result.Distributions {
		total = total.Add(distribution.Amount)
	}
	// 33.33 + 33.33 + 33.33: per-slice rounding may shave cents off the
	// gross amount but must never overshoot it.
	if total.GreaterThan(view.Amount) {
		t.Fatalf("distributions overshoot the settled amount: %s", total)
	}
	if view.Amount.Sub(total).GreaterThan(decimal.RequireFromString("0.02")) {
		t.Fatalf("rounding drift too large: %s", view.Amount.Sub(total))
	}
}

func TestSettleMarksNonWinnerDistributionsLowRanked(t *testing.T) {
	store := memory.NewStore(fourWayWallets("collection-1"))
	loser := winningView("res-loser")
	loser.Winning = false
	store.PutReservationView(loser)
	uc := newCommands(store)

	result, err := uc.Settle(context.Background(), commands.SettleCommand{ReservationID: "res-loser"})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if result.TopRanked {
		t.Fatalf("expected non-winning settlement reported as low ranked")
	}
	for _, distribution := range result.Distributions {
		if distribution.TopRanked {
			t.Fatalf("expected low-ranked flag on every row")
		}
	}
	if store.GoodFinalized(loser.GoodID) {
		t.Fatalf("expected non-winning settlement to leave the good open")
	}
}

func TestSeedWalletValidatesAndGeneratesID(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newCommands(store)

	wallet, err := uc.SeedWallet(context.Background(), entities.Wallet{
		CollectionID: "collection-1",
		Address:      "0xabc",
		Role:         entities.RoleCreator,
		Share:        decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatalf("seed wallet failed: %v", err)
	}
	if wallet.ID == "" {
		t.Fatalf("expected generated wallet id")
	}

	_, err = uc.SeedWallet(context.Background(), entities.Wallet{
		Address: "0xabc",
		Share:   decimal.RequireFromString("100"),
	})
	if !errors.Is(err, domainerrors.ErrInvalidSettlementInput) {
		t.Fatalf("expected ErrInvalidSettlementInput for missing collection, got %v", err)
	}

	_, err = uc.SeedWallet(context.Background(), entities.Wallet{
		CollectionID: "collection-1",
		Address:      "0xabc",
		Share:        decimal.Zero,
	})
	if !errors.Is(err, domainerrors.ErrInvalidSettlementInput) {
		t.Fatalf("expected ErrInvalidSettlementInput for zero share, got %v", err)
	}
}
