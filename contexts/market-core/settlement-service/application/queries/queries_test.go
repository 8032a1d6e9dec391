package queries_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"calyx/contexts/market-core/settlement-service/adapters/memory"
	"calyx/contexts/market-core/settlement-service/application/commands"
	"calyx/contexts/market-core/settlement-service/application/queries"
	"calyx/contexts/market-core/settlement-service/domain/entities"
	domainerrors "calyx/contexts/market-core/settlement-service/domain/errors"
	"calyx/contexts/market-core/settlement-service/ports"

	"github.com/shopspring/decimal"
)

func settledFixture(t *testing.T) (queries.UseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore([]entities.Wallet{
		{ID: "w-creator", CollectionID: "collection-1", Role: entities.RoleCreator, Share: decimal.RequireFromString("60")},
		{ID: "w-platform", CollectionID: "collection-1", Role: entities.RolePlatform, Share: decimal.RequireFromString("40")},
	})
	store.PutReservationView(entities.ReservationView{
		ID:           "res-winner",
		GoodID:       "good-1",
		CollectionID: "collection-1",
		Status:       "active",
		Amount:       decimal.NewFromInt(1000),
		ExchangeRate: decimal.NewFromInt(2),
		Winning:      true,
	})
	store.PutReservationView(entities.ReservationView{
		ID:           "res-loser",
		GoodID:       "good-2",
		CollectionID: "collection-1",
		Status:       "active",
		Amount:       decimal.NewFromInt(400),
		ExchangeRate: decimal.NewFromInt(2),
		Winning:      false,
	})

	commandUseCase := commands.UseCase{
		Repository: store,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
	}
	for _, reservationID := range []string{"res-winner", "res-loser"} {
		if _, err := commandUseCase.Settle(context.Background(), commands.SettleCommand{
			ReservationID: reservationID,
		}); err != nil {
			t.Fatalf("settle %s failed: %v", reservationID, err)
		}
	}
	return queries.UseCase{Repository: store}, store
}

func TestDistributionStatsCountOnlyTopRankedRows(t *testing.T) {
	queryUseCase, _ := settledFixture(t)

	summary, err := queryUseCase.GetDistributionStats(context.Background(), "collection-1", ports.StatsFilter{})
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if summary.Count != 2 {
		t.Fatalf("expected the winner's two rows only, got %d", summary.Count)
	}
	if !summary.TotalAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected total 1000, got %s", summary.TotalAmount)
	}
	creator := summary.ByRole[entities.RoleCreator]
	if creator.Count != 1 || !creator.TotalAmount.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("unexpected creator bucket %+v", creator)
	}
	pending := summary.ByStatus[string(entities.DistributionStatusPending)]
	if pending.Count != 2 {
		t.Fatalf("expected both rows pending, got %d", pending.Count)
	}

	_, err = queryUseCase.GetDistributionStats(context.Background(), "", ports.StatsFilter{})
	if !errors.Is(err, domainerrors.ErrInvalidSettlementInput) {
		t.Fatalf("expected ErrInvalidSettlementInput, got %v", err)
	}
}

func TestDistributionStatsHonorsTimeWindow(t *testing.T) {
	queryUseCase, _ := settledFixture(t)

	past := time.Now().UTC().Add(-time.Hour)
	summary, err := queryUseCase.GetDistributionStats(context.Background(), "collection-1", ports.StatsFilter{
		To: &past,
	})
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if summary.Count != 0 {
		t.Fatalf("expected no rows before the window, got %d", summary.Count)
	}

	from := time.Now().UTC().Add(-time.Hour)
	summary, err = queryUseCase.GetDistributionStats(context.Background(), "collection-1", ports.StatsFilter{
		From: &from,
	})
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if summary.Count != 2 {
		t.Fatalf("expected rows inside the window, got %d", summary.Count)
	}
}

func TestDistributionTrackingListsAllRanks(t *testing.T) {
	queryUseCase, _ := settledFixture(t)

	tracking, err := queryUseCase.GetAllDistributionTracking(context.Background(), "collection-1", ports.StatsFilter{})
	if err != nil {
		t.Fatalf("tracking failed: %v", err)
	}
	if len(tracking) != 4 {
		t.Fatalf("expected all four rows in tracking, got %d", len(tracking))
	}
	var lowRanked int
	for _, distribution := range tracking {
		if !distribution.TopRanked {
			lowRanked++
		}
	}
	if lowRanked != 2 {
		t.Fatalf("expected two low-ranked rows, got %d", lowRanked)
	}
}
