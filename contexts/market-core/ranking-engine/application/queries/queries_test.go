package queries_test

import (
	"context"
	"errors"
	"testing"

	"calyx/contexts/market-core/ranking-engine/adapters/memory"
	"calyx/contexts/market-core/ranking-engine/application/commands"
	"calyx/contexts/market-core/ranking-engine/application/queries"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"

	"github.com/shopspring/decimal"
)

func seededUseCases(t *testing.T) (commands.UseCase, queries.UseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore([]entities.Good{
		{ID: "good-1", CollectionID: "collection-1", Published: true},
	})
	commandUseCase := commands.UseCase{
		Repository: store,
		Outbox:     store,
		Rates:      store,
		Clock:      store,
		IDGen:      store,
	}
	queryUseCase := queries.UseCase{Repository: store}
	return commandUseCase, queryUseCase, store
}

func TestGetWinnerReturnsSingleCurrentReservation(t *testing.T) {
	commandUseCase, queryUseCase, _ := seededUseCases(t)

	_, err := queryUseCase.GetWinner(context.Background(), "good-1")
	if !errors.Is(err, domainerrors.ErrReservationNotFound) {
		t.Fatalf("expected no winner on empty good, got %v", err)
	}

	loser, err := commandUseCase.Submit(context.Background(), commands.SubmitCommand{
		GoodID:        "good-1",
		WalletAddress: "0xabc",
		Amount:        decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("weak submit failed: %v", err)
	}
	expected, err := commandUseCase.Submit(context.Background(), commands.SubmitCommand{
		GoodID:    "good-1",
		AccountID: "account-1",
		Amount:    decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("strong submit failed: %v", err)
	}

	winner, err := queryUseCase.GetWinner(context.Background(), "good-1")
	if err != nil {
		t.Fatalf("get winner failed: %v", err)
	}
	if winner.ID != expected.Reservation.ID {
		t.Fatalf("expected winner %s, got %s", expected.Reservation.ID, winner.ID)
	}
	if winner.ID == loser.Reservation.ID {
		t.Fatalf("displaced reservation reported as winner")
	}

	_, err = queryUseCase.GetWinner(context.Background(), "missing")
	if !errors.Is(err, domainerrors.ErrGoodNotFound) {
		t.Fatalf("expected ErrGoodNotFound, got %v", err)
	}
}

func TestListByGoodReturnsWinnerFirstWithChainVisible(t *testing.T) {
	commandUseCase, queryUseCase, _ := seededUseCases(t)

	amounts := []int64{250, 700, 400}
	for i, amount := range amounts {
		if _, err := commandUseCase.Submit(context.Background(), commands.SubmitCommand{
			GoodID:        "good-1",
			WalletAddress: "0xwallet",
			Amount:        decimal.NewFromInt(amount),
		}); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	reservations, err := queryUseCase.ListByGood(context.Background(), "good-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(reservations) != 3 {
		t.Fatalf("expected 3 reservations, got %d", len(reservations))
	}
	if !reservations[0].Amount.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("expected winner first, got amount %s", reservations[0].Amount)
	}
	if !reservations[0].Winning() {
		t.Fatalf("expected first entry to be the winner")
	}
	for _, reservation := range reservations[1:] {
		if reservation.SupersededBy == nil {
			t.Fatalf("expected losers to carry supersession links")
		}
	}
}

func TestGetReservationByID(t *testing.T) {
	commandUseCase, queryUseCase, _ := seededUseCases(t)

	submitted, err := commandUseCase.Submit(context.Background(), commands.SubmitCommand{
		GoodID:    "good-1",
		AccountID: "account-1",
		Amount:    decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	loaded, err := queryUseCase.GetReservation(context.Background(), submitted.Reservation.ID)
	if err != nil {
		t.Fatalf("get reservation failed: %v", err)
	}
	if loaded.ID != submitted.Reservation.ID {
		t.Fatalf("expected reservation %s, got %s", submitted.Reservation.ID, loaded.ID)
	}

	_, err = queryUseCase.GetReservation(context.Background(), "missing")
	if !errors.Is(err, domainerrors.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}
