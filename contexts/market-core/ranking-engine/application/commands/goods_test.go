package commands_test

import (
	"context"
	"errors"
	"testing"

	"calyx/contexts/market-core/ranking-engine/adapters/memory"
	"calyx/contexts/market-core/ranking-engine/application/commands"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"

	"github.com/shopspring/decimal"
)

func TestCreateGoodGeneratesIDAndRejectsDuplicates(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newCommands(store)

	good, err := uc.CreateGood(context.Background(), commands.CreateGoodCommand{
		CollectionID: "collection-1",
	})
	if err != nil {
		t.Fatalf("create good failed: %v", err)
	}
	if good.ID == "" {
		t.Fatalf("expected generated good id")
	}
	if good.Published {
		t.Fatalf("expected good to start unpublished")
	}

	_, err = uc.CreateGood(context.Background(), commands.CreateGoodCommand{
		GoodID:       good.ID,
		CollectionID: "collection-1",
	})
	if !errors.Is(err, domainerrors.ErrGoodExists) {
		t.Fatalf("expected ErrGoodExists, got %v", err)
	}

	_, err = uc.CreateGood(context.Background(), commands.CreateGoodCommand{})
	if !errors.Is(err, domainerrors.ErrInvalidReservationInput) {
		t.Fatalf("expected ErrInvalidReservationInput for missing collection, got %v", err)
	}
}

func TestPublishGoodOpensReservations(t *testing.T) {
	store := memory.NewStore([]entities.Good{
		{ID: "good-1", CollectionID: "collection-1"},
		{ID: "sealed", CollectionID: "collection-1", Published: true, Finalized: true},
	})
	uc := newCommands(store)

	_, err := uc.Submit(context.Background(), commands.SubmitCommand{
		GoodID:    "good-1",
		AccountID: "account-1",
		Amount:    decimal.NewFromInt(100),
	})
	if !errors.Is(err, domainerrors.ErrGoodNotAvailable) {
		t.Fatalf("expected unpublished good to reject reservations, got %v", err)
	}

	published, err := uc.PublishGood(context.Background(), "good-1")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if !published.Published {
		t.Fatalf("expected published flag set")
	}

	if _, err := uc.Submit(context.Background(), commands.SubmitCommand{
		GoodID:    "good-1",
		AccountID: "account-1",
		Amount:    decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("submit after publish failed: %v", err)
	}

	_, err = uc.PublishGood(context.Background(), "sealed")
	if !errors.Is(err, domainerrors.ErrGoodNotAvailable) {
		t.Fatalf("expected finalized good to reject publish, got %v", err)
	}
}
