package commands

import (
	"context"
	"strings"

	application "calyx/contexts/market-core/ranking-engine/application"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
)

type CreateGoodCommand struct {
	GoodID       string
	CollectionID string
	Published    bool
}

// CreateGood registers a good so reservations can target it. The good id is
// generated when the caller does not supply one.
func (uc UseCase) CreateGood(ctx context.Context, cmd CreateGoodCommand) (entities.Good, error) {
	collectionID := strings.TrimSpace(cmd.CollectionID)
	if collectionID == "" {
		return entities.Good{}, domainerrors.ErrInvalidReservationInput
	}
	goodID := strings.TrimSpace(cmd.GoodID)
	if goodID == "" {
		var err error
		goodID, err = uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Good{}, err
		}
	}

	good := entities.Good{
		ID:           goodID,
		CollectionID: collectionID,
		Published:    cmd.Published,
		CreatedAt:    uc.now(),
	}
	if err := uc.Repository.CreateGood(ctx, good); err != nil {
		return entities.Good{}, err
	}

	application.ResolveLogger(uc.Logger).Info("good created",
		"event", "ranking_good_created",
		"module", "market-core/ranking-engine",
		"layer", "application",
		"good_id", good.ID,
		"collection_id", collectionID,
		"published", good.Published,
	)
	return good, nil
}

// PublishGood opens an unpublished good for reservations. Finalized goods
// stay closed.
func (uc UseCase) PublishGood(ctx context.Context, goodID string) (entities.Good, error) {
	goodID = strings.TrimSpace(goodID)
	if goodID == "" {
		return entities.Good{}, domainerrors.ErrInvalidReservationInput
	}

	var good entities.Good
	err := uc.Repository.WithTx(ctx, func(txCtx context.Context) error {
		loaded, err := uc.Repository.GetGoodForUpdate(txCtx, goodID)
		if err != nil {
			return err
		}
		if loaded.Finalized {
			return domainerrors.ErrGoodNotAvailable
		}
		loaded.Published = true
		if err := uc.Repository.UpdateGood(txCtx, loaded); err != nil {
			return err
		}
		good = loaded
		return nil
	})
	if err != nil {
		return entities.Good{}, err
	}

	application.ResolveLogger(uc.Logger).Info("good published",
		"event", "ranking_good_published",
		"module", "market-core/ranking-engine",
		"layer", "application",
		"good_id", good.ID,
	)
	return good, nil
}
