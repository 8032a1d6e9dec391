package queries

import (
	"context"
	"log/slog"
	"strings"

	application "calyx/contexts/market-core/ranking-engine/application"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
	"calyx/contexts/market-core/ranking-engine/ports"
)

type UseCase struct {
	Repository ports.Repository
	Logger     *slog.Logger
}

func (uc UseCase) GetReservation(ctx context.Context, reservationID string) (entities.Reservation, error) {
	return uc.Repository.GetReservation(ctx, strings.TrimSpace(reservationID))
}

// GetWinner returns the good's single current reservation.
func (uc UseCase) GetWinner(ctx context.Context, goodID string) (entities.Reservation, error) {
	goodID = strings.TrimSpace(goodID)
	if _, err := uc.Repository.GetGood(ctx, goodID); err != nil {
		return entities.Reservation{}, err
	}
	current, err := uc.Repository.ListCurrent(ctx, goodID)
	if err != nil {
		return entities.Reservation{}, err
	}
	for _, reservation := range current {
		if reservation.Winning() {
			return reservation, nil
		}
	}
	return entities.Reservation{}, domainerrors.ErrReservationNotFound
}

// ListByGood returns the good's full reservation set, winner first, with
// the supersession chain visible through the SupersededBy references.
func (uc UseCase) ListByGood(ctx context.Context, goodID string) ([]entities.Reservation, error) {
	logger := application.ResolveLogger(uc.Logger)
	goodID = strings.TrimSpace(goodID)
	if _, err := uc.Repository.GetGood(ctx, goodID); err != nil {
		return nil, err
	}
	reservations, err := uc.Repository.ListByGood(ctx, goodID)
	if err != nil {
		logger.Warn("reservation list failed",
			"event", "ranking_query_list_failed",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"good_id", goodID,
			"error", err.Error(),
		)
		return nil, err
	}
	entities.SortByPriority(reservations)
	return reservations, nil
}
