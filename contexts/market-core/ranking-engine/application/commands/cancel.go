package commands

import (
	"context"
	"strings"

	application "calyx/contexts/market-core/ranking-engine/application"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
)

type CancelCommand struct {
	ReservationID string
}

type CancelResult struct {
	Reservation    entities.Reservation
	ReactivatedIDs []string
	NewWinnerID    string
	AuditRecorded  bool
}

// Cancel marks a reservation cancelled and reactivates the reservations it
// had displaced, re-ranking them together with the good's remaining current
// reservations so the good ends the operation with a single winner again.
// Reactivation is synchronous: the chain is fully repaired before Cancel
// returns.
func (uc UseCase) Cancel(ctx context.Context, cmd CancelCommand) (CancelResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	reservationID := strings.TrimSpace(cmd.ReservationID)
	if reservationID == "" {
		return CancelResult{}, domainerrors.ErrInvalidReservationInput
	}

	var (
		cancelled   entities.Reservation
		reactivated []entities.Reservation
		winner      *entities.Reservation
	)
	err := uc.Repository.WithTx(ctx, func(txCtx context.Context) error {
		reactivated = reactivated[:0]
		winner = nil

		reservation, err := uc.Repository.GetReservation(txCtx, reservationID)
		if err != nil {
			return err
		}
		if _, err := uc.Repository.GetGoodForUpdate(txCtx, reservation.GoodID); err != nil {
			return err
		}
		// Re-read under the good lock so a concurrent submit cannot slip
		// between the lookup and the mutation.
		reservation, err = uc.Repository.GetReservation(txCtx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != entities.ReservationStatusActive {
			return domainerrors.ErrReservationNotActive
		}

		now := uc.now()
		reservation.Status = entities.ReservationStatusCancelled
		reservation.IsCurrent = false
		reservation.UpdatedAt = now
		if err := uc.Repository.UpdateReservation(txCtx, reservation); err != nil {
			return err
		}
		cancelled = reservation

		dependants, err := uc.Repository.ListActiveSupersededBy(txCtx, reservation.ID)
		if err != nil {
			return err
		}
		if len(dependants) > 0 {
			dependantIDs := make(map[string]bool, len(dependants))
			for i := range dependants {
				dependants[i].IsCurrent = true
				dependants[i].SupersededBy = nil
				dependants[i].UpdatedAt = now
				dependantIDs[dependants[i].ID] = true
			}
			// A mid-chain cancellation frees dependants while another
			// reservation still holds the good, so the freed set is
			// re-ranked together with the standing current rows.
			standing, err := uc.Repository.ListCurrent(txCtx, reservation.GoodID)
			if err != nil {
				return err
			}
			pool := append(append([]entities.Reservation{}, dependants...), standing...)
			entities.SortByPriority(pool)
			top := pool[0]
			if dependantIDs[top.ID] {
				winner = &top
			}
			for i := range pool {
				if pool[i].ID == top.ID {
					pool[i].IsCurrent = true
					pool[i].SupersededBy = nil
				} else {
					pool[i].IsCurrent = false
					pool[i].SupersededBy = &top.ID
				}
				pool[i].UpdatedAt = now
				if err := uc.Repository.UpdateReservation(txCtx, pool[i]); err != nil {
					return err
				}
				if dependantIDs[pool[i].ID] {
					reactivated = append(reactivated, pool[i])
				}
			}
		}

		current, err := uc.Repository.ListCurrent(txCtx, reservation.GoodID)
		if err != nil {
			return err
		}
		if len(current) > 1 {
			logger.Warn("multiple current reservations after cancellation",
				"event", "ranking_invariant_multiple_current",
				"module", "market-core/ranking-engine",
				"layer", "application",
				"good_id", reservation.GoodID,
				"current_count", len(current),
			)
		}

		if err := uc.appendOutbox(txCtx, "reservation.cancelled", reservation.GoodID, map[string]any{
			"reservation_id": reservation.ID,
			"good_id":        reservation.GoodID,
		}); err != nil {
			return err
		}
		if winner != nil {
			return uc.appendOutbox(txCtx, "reservation.reactivated", reservation.GoodID, map[string]any{
				"reservation_id": winner.ID,
				"good_id":        reservation.GoodID,
			})
		}
		return nil
	})
	if err != nil {
		logger.Warn("reservation cancel failed",
			"event", "ranking_cancel_failed",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"reservation_id", reservationID,
			"error", err.Error(),
		)
		return CancelResult{}, err
	}

	result := CancelResult{Reservation: cancelled}
	for _, dependant := range reactivated {
		result.ReactivatedIDs = append(result.ReactivatedIDs, dependant.ID)
	}

	uc.invalidateCertificate(ctx, cancelled)
	if winner != nil {
		result.NewWinnerID = winner.ID
		// Re-validate the restored winner's certificate.
		uc.issueCertificate(ctx, *winner)
	}
	result.AuditRecorded = uc.recordAudit(ctx, "reservation.cancelled", map[string]any{
		"reservation_id": cancelled.ID,
		"good_id":        cancelled.GoodID,
		"reactivated":    result.ReactivatedIDs,
		"new_winner_id":  result.NewWinnerID,
	})

	logger.Info("reservation cancelled",
		"event", "ranking_reservation_cancelled",
		"module", "market-core/ranking-engine",
		"layer", "application",
		"reservation_id", cancelled.ID,
		"good_id", cancelled.GoodID,
		"reactivated_count", len(reactivated),
	)
	return result, nil
}
