package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "calyx/contexts/market-core/ranking-engine/application"
	"calyx/contexts/market-core/ranking-engine/application/commands"
	"calyx/contexts/market-core/ranking-engine/application/queries"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
	httptransport "calyx/contexts/market-core/ranking-engine/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) CreateGoodHandler(
	ctx context.Context,
	req httptransport.CreateGoodRequest,
) (httptransport.GoodDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	good, err := h.Commands.CreateGood(ctx, commands.CreateGoodCommand{
		GoodID:       req.GoodID,
		CollectionID: req.CollectionID,
		Published:    req.Published,
	})
	if err != nil {
		logger.Warn("ranking http create good failed",
			"event", "ranking_http_create_good_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"good_id", strings.TrimSpace(req.GoodID),
			"collection_id", strings.TrimSpace(req.CollectionID),
			"error", err.Error(),
		)
		return httptransport.GoodDTO{}, err
	}
	logger.Info("ranking http create good completed",
		"event", "ranking_http_create_good_completed",
		"module", "market-core/ranking-engine",
		"layer", "adapter",
		"good_id", good.ID,
	)
	return goodDTO(good), nil
}

func (h Handler) PublishGoodHandler(ctx context.Context, goodID string) (httptransport.GoodDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	good, err := h.Commands.PublishGood(ctx, goodID)
	if err != nil {
		logger.Warn("ranking http publish good failed",
			"event", "ranking_http_publish_good_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"good_id", strings.TrimSpace(goodID),
			"error", err.Error(),
		)
		return httptransport.GoodDTO{}, err
	}
	logger.Info("ranking http publish good completed",
		"event", "ranking_http_publish_good_completed",
		"module", "market-core/ranking-engine",
		"layer", "adapter",
		"good_id", good.ID,
	)
	return goodDTO(good), nil
}

func (h Handler) SubmitReservationHandler(
	ctx context.Context,
	goodID string,
	req httptransport.SubmitReservationRequest,
) (httptransport.SubmitReservationResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	amount, err := parseAmount(req.Amount)
	if err != nil {
		logger.Warn("ranking http submit amount parse failed",
			"event", "ranking_http_submit_amount_parse_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"good_id", strings.TrimSpace(goodID),
			"error", err.Error(),
		)
		return httptransport.SubmitReservationResponse{}, err
	}
	result, err := h.Commands.Submit(ctx, commands.SubmitCommand{
		GoodID:        goodID,
		AccountID:     req.AccountID,
		AccountType:   req.AccountType,
		WalletAddress: req.WalletAddress,
		Amount:        amount,
	})
	if err != nil {
		logger.Warn("ranking http submit reservation failed",
			"event", "ranking_http_submit_reservation_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"good_id", strings.TrimSpace(goodID),
			"error", err.Error(),
		)
		return httptransport.SubmitReservationResponse{}, err
	}
	logger.Info("ranking http submit reservation completed",
		"event", "ranking_http_submit_reservation_completed",
		"module", "market-core/ranking-engine",
		"layer", "adapter",
		"good_id", result.Reservation.GoodID,
		"reservation_id", result.Reservation.ID,
		"displaced_count", len(result.DisplacedIDs),
	)
	return httptransport.SubmitReservationResponse{
		Reservation:  reservationDTO(result.Reservation),
		DisplacedIDs: append([]string{}, result.DisplacedIDs...),
		RateFallback: result.RateFallback,
	}, nil
}

func (h Handler) CancelReservationHandler(
	ctx context.Context,
	reservationID string,
) (httptransport.CancelReservationResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	result, err := h.Commands.Cancel(ctx, commands.CancelCommand{
		ReservationID: reservationID,
	})
	if err != nil {
		logger.Warn("ranking http cancel reservation failed",
			"event", "ranking_http_cancel_reservation_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"reservation_id", strings.TrimSpace(reservationID),
			"error", err.Error(),
		)
		return httptransport.CancelReservationResponse{}, err
	}
	logger.Info("ranking http cancel reservation completed",
		"event", "ranking_http_cancel_reservation_completed",
		"module", "market-core/ranking-engine",
		"layer", "adapter",
		"reservation_id", result.Reservation.ID,
		"reactivated_count", len(result.ReactivatedIDs),
		"new_winner_id", result.NewWinnerID,
	)
	return httptransport.CancelReservationResponse{
		Reservation:    reservationDTO(result.Reservation),
		ReactivatedIDs: append([]string{}, result.ReactivatedIDs...),
		NewWinnerID:    result.NewWinnerID,
	}, nil
}

func (h Handler) GetWinnerHandler(ctx context.Context, goodID string) (httptransport.ReservationDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	winner, err := h.Queries.GetWinner(ctx, goodID)
	if err != nil {
		logger.Warn("ranking http get winner failed",
			"event", "ranking_http_get_winner_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"good_id", strings.TrimSpace(goodID),
			"error", err.Error(),
		)
		return httptransport.ReservationDTO{}, err
	}
	return reservationDTO(winner), nil
}

func (h Handler) ListReservationsHandler(
	ctx context.Context,
	goodID string,
) (httptransport.ListReservationsResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	reservations, err := h.Queries.ListByGood(ctx, goodID)
	if err != nil {
		logger.Warn("ranking http list reservations failed",
			"event", "ranking_http_list_reservations_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"good_id", strings.TrimSpace(goodID),
			"error", err.Error(),
		)
		return httptransport.ListReservationsResponse{}, err
	}
	dtos := make([]httptransport.ReservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		dtos = append(dtos, reservationDTO(reservation))
	}
	return httptransport.ListReservationsResponse{
		GoodID:       strings.TrimSpace(goodID),
		Reservations: dtos,
	}, nil
}

func (h Handler) GetReservationHandler(
	ctx context.Context,
	reservationID string,
) (httptransport.ReservationDTO, error) {
	logger := application.ResolveLogger(h.Logger)
	reservation, err := h.Queries.GetReservation(ctx, reservationID)
	if err != nil {
		logger.Warn("ranking http get reservation failed",
			"event", "ranking_http_get_reservation_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"reservation_id", strings.TrimSpace(reservationID),
			"error", err.Error(),
		)
		return httptransport.ReservationDTO{}, err
	}
	return reservationDTO(reservation), nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Decimal{}, domainerrors.ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, domainerrors.ErrInvalidAmount
	}
	return amount, nil
}

func goodDTO(good entities.Good) httptransport.GoodDTO {
	return httptransport.GoodDTO{
		ID:           good.ID,
		CollectionID: good.CollectionID,
		Published:    good.Published,
		Finalized:    good.Finalized,
		CreatedAt:    good.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func reservationDTO(reservation entities.Reservation) httptransport.ReservationDTO {
	supersededBy := ""
	if reservation.SupersededBy != nil {
		supersededBy = *reservation.SupersededBy
	}
	return httptransport.ReservationDTO{
		ID:              reservation.ID,
		GoodID:          reservation.GoodID,
		AccountID:       reservation.AccountID,
		AccountType:     reservation.AccountType,
		WalletAddress:   reservation.WalletAddress,
		Kind:            string(reservation.Kind),
		Amount:          reservation.Amount.String(),
		SecondaryAmount: reservation.SecondaryAmount.String(),
		ExchangeRate:    reservation.ExchangeRate.String(),
		Status:          string(reservation.Status),
		IsCurrent:       reservation.IsCurrent,
		SupersededBy:    supersededBy,
		CreatedAt:       reservation.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       reservation.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
