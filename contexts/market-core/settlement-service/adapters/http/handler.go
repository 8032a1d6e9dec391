package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "calyx/contexts/market-core/settlement-service/application"
	"calyx/contexts/market-core/settlement-service/application/commands"
	"calyx/contexts/market-core/settlement-service/application/queries"
	"calyx/contexts/market-core/settlement-service/domain/entities"
	domainerrors "calyx/contexts/market-core/settlement-service/domain/errors"
	"calyx/contexts/market-core/settlement-service/ports"
	httptransport "calyx/contexts/market-core/settlement-service/transport/http"
)

type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

func (h Handler) SettleReservationHandler(
	ctx context.Context,
	reservationID string,
) (httptransport.SettleReservationResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	result, err := h.Commands.Settle(ctx, commands.SettleCommand{
		ReservationID: reservationID,
	})
	if err != nil {
		logger.Warn("settlement http settle failed",
			"event", "settlement_http_settle_failed",
			"module", "market-core/settlement-service",
			"layer", "adapter",
			"reservation_id", strings.TrimSpace(reservationID),
			"error", err.Error(),
		)
		return httptransport.SettleReservationResponse{}, err
	}
	dtos := make([]httptransport.DistributionDTO, 0, len(result.Distributions))
	for _, distribution := range result.Distributions {
		dtos = append(dtos, distributionDTO(distribution))
	}
	logger.Info("settlement http settle completed",
		"event", "settlement_http_settle_completed",
		"module", "market-core/settlement-service",
		"layer", "adapter",
		"reservation_id", strings.TrimSpace(reservationID),
		"distribution_count", len(dtos),
	)
	return httptransport.SettleReservationResponse{
		ReservationID: strings.TrimSpace(reservationID),
		TopRanked:     result.TopRanked,
		AuditedCount:  result.AuditedCount,
		Distributions: dtos,
	}, nil
}

func (h Handler) DistributionStatsHandler(
	ctx context.Context,
	collectionID string,
	from string,
	to string,
) (httptransport.DistributionStatsResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	filter, err := parseStatsFilter(from, to)
	if err != nil {
		logger.Warn("settlement http stats window parse failed",
			"event", "settlement_http_stats_parse_failed",
			"module", "market-core/settlement-service",
			"layer", "adapter",
			"collection_id", strings.TrimSpace(collectionID),
			"error", err.Error(),
		)
		return httptransport.DistributionStatsResponse{}, err
	}
	summary, err := h.Queries.GetDistributionStats(ctx, collectionID, filter)
	if err != nil {
		logger.Warn("settlement http stats failed",
			"event", "settlement_http_stats_failed",
			"module", "market-core/settlement-service",
			"layer", "adapter",
			"collection_id", strings.TrimSpace(collectionID),
			"error", err.Error(),
		)
		return httptransport.DistributionStatsResponse{}, err
	}
	return httptransport.DistributionStatsResponse{
		CollectionID: summary.CollectionID,
		Count:        summary.Count,
		TotalAmount:  summary.TotalAmount.StringFixed(2),
		ByRole:       bucketDTOs(summary.ByRole),
		ByStatus:     bucketDTOs(summary.ByStatus),
	}, nil
}

func (h Handler) DistributionTrackingHandler(
	ctx context.Context,
	collectionID string,
	from string,
	to string,
) (httptransport.DistributionTrackingResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	filter, err := parseStatsFilter(from, to)
	if err != nil {
		return httptransport.DistributionTrackingResponse{}, err
	}
	distributions, err := h.Queries.GetAllDistributionTracking(ctx, collectionID, filter)
	if err != nil {
		logger.Warn("settlement http tracking failed",
			"event", "settlement_http_tracking_failed",
			"module", "market-core/settlement-service",
			"layer", "adapter",
			"collection_id", strings.TrimSpace(collectionID),
			"error", err.Error(),
		)
		return httptransport.DistributionTrackingResponse{}, err
	}
	dtos := make([]httptransport.DistributionDTO, 0, len(distributions))
	for _, distribution := range distributions {
		dtos = append(dtos, distributionDTO(distribution))
	}
	return httptransport.DistributionTrackingResponse{
		CollectionID:  strings.TrimSpace(collectionID),
		Distributions: dtos,
	}, nil
}

func parseStatsFilter(from string, to string) (ports.StatsFilter, error) {
	var filter ports.StatsFilter
	if trimmed := strings.TrimSpace(from); trimmed != "" {
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return ports.StatsFilter{}, domainerrors.ErrInvalidSettlementInput
		}
		utc := parsed.UTC()
		filter.From = &utc
	}
	if trimmed := strings.TrimSpace(to); trimmed != "" {
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return ports.StatsFilter{}, domainerrors.ErrInvalidSettlementInput
		}
		utc := parsed.UTC()
		filter.To = &utc
	}
	return filter, nil
}

func bucketDTOs(buckets map[string]entities.StatsBucket) map[string]httptransport.StatsBucketDTO {
	dtos := make(map[string]httptransport.StatsBucketDTO, len(buckets))
	for key, bucket := range buckets {
		dtos[key] = httptransport.StatsBucketDTO{
			Count:       bucket.Count,
			TotalAmount: bucket.TotalAmount.StringFixed(2),
		}
	}
	return dtos
}

func distributionDTO(distribution entities.Distribution) httptransport.DistributionDTO {
	return httptransport.DistributionDTO{
		ID:            distribution.ID,
		ReservationID: distribution.ReservationID,
		GoodID:        distribution.GoodID,
		CollectionID:  distribution.CollectionID,
		WalletID:      distribution.WalletID,
		WalletAddress: distribution.WalletAddress,
		Role:          distribution.Role,
		Percentage:    distribution.Percentage.String(),
		Amount:        distribution.Amount.StringFixed(2),
		ExchangeRate:  distribution.ExchangeRate.String(),
		TopRanked:     distribution.TopRanked,
		Status:        string(distribution.Status),
		CreatedAt:     distribution.CreatedAt.UTC().Format(time.RFC3339),
	}
}
