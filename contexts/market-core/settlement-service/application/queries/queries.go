package queries

import (
	"context"
	"log/slog"
	"strings"

	application "calyx/contexts/market-core/settlement-service/application"
	"calyx/contexts/market-core/settlement-service/domain/entities"
	domainerrors "calyx/contexts/market-core/settlement-service/domain/errors"
	"calyx/contexts/market-core/settlement-service/ports"
)

type UseCase struct {
	Repository ports.Repository
	Logger     *slog.Logger
}

// GetDistributionStats aggregates a collection's settled amounts. Only
// rank-1 distributions feed the totals; lower-ranked rows stay out of
// headline numbers.
func (uc UseCase) GetDistributionStats(
	ctx context.Context,
	collectionID string,
	filter ports.StatsFilter,
) (entities.StatsSummary, error) {
	trimmed := strings.TrimSpace(collectionID)
	if trimmed == "" {
		return entities.StatsSummary{}, domainerrors.ErrInvalidSettlementInput
	}
	summary, err := uc.Repository.SummarizeDistributions(ctx, trimmed, filter, true)
	if err != nil {
		application.ResolveLogger(uc.Logger).Warn("distribution stats query failed",
			"event", "settlement_stats_failed",
			"module", "market-core/settlement-service",
			"layer", "application",
			"collection_id", trimmed,
			"error", err.Error(),
		)
		return entities.StatsSummary{}, err
	}
	return summary, nil
}

// GetAllDistributionTracking lists every distribution of a collection
// regardless of rank, for audit trails.
func (uc UseCase) GetAllDistributionTracking(
	ctx context.Context,
	collectionID string,
	filter ports.StatsFilter,
) ([]entities.Distribution, error) {
	trimmed := strings.TrimSpace(collectionID)
	if trimmed == "" {
		return nil, domainerrors.ErrInvalidSettlementInput
	}
	distributions, err := uc.Repository.ListDistributionTracking(ctx, trimmed, filter)
	if err != nil {
		application.ResolveLogger(uc.Logger).Warn("distribution tracking query failed",
			"event", "settlement_tracking_failed",
			"module", "market-core/settlement-service",
			"layer", "application",
			"collection_id", trimmed,
			"error", err.Error(),
		)
		return nil, err
	}
	return distributions, nil
}
