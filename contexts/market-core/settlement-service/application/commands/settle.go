package commands

import (
	"context"
	"strings"

	application "calyx/contexts/market-core/settlement-service/application"
	"calyx/contexts/market-core/settlement-service/domain/entities"
	domainerrors "calyx/contexts/market-core/settlement-service/domain/errors"
)

type SettleCommand struct {
	ReservationID string
}

// SettleResult distinguishes "settlement committed, side effect failed"
// from a settlement failure. AuditedCount counts the distributions whose
// audit entry was written.
type SettleResult struct {
	Distributions []entities.Distribution
	TopRanked     bool
	AuditedCount  int
}

// Settle splits a reservation's amount across its collection's wallets and
// writes one distribution row per wallet. When the reservation is the good's
// winner the good is finalized in the same transaction. Preconditions are validated in a fixed order and the
// duplicate check runs inside the write transaction, so a concurrent second
// attempt fails with ErrDistributionsAlreadyExist instead of double-paying.
func (uc UseCase) Settle(ctx context.Context, cmd SettleCommand) (SettleResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	reservationID := strings.TrimSpace(cmd.ReservationID)
	if reservationID == "" {
		return SettleResult{}, domainerrors.ErrInvalidSettlementInput
	}

	var (
		view          entities.ReservationView
		distributions []entities.Distribution
	)
	err := uc.Repository.WithTx(ctx, func(txCtx context.Context) error {
		distributions = distributions[:0]

		var err error
		view, err = uc.Repository.GetReservationViewForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if view.Status != "active" {
			return domainerrors.ErrReservationNotActive
		}
		if !view.Amount.IsPositive() {
			return domainerrors.ErrInvalidAmount
		}
		if strings.TrimSpace(view.CollectionID) == "" {
			return domainerrors.ErrCollectionNotFound
		}

		existing, err := uc.Repository.CountDistributions(txCtx, reservationID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return domainerrors.ErrDistributionsAlreadyExist
		}

		wallets, err := uc.Repository.ListWallets(txCtx, view.CollectionID)
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			return domainerrors.ErrNoWalletsFound
		}
		if !entities.SharesSumToHundred(wallets) {
			return domainerrors.ErrInvalidSharePercentages
		}

		now := uc.now()
		for _, wallet := range wallets {
			distributionID, err := uc.IDGen.NewID(txCtx)
			if err != nil {
				return err
			}
			distribution := entities.Distribution{
				ID:            distributionID,
				ReservationID: view.ID,
				GoodID:        view.GoodID,
				CollectionID:  view.CollectionID,
				WalletID:      wallet.ID,
				WalletAddress: wallet.Address,
				Role:          entities.ResolveRole(wallet, view.AccountType),
				Percentage:    wallet.Share,
				Amount:        entities.SplitAmount(view.Amount, wallet.Share),
				ExchangeRate:  view.ExchangeRate,
				TopRanked:     view.Winning,
				Status:        entities.DistributionStatusPending,
				CreatedAt:     now,
			}
			if err := uc.Repository.CreateDistribution(txCtx, distribution); err != nil {
				return err
			}
			distributions = append(distributions, distribution)
		}

		// Only the winning reservation closes the good. A non-winner
		// settlement pays out its wallets but leaves the good open for
		// the current winner.
		if view.Winning {
			if err := uc.Repository.MarkGoodFinalized(txCtx, view.GoodID); err != nil {
				return err
			}
		}
		return uc.appendOutbox(txCtx, "reservation.settled", view.ID, map[string]any{
			"reservation_id":     view.ID,
			"good_id":            view.GoodID,
			"collection_id":      view.CollectionID,
			"distribution_count": len(wallets),
			"top_ranked":         view.Winning,
		})
	})
	if err != nil {
		logger.Warn("reservation settlement rejected",
			"event", "settlement_settle_rejected",
			"module", "market-core/settlement-service",
			"layer", "application",
			"reservation_id", reservationID,
			"error", err.Error(),
		)
		return SettleResult{}, err
	}

	audited := 0
	for _, distribution := range distributions {
		if uc.recordAudit(ctx, "distribution.created", map[string]any{
			"distribution_id": distribution.ID,
			"reservation_id":  distribution.ReservationID,
			"collection_id":   distribution.CollectionID,
			"wallet_id":       distribution.WalletID,
			"role":            distribution.Role,
			"amount":          distribution.Amount.String(),
			"percentage":      distribution.Percentage.String(),
			"top_ranked":      distribution.TopRanked,
		}) {
			audited++
		}
	}

	logger.Info("reservation settled",
		"event", "settlement_settle_completed",
		"module", "market-core/settlement-service",
		"layer", "application",
		"reservation_id", view.ID,
		"good_id", view.GoodID,
		"collection_id", view.CollectionID,
		"distribution_count", len(distributions),
		"top_ranked", view.Winning,
		"audited_count", audited,
	)
	return SettleResult{
		Distributions: distributions,
		TopRanked:     view.Winning,
		AuditedCount:  audited,
	}, nil
}
