package commands

import (
	"context"
	"strings"

	application "calyx/contexts/market-core/ranking-engine/application"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"

	"github.com/shopspring/decimal"
)

type SubmitCommand struct {
	GoodID        string
	AccountID     string
	AccountType   string
	WalletAddress string
	Kind          entities.ReservationKind
	Amount        decimal.Decimal
}

// SubmitResult reports the committed reservation plus the outcome of every
// best-effort side effect, so callers can tell "core succeeded, side effect
// failed" apart from a core failure.
type SubmitResult struct {
	Reservation       entities.Reservation
	DisplacedIDs      []string
	RateFallback      bool
	CertificateIssued bool
	AuditRecorded     bool
}

// Submit places a reservation on a good and re-establishes the single-winner
// invariant inside one unit of work scoped to that good.
func (uc UseCase) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	goodID := strings.TrimSpace(cmd.GoodID)
	if goodID == "" {
		return SubmitResult{}, domainerrors.ErrInvalidReservationInput
	}
	kind, err := resolveKind(cmd)
	if err != nil {
		logger.Warn("reservation submit invalid bidder reference",
			"event", "ranking_submit_invalid_bidder_ref",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"good_id", goodID,
		)
		return SubmitResult{}, err
	}
	if !cmd.Amount.IsPositive() {
		return SubmitResult{}, domainerrors.ErrInvalidAmount
	}

	// Rate conversion stays outside the critical section. A converter
	// failure falls back to the configured default rate rather than
	// rejecting the reservation.
	secondary, rate, fallback := uc.convertAmount(ctx, goodID, cmd.Amount)

	reservationID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SubmitResult{}, err
	}

	now := uc.now()
	reservation := entities.Reservation{
		ID:              reservationID,
		GoodID:          goodID,
		AccountID:       strings.TrimSpace(cmd.AccountID),
		AccountType:     strings.TrimSpace(cmd.AccountType),
		WalletAddress:   strings.TrimSpace(cmd.WalletAddress),
		Kind:            kind,
		Amount:          cmd.Amount,
		SecondaryAmount: secondary,
		ExchangeRate:    rate,
		Status:          entities.ReservationStatusActive,
		IsCurrent:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var displaced []entities.Reservation
	err = uc.withRankingTx(ctx, goodID, func(txCtx context.Context) error {
		displaced = displaced[:0]
		reservation.IsCurrent = true
		reservation.SupersededBy = nil

		good, err := uc.Repository.GetGoodForUpdate(txCtx, goodID)
		if err != nil {
			return err
		}
		if !good.Published || good.Finalized {
			return domainerrors.ErrGoodNotAvailable
		}

		current, err := uc.Repository.ListCurrent(txCtx, goodID)
		if err != nil {
			return err
		}
		if len(current) > 1 {
			// The algorithm tolerates this, but a healthy store never
			// holds more than one current row per good.
			logger.Warn("multiple current reservations observed before submit",
				"event", "ranking_invariant_multiple_current",
				"module", "market-core/ranking-engine",
				"layer", "application",
				"good_id", goodID,
				"current_count", len(current),
			)
		}

		for i := range current {
			existing := current[i]
			switch {
			case entities.HigherPriority(reservation, existing):
				existing.IsCurrent = false
				existing.SupersededBy = &reservation.ID
				existing.UpdatedAt = now
				if err := uc.Repository.UpdateReservation(txCtx, existing); err != nil {
					return err
				}
				displaced = append(displaced, existing)
				continue
			case entities.HigherPriority(existing, reservation):
				reservation.IsCurrent = false
				reservation.SupersededBy = &existing.ID
			default:
				// Exact kind+amount tie: the earlier submission wins. The
				// pre-existing row counts as earlier on equal timestamps.
				if !existing.CreatedAt.After(reservation.CreatedAt) {
					reservation.IsCurrent = false
					reservation.SupersededBy = &existing.ID
				} else {
					existing.IsCurrent = false
					existing.SupersededBy = &reservation.ID
					existing.UpdatedAt = now
					if err := uc.Repository.UpdateReservation(txCtx, existing); err != nil {
						return err
					}
					displaced = append(displaced, existing)
					continue
				}
			}
			// First existing reservation that outranks the new one settles
			// the outcome; no need to compare further rows.
			break
		}

		if err := uc.Repository.CreateReservation(txCtx, reservation); err != nil {
			return err
		}

		if err := uc.appendOutbox(txCtx, "reservation.submitted", goodID, map[string]any{
			"reservation_id": reservation.ID,
			"good_id":        goodID,
			"kind":           string(reservation.Kind),
			"amount":         reservation.Amount.String(),
			"is_current":     reservation.IsCurrent,
		}); err != nil {
			return err
		}
		for _, loser := range displaced {
			if err := uc.appendOutbox(txCtx, "reservation.superseded", goodID, map[string]any{
				"reservation_id": loser.ID,
				"good_id":        goodID,
				"superseded_by":  reservation.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("reservation submit failed",
			"event", "ranking_submit_failed",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"good_id", goodID,
			"error", err.Error(),
		)
		return SubmitResult{}, err
	}

	result := SubmitResult{
		Reservation:  reservation,
		RateFallback: fallback,
	}
	for _, loser := range displaced {
		result.DisplacedIDs = append(result.DisplacedIDs, loser.ID)
	}

	result.CertificateIssued = uc.issueCertificate(ctx, reservation)
	for _, loser := range displaced {
		uc.invalidateCertificate(ctx, loser)
	}
	result.AuditRecorded = uc.recordAudit(ctx, "reservation.submitted", map[string]any{
		"reservation_id": reservation.ID,
		"good_id":        goodID,
		"kind":           string(reservation.Kind),
		"amount":         reservation.Amount.String(),
		"displaced":      result.DisplacedIDs,
	})

	logger.Info("reservation submitted",
		"event", "ranking_reservation_submitted",
		"module", "market-core/ranking-engine",
		"layer", "application",
		"reservation_id", reservation.ID,
		"good_id", goodID,
		"kind", string(reservation.Kind),
		"is_current", reservation.IsCurrent,
		"displaced_count", len(displaced),
		"rate_fallback", fallback,
	)
	return result, nil
}

func (uc UseCase) convertAmount(
	ctx context.Context,
	goodID string,
	amount decimal.Decimal,
) (decimal.Decimal, decimal.Decimal, bool) {
	if uc.Rates != nil {
		secondary, rate, err := uc.Rates.ConvertFiatToSecondary(ctx, amount)
		if err == nil {
			return secondary, rate, false
		}
		application.ResolveLogger(uc.Logger).Warn("rate conversion failed, using default rate",
			"event", "ranking_rate_conversion_fallback",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"good_id", goodID,
			"error", err.Error(),
		)
	}
	rate := uc.DefaultRate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	return amount.Mul(rate), rate, true
}

func (uc UseCase) issueCertificate(ctx context.Context, reservation entities.Reservation) bool {
	if uc.Certificates == nil {
		return false
	}
	if err := uc.Certificates.IssueCertificate(ctx, reservation); err != nil {
		application.ResolveLogger(uc.Logger).Error("certificate issuance failed",
			"event", "ranking_certificate_issue_failed",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"reservation_id", reservation.ID,
			"error", err.Error(),
		)
		return false
	}
	return true
}

func (uc UseCase) invalidateCertificate(ctx context.Context, reservation entities.Reservation) {
	if uc.Certificates == nil {
		return
	}
	if err := uc.Certificates.InvalidateCertificate(ctx, reservation); err != nil {
		application.ResolveLogger(uc.Logger).Error("certificate invalidation failed",
			"event", "ranking_certificate_invalidate_failed",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"reservation_id", reservation.ID,
			"error", err.Error(),
		)
	}
}

func resolveKind(cmd SubmitCommand) (entities.ReservationKind, error) {
	accountID := strings.TrimSpace(cmd.AccountID)
	walletAddress := strings.TrimSpace(cmd.WalletAddress)
	if (accountID == "") == (walletAddress == "") {
		return "", domainerrors.ErrInvalidBidderRef
	}
	switch cmd.Kind {
	case "":
		if accountID != "" {
			return entities.KindStrong, nil
		}
		return entities.KindWeak, nil
	case entities.KindStrong:
		if accountID == "" {
			return "", domainerrors.ErrInvalidBidderRef
		}
		return entities.KindStrong, nil
	case entities.KindWeak:
		if walletAddress == "" {
			return "", domainerrors.ErrInvalidBidderRef
		}
		return entities.KindWeak, nil
	default:
		return "", domainerrors.ErrInvalidReservationInput
	}
}
