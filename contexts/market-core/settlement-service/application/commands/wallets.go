package commands

import (
	"context"
	"strings"

	application "calyx/contexts/market-core/settlement-service/application"
	"calyx/contexts/market-core/settlement-service/domain/entities"
	domainerrors "calyx/contexts/market-core/settlement-service/domain/errors"
)

// SeedWallet registers a beneficiary wallet for a collection. Wallet
// configuration is owned by the collection aggregate; this entrypoint
// exists for bootstrap and tests and is not exposed over HTTP.
func (uc UseCase) SeedWallet(ctx context.Context, wallet entities.Wallet) (entities.Wallet, error) {
	if strings.TrimSpace(wallet.CollectionID) == "" || !wallet.Share.IsPositive() {
		return entities.Wallet{}, domainerrors.ErrInvalidSettlementInput
	}
	if strings.TrimSpace(wallet.ID) == "" {
		walletID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Wallet{}, err
		}
		wallet.ID = walletID
	}
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = uc.now()
	}
	if err := uc.Repository.PutWallet(ctx, wallet); err != nil {
		return entities.Wallet{}, err
	}
	application.ResolveLogger(uc.Logger).Info("settlement wallet seeded",
		"event", "settlement_wallet_seeded",
		"module", "market-core/settlement-service",
		"layer", "application",
		"wallet_id", wallet.ID,
		"collection_id", wallet.CollectionID,
		"role", wallet.Role,
		"share", wallet.Share.String(),
	)
	return wallet, nil
}
