package errors

import "errors"

var (
	ErrInvalidSettlementInput    = errors.New("settlement input is invalid")
	ErrReservationNotFound       = errors.New("reservation not found")
	ErrReservationNotActive      = errors.New("reservation is not active")
	ErrInvalidAmount             = errors.New("reservation amount must be positive")
	ErrCollectionNotFound        = errors.New("collection not found for reservation")
	ErrNoWalletsFound            = errors.New("no wallets configured for collection")
	ErrInvalidSharePercentages   = errors.New("wallet shares must sum to exactly 100")
	ErrDistributionsAlreadyExist = errors.New("distributions already exist for reservation")
	ErrWalletExists              = errors.New("wallet already exists")
)
