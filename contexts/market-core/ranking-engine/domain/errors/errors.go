package errors

import "errors"

var (
	ErrGoodNotFound            = errors.New("good not found")
	ErrGoodExists              = errors.New("good already exists")
	ErrGoodNotAvailable        = errors.New("good is not open for reservations")
	ErrInvalidAmount           = errors.New("offer amount must be positive")
	ErrInvalidBidderRef        = errors.New("reservation requires exactly one of account id or wallet address")
	ErrInvalidReservationInput = errors.New("invalid reservation input")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrReservationExists       = errors.New("reservation already exists")
	ErrReservationNotActive    = errors.New("reservation is not active")
	ErrRankingConflict         = errors.New("concurrent ranking update, try again")
)
