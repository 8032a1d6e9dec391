package httpserver

import (
	"errors"
	"net/http"

	settlementerrors "calyx/contexts/market-core/settlement-service/domain/errors"
	settlementhttp "calyx/contexts/market-core/settlement-service/transport/http"
)

func (s *Server) handleSettleReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := r.PathValue("reservation_id")
	resp, err := s.settlement.Handler.SettleReservationHandler(r.Context(), reservationID)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDistributionStats(w http.ResponseWriter, r *http.Request) {
	collectionID := r.PathValue("collection_id")
	query := r.URL.Query()
	resp, err := s.settlement.Handler.DistributionStatsHandler(
		r.Context(),
		collectionID,
		query.Get("from"),
		query.Get("to"),
	)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDistributionTracking(w http.ResponseWriter, r *http.Request) {
	collectionID := r.PathValue("collection_id")
	query := r.URL.Query()
	resp, err := s.settlement.Handler.DistributionTrackingHandler(
		r.Context(),
		collectionID,
		query.Get("from"),
		query.Get("to"),
	)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeSettlementDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlementerrors.ErrReservationNotFound):
		writeSettlementError(w, http.StatusNotFound, "reservation_not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrCollectionNotFound):
		writeSettlementError(w, http.StatusNotFound, "collection_not_found", err.Error())
	case errors.Is(err, settlementerrors.ErrReservationNotActive):
		writeSettlementError(w, http.StatusConflict, "reservation_not_active", err.Error())
	case errors.Is(err, settlementerrors.ErrDistributionsAlreadyExist):
		writeSettlementError(w, http.StatusConflict, "distributions_already_exist", err.Error())
	case errors.Is(err, settlementerrors.ErrWalletExists):
		writeSettlementError(w, http.StatusConflict, "wallet_exists", err.Error())
	case errors.Is(err, settlementerrors.ErrInvalidAmount):
		writeSettlementError(w, http.StatusUnprocessableEntity, "invalid_amount", err.Error())
	case errors.Is(err, settlementerrors.ErrNoWalletsFound):
		writeSettlementError(w, http.StatusUnprocessableEntity, "no_wallets_found", err.Error())
	case errors.Is(err, settlementerrors.ErrInvalidSharePercentages):
		writeSettlementError(w, http.StatusUnprocessableEntity, "invalid_share_percentages", err.Error())
	case errors.Is(err, settlementerrors.ErrInvalidSettlementInput):
		writeSettlementError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeSettlementError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSettlementError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, settlementhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
