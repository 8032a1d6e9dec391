package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	rankingerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
	rankinghttp "calyx/contexts/market-core/ranking-engine/transport/http"
)

func (s *Server) handleCreateGood(w http.ResponseWriter, r *http.Request) {
	var req rankinghttp.CreateGoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRankingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ranking.Handler.CreateGoodHandler(r.Context(), req)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handlePublishGood(w http.ResponseWriter, r *http.Request) {
	goodID := r.PathValue("good_id")
	resp, err := s.ranking.Handler.PublishGoodHandler(r.Context(), goodID)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitReservation(w http.ResponseWriter, r *http.Request) {
	var req rankinghttp.SubmitReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRankingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	goodID := r.PathValue("good_id")
	resp, err := s.ranking.Handler.SubmitReservationHandler(r.Context(), goodID, req)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	goodID := r.PathValue("good_id")
	resp, err := s.ranking.Handler.ListReservationsHandler(r.Context(), goodID)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWinner(w http.ResponseWriter, r *http.Request) {
	goodID := r.PathValue("good_id")
	resp, err := s.ranking.Handler.GetWinnerHandler(r.Context(), goodID)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := r.PathValue("reservation_id")
	resp, err := s.ranking.Handler.GetReservationHandler(r.Context(), reservationID)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	reservationID := r.PathValue("reservation_id")
	resp, err := s.ranking.Handler.CancelReservationHandler(r.Context(), reservationID)
	if err != nil {
		writeRankingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRankingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rankingerrors.ErrGoodNotFound):
		writeRankingError(w, http.StatusNotFound, "good_not_found", err.Error())
	case errors.Is(err, rankingerrors.ErrReservationNotFound):
		writeRankingError(w, http.StatusNotFound, "reservation_not_found", err.Error())
	case errors.Is(err, rankingerrors.ErrGoodExists):
		writeRankingError(w, http.StatusConflict, "good_exists", err.Error())
	case errors.Is(err, rankingerrors.ErrReservationExists):
		writeRankingError(w, http.StatusConflict, "reservation_exists", err.Error())
	case errors.Is(err, rankingerrors.ErrGoodNotAvailable):
		writeRankingError(w, http.StatusConflict, "good_not_available", err.Error())
	case errors.Is(err, rankingerrors.ErrReservationNotActive):
		writeRankingError(w, http.StatusConflict, "reservation_not_active", err.Error())
	case errors.Is(err, rankingerrors.ErrInvalidAmount):
		writeRankingError(w, http.StatusUnprocessableEntity, "invalid_amount", err.Error())
	case errors.Is(err, rankingerrors.ErrInvalidBidderRef):
		writeRankingError(w, http.StatusBadRequest, "invalid_bidder_reference", err.Error())
	case errors.Is(err, rankingerrors.ErrInvalidReservationInput):
		writeRankingError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, rankingerrors.ErrRankingConflict):
		writeRankingError(w, http.StatusConflict, "ranking_conflict", "ranking conflict, try again")
	default:
		writeRankingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRankingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, rankinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
