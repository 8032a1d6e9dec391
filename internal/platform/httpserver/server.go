package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	rankingengine "calyx/contexts/market-core/ranking-engine"
	settlementservice "calyx/contexts/market-core/settlement-service"
	_ "calyx/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	ranking    rankingengine.Module
	settlement settlementservice.Module
}

func New(
	ranking rankingengine.Module,
	settlement settlementservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		ranking:    ranking,
		settlement: settlement,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/goods", s.handleCreateGood)
	s.mux.HandleFunc("POST /v1/goods/{good_id}/publish", s.handlePublishGood)
	s.mux.HandleFunc("POST /v1/goods/{good_id}/reservations", s.handleSubmitReservation)
	s.mux.HandleFunc("GET /v1/goods/{good_id}/reservations", s.handleListReservations)
	s.mux.HandleFunc("GET /v1/goods/{good_id}/winner", s.handleGetWinner)
	s.mux.HandleFunc("GET /v1/reservations/{reservation_id}", s.handleGetReservation)
	s.mux.HandleFunc("POST /v1/reservations/{reservation_id}/cancel", s.handleCancelReservation)

	s.mux.HandleFunc("POST /v1/reservations/{reservation_id}/settle", s.handleSettleReservation)
	s.mux.HandleFunc("GET /v1/collections/{collection_id}/distributions/stats", s.handleDistributionStats)
	s.mux.HandleFunc("GET /v1/collections/{collection_id}/distributions/tracking", s.handleDistributionTracking)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
