package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	rankingengine "calyx/contexts/market-core/ranking-engine"
	rankingentities "calyx/contexts/market-core/ranking-engine/domain/entities"
	rankinghttp "calyx/contexts/market-core/ranking-engine/transport/http"
	settlementservice "calyx/contexts/market-core/settlement-service"
	settlemententities "calyx/contexts/market-core/settlement-service/domain/entities"
	settlementhttp "calyx/contexts/market-core/settlement-service/transport/http"

	"github.com/shopspring/decimal"
)

func newTestServer() *Server {
	ranking := rankingengine.NewInMemoryModule([]rankingentities.Good{
		{ID: "good-1", CollectionID: "collection-1", Published: true},
	}, nil)
	settlement := settlementservice.NewInMemoryModule([]settlemententities.Wallet{
		{ID: "w-creator", CollectionID: "collection-1", Role: settlemententities.RoleCreator, Share: decimal.RequireFromString("70")},
		{ID: "w-platform", CollectionID: "collection-1", Role: settlemententities.RolePlatform, Share: decimal.RequireFromString("30")},
	}, nil)
	return New(ranking, settlement, nil, ":0")
}

func doJSON(t *testing.T, server *Server, method string, path string, body string, out any) int {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, request)
	if out != nil && recorder.Body.Len() > 0 {
		if err := json.NewDecoder(recorder.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response failed: %v", method, path, err)
		}
	}
	return recorder.Code
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	server := newTestServer()

	var weak rankinghttp.SubmitReservationResponse
	status := doJSON(t, server, http.MethodPost, "/v1/goods/good-1/reservations",
		`{"wallet_address":"0xabc","amount":"500"}`, &weak)
	if status != http.StatusCreated {
		t.Fatalf("weak submit: expected 201, got %d", status)
	}
	if weak.Reservation.Kind != "weak" {
		t.Fatalf("expected weak kind, got %s", weak.Reservation.Kind)
	}

	var strong rankinghttp.SubmitReservationResponse
	status = doJSON(t, server, http.MethodPost, "/v1/goods/good-1/reservations",
		`{"account_id":"account-1","amount":"100"}`, &strong)
	if status != http.StatusCreated {
		t.Fatalf("strong submit: expected 201, got %d", status)
	}
	if len(strong.DisplacedIDs) != 1 || strong.DisplacedIDs[0] != weak.Reservation.ID {
		t.Fatalf("expected weak reservation displaced, got %v", strong.DisplacedIDs)
	}

	var winner rankinghttp.ReservationDTO
	status = doJSON(t, server, http.MethodGet, "/v1/goods/good-1/winner", "", &winner)
	if status != http.StatusOK {
		t.Fatalf("winner: expected 200, got %d", status)
	}
	if winner.ID != strong.Reservation.ID {
		t.Fatalf("expected strong reservation as winner, got %s", winner.ID)
	}

	var cancelled rankinghttp.CancelReservationResponse
	status = doJSON(t, server, http.MethodPost,
		"/v1/reservations/"+strong.Reservation.ID+"/cancel", "", &cancelled)
	if status != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", status)
	}
	if cancelled.NewWinnerID != weak.Reservation.ID {
		t.Fatalf("expected weak reservation restored, got %q", cancelled.NewWinnerID)
	}

	var listing rankinghttp.ListReservationsResponse
	status = doJSON(t, server, http.MethodGet, "/v1/goods/good-1/reservations", "", &listing)
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	if len(listing.Reservations) != 2 {
		t.Fatalf("expected two reservations, got %d", len(listing.Reservations))
	}
}

func TestRankingErrorMapping(t *testing.T) {
	server := newTestServer()

	var errResp rankinghttp.ErrorResponse
	status := doJSON(t, server, http.MethodPost, "/v1/goods/missing/reservations",
		`{"account_id":"account-1","amount":"100"}`, &errResp)
	if status != http.StatusNotFound {
		t.Fatalf("missing good: expected 404, got %d", status)
	}
	if errResp.Code != "good_not_found" {
		t.Fatalf("expected good_not_found, got %s", errResp.Code)
	}

	status = doJSON(t, server, http.MethodPost, "/v1/goods/good-1/reservations",
		`{"account_id":"account-1","amount":"abc"}`, &errResp)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("bad amount: expected 422, got %d", status)
	}

	status = doJSON(t, server, http.MethodPost, "/v1/goods/good-1/reservations",
		`{"account_id":"account-1","wallet_address":"0xabc","amount":"100"}`, &errResp)
	if status != http.StatusBadRequest {
		t.Fatalf("ambiguous bidder: expected 400, got %d", status)
	}
	if errResp.Code != "invalid_bidder_reference" {
		t.Fatalf("expected invalid_bidder_reference, got %s", errResp.Code)
	}

	status = doJSON(t, server, http.MethodPost, "/v1/goods/good-1/reservations",
		"not json", &errResp)
	if status != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", status)
	}

	status = doJSON(t, server, http.MethodGet, "/v1/reservations/missing", "", &errResp)
	if status != http.StatusNotFound {
		t.Fatalf("missing reservation: expected 404, got %d", status)
	}
}

func TestGoodManagementOverHTTP(t *testing.T) {
	server := newTestServer()

	var good rankinghttp.GoodDTO
	status := doJSON(t, server, http.MethodPost, "/v1/goods",
		`{"good_id":"good-2","collection_id":"collection-1"}`, &good)
	if status != http.StatusCreated {
		t.Fatalf("create good: expected 201, got %d", status)
	}
	if good.Published {
		t.Fatalf("expected new good unpublished")
	}

	var errResp rankinghttp.ErrorResponse
	status = doJSON(t, server, http.MethodPost, "/v1/goods/good-2/reservations",
		`{"account_id":"account-1","amount":"100"}`, &errResp)
	if status != http.StatusConflict {
		t.Fatalf("unpublished good: expected 409, got %d", status)
	}

	status = doJSON(t, server, http.MethodPost, "/v1/goods/good-2/publish", "", &good)
	if status != http.StatusOK {
		t.Fatalf("publish good: expected 200, got %d", status)
	}
	if !good.Published {
		t.Fatalf("expected published flag set")
	}

	status = doJSON(t, server, http.MethodPost, "/v1/goods/good-2/reservations",
		`{"account_id":"account-1","amount":"100"}`, nil)
	if status != http.StatusCreated {
		t.Fatalf("submit after publish: expected 201, got %d", status)
	}

	// A good created with published set is open for reservations right away.
	status = doJSON(t, server, http.MethodPost, "/v1/goods",
		`{"good_id":"good-3","collection_id":"collection-1","published":true}`, &good)
	if status != http.StatusCreated {
		t.Fatalf("create published good: expected 201, got %d", status)
	}
	if !good.Published {
		t.Fatalf("expected good created published")
	}
	status = doJSON(t, server, http.MethodPost, "/v1/goods/good-3/reservations",
		`{"account_id":"account-1","amount":"100"}`, nil)
	if status != http.StatusCreated {
		t.Fatalf("submit on freshly created published good: expected 201, got %d", status)
	}
}

func TestSettlementOverHTTP(t *testing.T) {
	server := newTestServer()

	server.settlement.Store.PutReservationView(settlemententities.ReservationView{
		ID:           "res-1",
		GoodID:       "good-1",
		CollectionID: "collection-1",
		Status:       "active",
		Amount:       decimal.NewFromInt(1000),
		ExchangeRate: decimal.NewFromInt(2),
		Winning:      true,
	})

	var settled settlementhttp.SettleReservationResponse
	status := doJSON(t, server, http.MethodPost, "/v1/reservations/res-1/settle", "", &settled)
	if status != http.StatusCreated {
		t.Fatalf("settle: expected 201, got %d", status)
	}
	if len(settled.Distributions) != 2 {
		t.Fatalf("expected two distributions, got %d", len(settled.Distributions))
	}
	if !settled.TopRanked {
		t.Fatalf("expected top-ranked settlement")
	}

	var errResp settlementhttp.ErrorResponse
	status = doJSON(t, server, http.MethodPost, "/v1/reservations/res-1/settle", "", &errResp)
	if status != http.StatusConflict {
		t.Fatalf("repeat settle: expected 409, got %d", status)
	}
	if errResp.Code != "distributions_already_exist" {
		t.Fatalf("expected distributions_already_exist, got %s", errResp.Code)
	}

	var stats settlementhttp.DistributionStatsResponse
	status = doJSON(t, server, http.MethodGet, "/v1/collections/collection-1/distributions/stats", "", &stats)
	if status != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", status)
	}
	if stats.Count != 2 {
		t.Fatalf("expected two top-ranked rows, got %d", stats.Count)
	}

	var tracking settlementhttp.DistributionTrackingResponse
	status = doJSON(t, server, http.MethodGet,
		"/v1/collections/collection-1/distributions/tracking?from=2026-01-01T00:00:00Z", "", &tracking)
	if status != http.StatusOK {
		t.Fatalf("tracking: expected 200, got %d", status)
	}

	status = doJSON(t, server, http.MethodGet,
		"/v1/collections/collection-1/distributions/stats?from=not-a-time", "", &errResp)
	if status != http.StatusBadRequest {
		t.Fatalf("bad filter: expected 400, got %d", status)
	}
}
