package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateGoodRequest struct {
	GoodID       string `json:"good_id,omitempty"`
	CollectionID string `json:"collection_id"`
	Published    bool   `json:"published,omitempty"`
}

type GoodDTO struct {
	ID           string `json:"id"`
	CollectionID string `json:"collection_id"`
	Published    bool   `json:"published"`
	Finalized    bool   `json:"finalized"`
	CreatedAt    string `json:"created_at"`
}

type SubmitReservationRequest struct {
	AccountID     string `json:"account_id,omitempty"`
	AccountType   string `json:"account_type,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Amount        string `json:"amount"`
}

type ReservationDTO struct {
	ID              string `json:"id"`
	GoodID          string `json:"good_id"`
	AccountID       string `json:"account_id,omitempty"`
	AccountType     string `json:"account_type,omitempty"`
	WalletAddress   string `json:"wallet_address,omitempty"`
	Kind            string `json:"kind"`
	Amount          string `json:"amount"`
	SecondaryAmount string `json:"secondary_amount"`
	ExchangeRate    string `json:"exchange_rate"`
	Status          string `json:"status"`
	IsCurrent       bool   `json:"is_current"`
	SupersededBy    string `json:"superseded_by,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type SubmitReservationResponse struct {
	Reservation  ReservationDTO `json:"reservation"`
	DisplacedIDs []string       `json:"displaced_ids"`
	RateFallback bool           `json:"rate_fallback"`
}

type CancelReservationResponse struct {
	Reservation    ReservationDTO `json:"reservation"`
	ReactivatedIDs []string       `json:"reactivated_ids"`
	NewWinnerID    string         `json:"new_winner_id,omitempty"`
}

type ListReservationsResponse struct {
	GoodID       string           `json:"good_id"`
	Reservations []ReservationDTO `json:"reservations"`
}
