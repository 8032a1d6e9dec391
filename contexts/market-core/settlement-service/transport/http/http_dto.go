package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type DistributionDTO struct {
	ID            string `json:"id"`
	ReservationID string `json:"reservation_id"`
	GoodID        string `json:"good_id"`
	CollectionID  string `json:"collection_id"`
	WalletID      string `json:"wallet_id"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Role          string `json:"role"`
	Percentage    string `json:"percentage"`
	Amount        string `json:"amount"`
	ExchangeRate  string `json:"exchange_rate"`
	TopRanked     bool   `json:"top_ranked"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

type SettleReservationResponse struct {
	ReservationID string            `json:"reservation_id"`
	TopRanked     bool              `json:"top_ranked"`
	AuditedCount  int               `json:"audited_count"`
	Distributions []DistributionDTO `json:"distributions"`
}

type StatsBucketDTO struct {
	Count       int    `json:"count"`
	TotalAmount string `json:"total_amount"`
}

type DistributionStatsResponse struct {
	CollectionID string                    `json:"collection_id"`
	Count        int                       `json:"count"`
	TotalAmount  string                    `json:"total_amount"`
	ByRole       map[string]StatsBucketDTO `json:"by_role"`
	ByStatus     map[string]StatsBucketDTO `json:"by_status"`
}

type DistributionTrackingResponse struct {
	CollectionID  string            `json:"collection_id"`
	Distributions []DistributionDTO `json:"distributions"`
}
