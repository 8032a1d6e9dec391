package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"calyx/contexts/market-core/settlement-service/domain/entities"
	domainerrors "calyx/contexts/market-core/settlement-service/domain/errors"
	"calyx/contexts/market-core/settlement-service/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type outboxRecord struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

// AuditEntry records an audit collaborator invocation for test assertions.
type AuditEntry struct {
	Event   string
	Payload map[string]any
}

// Store is the in-memory adapter behind the settlement ports. Reservation
// views are a seeded projection; the store never owns ranking state.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	reservations   map[string]entities.ReservationView
	wallets        map[string]entities.Wallet
	distributions  map[string]entities.Distribution
	finalizedGoods map[string]bool
	outbox         map[string]outboxRecord

	Audits   []AuditEntry
	AuditErr error

	shadow *snapshot
}

type snapshot struct {
	distributions  map[string]entities.Distribution
	finalizedGoods map[string]bool
	outbox         map[string]outboxRecord
}

func NewStore(seed []entities.Wallet) *Store {
	wallets := make(map[string]entities.Wallet, len(seed))
	for _, wallet := range seed {
		wallets[wallet.ID] = wallet
	}
	return &Store{
		reservations:   make(map[string]entities.ReservationView),
		wallets:        wallets,
		distributions:  make(map[string]entities.Distribution),
		finalizedGoods: make(map[string]bool),
		outbox:         make(map[string]outboxRecord),
	}
}

// PutReservationView seeds the reservation projection for tests.
func (s *Store) PutReservationView(view entities.ReservationView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[view.ID] = view
}

// GoodFinalized reports whether a settlement marked the good final.
func (s *Store) GoodFinalized(goodID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizedGoods[strings.TrimSpace(goodID)]
}

type txKey struct{}

// WithTx serializes the unit of work and restores the mutated tables when
// fn fails, matching the all-or-nothing semantics of the SQL adapter.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.shadow = &snapshot{
		distributions:  copyDistributions(s.distributions),
		finalizedGoods: copyFlags(s.finalizedGoods),
		outbox:         copyOutbox(s.outbox),
	}
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, struct{}{}))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.distributions = s.shadow.distributions
		s.finalizedGoods = s.shadow.finalizedGoods
		s.outbox = s.shadow.outbox
	}
	s.shadow = nil
	return err
}

func (s *Store) GetReservationView(_ context.Context, reservationID string) (entities.ReservationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, exists := s.reservations[strings.TrimSpace(reservationID)]
	if !exists {
		return entities.ReservationView{}, domainerrors.ErrReservationNotFound
	}
	return view, nil
}

func (s *Store) GetReservationViewForUpdate(ctx context.Context, reservationID string) (entities.ReservationView, error) {
	return s.GetReservationView(ctx, reservationID)
}

func (s *Store) ListWallets(_ context.Context, collectionID string) ([]entities.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collectionID = strings.TrimSpace(collectionID)
	wallets := make([]entities.Wallet, 0)
	for _, wallet := range s.wallets {
		if wallet.CollectionID == collectionID {
			wallets = append(wallets, wallet)
		}
	}
	sort.Slice(wallets, func(i, j int) bool {
		return wallets[i].ID < wallets[j].ID
	})
	return wallets, nil
}

func (s *Store) PutWallet(_ context.Context, wallet entities.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[wallet.ID]; exists {
		return domainerrors.ErrWalletExists
	}
	s.wallets[wallet.ID] = wallet
	return nil
}

func (s *Store) CountDistributions(_ context.Context, reservationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservationID = strings.TrimSpace(reservationID)
	var count int64
	for _, distribution := range s.distributions {
		if distribution.ReservationID == reservationID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateDistribution(_ context.Context, distribution entities.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.distributions[distribution.ID]; exists {
		return domainerrors.ErrDistributionsAlreadyExist
	}
	s.distributions[distribution.ID] = distribution
	return nil
}

func (s *Store) MarkGoodFinalized(_ context.Context, goodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finalizedGoods[strings.TrimSpace(goodID)] = true
	return nil
}

func (s *Store) SummarizeDistributions(
	_ context.Context,
	collectionID string,
	filter ports.StatsFilter,
	topRankedOnly bool,
) (entities.StatsSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collectionID = strings.TrimSpace(collectionID)
	summary := entities.StatsSummary{
		CollectionID: collectionID,
		TotalAmount:  decimal.Zero,
		ByRole:       make(map[string]entities.StatsBucket),
		ByStatus:     make(map[string]entities.StatsBucket),
	}
	for _, distribution := range s.distributions {
		if distribution.CollectionID != collectionID {
			continue
		}
		if topRankedOnly && !distribution.TopRanked {
			continue
		}
		if !withinWindow(distribution.CreatedAt, filter) {
			continue
		}
		summary.Count++
		summary.TotalAmount = summary.TotalAmount.Add(distribution.Amount)

		role := summary.ByRole[distribution.Role]
		role.Count++
		role.TotalAmount = role.TotalAmount.Add(distribution.Amount)
		summary.ByRole[distribution.Role] = role

		status := summary.ByStatus[string(distribution.Status)]
		status.Count++
		status.TotalAmount = status.TotalAmount.Add(distribution.Amount)
		summary.ByStatus[string(distribution.Status)] = status
	}
	return summary, nil
}

func (s *Store) ListDistributionTracking(
	_ context.Context,
	collectionID string,
	filter ports.StatsFilter,
) ([]entities.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collectionID = strings.TrimSpace(collectionID)
	distributions := make([]entities.Distribution, 0)
	for _, distribution := range s.distributions {
		if distribution.CollectionID != collectionID {
			continue
		}
		if !withinWindow(distribution.CreatedAt, filter) {
			continue
		}
		distributions = append(distributions, distribution)
	}
	sort.Slice(distributions, func(i, j int) bool {
		if distributions[i].CreatedAt.Equal(distributions[j].CreatedAt) {
			return distributions[i].ID < distributions[j].ID
		}
		return distributions[i].CreatedAt.Before(distributions[j].CreatedAt)
	})
	return distributions, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.PublishedAt == nil {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	messages := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.outbox[strings.TrimSpace(outboxID)]
	if !exists {
		return domainerrors.ErrInvalidSettlementInput
	}
	timestamp := publishedAt.UTC()
	row.PublishedAt = &timestamp
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) RecordAuditEntry(_ context.Context, event string, payload map[string]any) error {
	if s.AuditErr != nil {
		return s.AuditErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Audits = append(s.Audits, AuditEntry{Event: event, Payload: payload})
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func withinWindow(createdAt time.Time, filter ports.StatsFilter) bool {
	if filter.From != nil && createdAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && createdAt.After(*filter.To) {
		return false
	}
	return true
}

func copyDistributions(src map[string]entities.Distribution) map[string]entities.Distribution {
	dst := make(map[string]entities.Distribution, len(src))
	for id, distribution := range src {
		dst[id] = distribution
	}
	return dst
}

func copyFlags(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for id, flag := range src {
		dst[id] = flag
	}
	return dst
}

func copyOutbox(src map[string]outboxRecord) map[string]outboxRecord {
	dst := make(map[string]outboxRecord, len(src))
	for id, row := range src {
		dst[id] = row
	}
	return dst
}

var _ ports.Repository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.AuditRecorder = (*Store)(nil)
