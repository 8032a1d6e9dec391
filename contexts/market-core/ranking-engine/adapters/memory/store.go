package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
	"calyx/contexts/market-core/ranking-engine/ports"

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

// CertificateCall records a collaborator invocation for test assertions.
type CertificateCall struct {
	Action        string // issue, invalidate
	ReservationID string
}

// AuditEntry records an audit collaborator invocation.
type AuditEntry struct {
	Event   string
	Payload map[string]any
}

// Store is the in-memory adapter behind the module's ports. It also plays
// the host-system collaborators (rates, certificates, audit), so tests can
// force their failures through the Err fields.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	goods        map[string]entities.Good
	reservations map[string]entities.Reservation
	outbox       map[string]outboxRecord

	Certificates []CertificateCall
	Audits       []AuditEntry

	Rate           decimal.Decimal
	RateErr        error
	CertificateErr error
	AuditErr       error

	shadow *snapshot
}

type snapshot struct {
	goods        map[string]entities.Good
	reservations map[string]entities.Reservation
	outbox       map[string]outboxRecord
}

func NewStore(seed []entities.Good) *Store {
	goods := make(map[string]entities.Good, len(seed))
	for _, good := range seed {
		goods[good.ID] = good
	}
	return &Store{
		goods:        goods,
		reservations: make(map[string]entities.Reservation),
		outbox:       make(map[string]outboxRecord),
		Rate:         decimal.NewFromInt(2),
	}
}

type txKey struct{}

// WithTx serializes the unit of work and restores the pre-transaction state
// when fn fails, matching the all-or-nothing semantics of the SQL adapter.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.shadow = &snapshot{
		goods:        copyGoods(s.goods),
		reservations: copyReservations(s.reservations),
		outbox:       copyOutbox(s.outbox),
	}
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, struct{}{}))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.goods = s.shadow.goods
		s.reservations = s.shadow.reservations
		s.outbox = s.shadow.outbox
	}
	s.shadow = nil
	return err
}

func (s *Store) CreateGood(_ context.Context, good entities.Good) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.goods[good.ID]; exists {
		return domainerrors.ErrGoodExists
	}
	s.goods[good.ID] = good
	return nil
}

func (s *Store) GetGood(_ context.Context, goodID string) (entities.Good, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	good, exists := s.goods[strings.TrimSpace(goodID)]
	if !exists {
		return entities.Good{}, domainerrors.ErrGoodNotFound
	}
	return good, nil
}

func (s *Store) GetGoodForUpdate(ctx context.Context, goodID string) (entities.Good, error) {
	return s.GetGood(ctx, goodID)
}

func (s *Store) UpdateGood(_ context.Context, good entities.Good) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.goods[good.ID]; !exists {
		return domainerrors.ErrGoodNotFound
	}
	s.goods[good.ID] = good
	return nil
}

func (s *Store) CreateReservation(_ context.Context, reservation entities.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reservations[reservation.ID]; exists {
		return domainerrors.ErrReservationExists
	}
	s.reservations[reservation.ID] = reservation
	return nil
}

func (s *Store) UpdateReservation(_ context.Context, reservation entities.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reservations[reservation.ID]; !exists {
		return domainerrors.ErrReservationNotFound
	}
	s.reservations[reservation.ID] = reservation
	return nil
}

func (s *Store) GetReservation(_ context.Context, reservationID string) (entities.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, exists := s.reservations[strings.TrimSpace(reservationID)]
	if !exists {
		return entities.Reservation{}, domainerrors.ErrReservationNotFound
	}
	return reservation, nil
}

func (s *Store) ListCurrent(_ context.Context, goodID string) ([]entities.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	goodID = strings.TrimSpace(goodID)
	current := make([]entities.Reservation, 0, 1)
	for _, reservation := range s.reservations {
		if reservation.GoodID == goodID &&
			reservation.Status == entities.ReservationStatusActive &&
			reservation.IsCurrent {
			current = append(current, reservation)
		}
	}
	sort.Slice(current, func(i, j int) bool {
		return current[i].CreatedAt.Before(current[j].CreatedAt)
	})
	return current, nil
}

func (s *Store) ListByGood(_ context.Context, goodID string) ([]entities.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	goodID = strings.TrimSpace(goodID)
	reservations := make([]entities.Reservation, 0)
	for _, reservation := range s.reservations {
		if reservation.GoodID == goodID {
			reservations = append(reservations, reservation)
		}
	}
	return reservations, nil
}

func (s *Store) ListActiveSupersededBy(_ context.Context, reservationID string) ([]entities.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservationID = strings.TrimSpace(reservationID)
	dependants := make([]entities.Reservation, 0)
	for _, reservation := range s.reservations {
		if reservation.Status != entities.ReservationStatusActive {
			continue
		}
		if reservation.SupersededBy != nil && *reservation.SupersededBy == reservationID {
			dependants = append(dependants, reservation)
		}
	}
	return dependants, nil
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
		return domainerrors.ErrInvalidReservationInput
	}
	timestamp := publishedAt.UTC()
	row.PublishedAt = &timestamp
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) ConvertFiatToSecondary(
	_ context.Context,
	amount decimal.Decimal,
) (decimal.Decimal, decimal.Decimal, error) {
	if s.RateErr != nil {
		return decimal.Decimal{}, decimal.Decimal{}, s.RateErr
	}
	rate := s.Rate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	return amount.Mul(rate), rate, nil
}

func (s *Store) IssueCertificate(_ context.Context, reservation entities.Reservation) error {
	if s.CertificateErr != nil {
		return s.CertificateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Certificates = append(s.Certificates, CertificateCall{
		Action:        "issue",
		ReservationID: reservation.ID,
	})
	return nil
}

func (s *Store) InvalidateCertificate(_ context.Context, reservation entities.Reservation) error {
	if s.CertificateErr != nil {
		return s.CertificateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Certificates = append(s.Certificates, CertificateCall{
		Action:        "invalidate",
		ReservationID: reservation.ID,
	})
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

func copyGoods(src map[string]entities.Good) map[string]entities.Good {
	dst := make(map[string]entities.Good, len(src))
	for id, good := range src {
		dst[id] = good
	}
	return dst
}

func copyReservations(src map[string]entities.Reservation) map[string]entities.Reservation {
	dst := make(map[string]entities.Reservation, len(src))
	for id, reservation := range src {
		dst[id] = reservation
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
var _ ports.RateConverter = (*Store)(nil)
var _ ports.CertificateIssuer = (*Store)(nil)
var _ ports.AuditRecorder = (*Store)(nil)
