package ports

import (
	"context"
	"time"

	"calyx/contexts/market-core/ranking-engine/domain/entities"
	contractsv1 "calyx/contracts/gen/events/v1"

	"github.com/shopspring/decimal"
)

// Repository owns goods, reservations and the module outbox. Methods called
// inside a WithTx closure join that transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateGood(ctx context.Context, good entities.Good) error
	GetGood(ctx context.Context, goodID string) (entities.Good, error)
	// GetGoodForUpdate takes an exclusive lock on the good row and is the
	// serialization point for all ranking mutations on that good.
	GetGoodForUpdate(ctx context.Context, goodID string) (entities.Good, error)
	UpdateGood(ctx context.Context, good entities.Good) error

	CreateReservation(ctx context.Context, reservation entities.Reservation) error
	UpdateReservation(ctx context.Context, reservation entities.Reservation) error
	GetReservation(ctx context.Context, reservationID string) (entities.Reservation, error)
	ListCurrent(ctx context.Context, goodID string) ([]entities.Reservation, error)
	ListByGood(ctx context.Context, goodID string) ([]entities.Reservation, error)
	ListActiveSupersededBy(ctx context.Context, reservationID string) ([]entities.Reservation, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// RateConverter is the host-system currency collaborator. It returns the
// converted secondary-currency amount and the rate that was applied.
type RateConverter interface {
	ConvertFiatToSecondary(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error)
}

// CertificateIssuer is the host-system certificate collaborator. Calls are
// best-effort side effects outside the ranking transaction.
type CertificateIssuer interface {
	IssueCertificate(ctx context.Context, reservation entities.Reservation) error
	InvalidateCertificate(ctx context.Context, reservation entities.Reservation) error
}

// AuditRecorder appends an operational audit entry. Failures never roll
// back a committed ranking decision.
type AuditRecorder interface {
	RecordAuditEntry(ctx context.Context, event string, payload map[string]any) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
