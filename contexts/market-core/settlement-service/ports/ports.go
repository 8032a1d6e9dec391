package ports

import (
	"context"
	"time"

	"calyx/contexts/market-core/settlement-service/domain/entities"
	contractsv1 "calyx/contracts/gen/events/v1"
)

// StatsFilter bounds an aggregation to a creation-time window. Nil bounds
// are open.
type StatsFilter struct {
	From *time.Time
	To   *time.Time
}

type Repository interface {
	// WithTx runs fn inside one atomic unit of work. Repository calls made
	// with the context passed to fn join that unit.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetReservationView(ctx context.Context, reservationID string) (entities.ReservationView, error)
	// GetReservationViewForUpdate locks the reservation row so concurrent
	// settlement attempts on the same reservation serialize.
	GetReservationViewForUpdate(ctx context.Context, reservationID string) (entities.ReservationView, error)

	ListWallets(ctx context.Context, collectionID string) ([]entities.Wallet, error)
	// PutWallet seeds wallet configuration for bootstrap and tests. Wallet
	// configuration is otherwise read-only from this module's perspective.
	PutWallet(ctx context.Context, wallet entities.Wallet) error

	CountDistributions(ctx context.Context, reservationID string) (int64, error)
	CreateDistribution(ctx context.Context, distribution entities.Distribution) error
	MarkGoodFinalized(ctx context.Context, goodID string) error

	SummarizeDistributions(
		ctx context.Context,
		collectionID string,
		filter StatsFilter,
		topRankedOnly bool,
	) (entities.StatsSummary, error)
	ListDistributionTracking(
		ctx context.Context,
		collectionID string,
		filter StatsFilter,
	) ([]entities.Distribution, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// AuditRecorder appends an audit entry for a settlement side effect. Calls
// happen after the financial write commits and failures never roll it back.
type AuditRecorder interface {
	RecordAuditEntry(ctx context.Context, event string, payload map[string]any) error
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, envelope EventEnvelope) error
}
