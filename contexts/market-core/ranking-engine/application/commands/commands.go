package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	application "calyx/contexts/market-core/ranking-engine/application"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
	"calyx/contexts/market-core/ranking-engine/ports"

	"github.com/shopspring/decimal"
)

const defaultMaxRetries = 3

// UseCase carries the ranking engine's write operations. Certificate,
// audit and rate-conversion collaborators are optional; when nil the core
// operation proceeds without the side effect.
type UseCase struct {
	Repository   ports.Repository
	Outbox       ports.OutboxWriter
	Rates        ports.RateConverter
	Certificates ports.CertificateIssuer
	Audit        ports.AuditRecorder
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	DefaultRate  decimal.Decimal
	MaxRetries   int
	Logger       *slog.Logger
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc UseCase) maxAttempts() int {
	if uc.MaxRetries <= 0 {
		return defaultMaxRetries
	}
	return uc.MaxRetries
}

// withRankingTx runs fn in one unit of work and retries a bounded number of
// times when the store reports a serialization conflict. Precondition
// failures surface immediately and are never retried.
func (uc UseCase) withRankingTx(ctx context.Context, goodID string, fn func(ctx context.Context) error) error {
	logger := application.ResolveLogger(uc.Logger)
	attempts := uc.maxAttempts()

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = uc.Repository.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, domainerrors.ErrRankingConflict) {
			return err
		}
		logger.Warn("ranking transaction conflict, retrying",
			"event", "ranking_tx_conflict",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"good_id", goodID,
			"attempt", attempt,
		)
	}
	return err
}

func (uc UseCase) appendOutbox(
	ctx context.Context,
	eventType string,
	partitionKey string,
	data map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       uc.now(),
		SourceService:    "ranking-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "good_id",
		PartitionKey:     partitionKey,
		Data:             payload,
	})
}

// recordAudit is best-effort: a failed audit write is logged and reported
// through the result flags, never propagated to the caller.
func (uc UseCase) recordAudit(ctx context.Context, event string, payload map[string]any) bool {
	if uc.Audit == nil {
		return false
	}
	if err := uc.Audit.RecordAuditEntry(ctx, event, payload); err != nil {
		application.ResolveLogger(uc.Logger).Error("audit entry write failed",
			"event", "ranking_audit_write_failed",
			"module", "market-core/ranking-engine",
			"layer", "application",
			"audit_event", event,
			"error", err.Error(),
		)
		return false
	}
	return true
}
