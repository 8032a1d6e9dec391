package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "calyx/contexts/market-core/settlement-service/application"
	"calyx/contexts/market-core/settlement-service/ports"
)

// UseCase carries the settlement service's write operations. The audit
// collaborator is optional; when nil settlements commit without audit
// entries and the result flags say so.
type UseCase struct {
	Repository ports.Repository
	Outbox     ports.OutboxWriter
	Audit      ports.AuditRecorder
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
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
		SourceService:    "settlement-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "reservation_id",
		PartitionKey:     partitionKey,
		Data:             payload,
	})
}

// recordAudit is best-effort: a failed audit write is logged and reflected
// in the result, never propagated. Financial correctness outranks audit
// completeness.
func (uc UseCase) recordAudit(ctx context.Context, event string, payload map[string]any) bool {
	if uc.Audit == nil {
		return false
	}
	if err := uc.Audit.RecordAuditEntry(ctx, event, payload); err != nil {
		application.ResolveLogger(uc.Logger).Error("audit entry write failed",
			"event", "settlement_audit_write_failed",
			"module", "market-core/settlement-service",
			"layer", "application",
			"audit_event", event,
			"error", err.Error(),
		)
		return false
	}
	return true
}
