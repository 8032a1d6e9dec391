package certificatesadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"calyx/contexts/market-core/ranking-engine/domain/entities"
	"calyx/contexts/market-core/ranking-engine/ports"
)

const (
	EventCertificateIssueRequested      = "certificate.issue.requested"
	EventCertificateInvalidateRequested = "certificate.invalidate.requested"
)

// OutboxIssuer requests certificate issuance and invalidation from the
// certificate collaborator by emitting outbox events. The requests ride the
// same outbox as the ranking events, so a settled transaction never loses
// a certificate request, and a failed one never leaks it.
type OutboxIssuer struct {
	outbox ports.OutboxWriter
	clock  ports.Clock
	idGen  ports.IDGenerator
	logger *slog.Logger
}

func NewOutboxIssuer(
	outbox ports.OutboxWriter,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger *slog.Logger,
) *OutboxIssuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxIssuer{
		outbox: outbox,
		clock:  clock,
		idGen:  idGen,
		logger: logger,
	}
}

func (i *OutboxIssuer) IssueCertificate(ctx context.Context, reservation entities.Reservation) error {
	return i.request(ctx, EventCertificateIssueRequested, reservation)
}

func (i *OutboxIssuer) InvalidateCertificate(ctx context.Context, reservation entities.Reservation) error {
	return i.request(ctx, EventCertificateInvalidateRequested, reservation)
}

func (i *OutboxIssuer) request(
	ctx context.Context,
	eventType string,
	reservation entities.Reservation,
) error {
	eventID, err := i.idGen.NewID(ctx)
	if err != nil {
		i.logger.Error("certificate request id generation failed",
			"event", "certificate_issuer_id_generation_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"reservation_id", reservation.ID,
			"error", err.Error(),
		)
		return err
	}
	data, err := json.Marshal(map[string]any{
		"reservation_id": reservation.ID,
		"good_id":        reservation.GoodID,
		"account_id":     reservation.AccountID,
		"wallet_address": reservation.WalletAddress,
		"kind":           string(reservation.Kind),
	})
	if err != nil {
		return err
	}
	envelope := ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       i.clock.Now(),
		SourceService:    "ranking-engine",
		SchemaVersion:    1,
		PartitionKeyPath: "good_id",
		PartitionKey:     reservation.GoodID,
		Data:             data,
	}
	if err := i.outbox.AppendOutbox(ctx, envelope); err != nil {
		i.logger.Error("certificate request enqueue failed",
			"event", "certificate_issuer_enqueue_failed",
			"module", "market-core/ranking-engine",
			"layer", "adapter",
			"event_type", eventType,
			"reservation_id", reservation.ID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

var _ ports.CertificateIssuer = (*OutboxIssuer)(nil)
