package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	certificatesadapter "calyx/contexts/market-core/ranking-engine/adapters/certificates"
	application "calyx/contexts/market-core/ranking-engine/application"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
	"calyx/contexts/market-core/ranking-engine/ports"
)

const defaultCertificateConsumerGroupName = "ranking-engine-certificates-cg"

type certificateRequestPayload struct {
	ReservationID string `json:"reservation_id"`
	GoodID        string `json:"good_id"`
	AccountID     string `json:"account_id"`
	WalletAddress string `json:"wallet_address"`
	Kind          string `json:"kind"`
}

// CertificateConsumer hands certificate requests to the certificate
// collaborator. The collaborator call sits behind the Forward hook so the
// consumer stays transport-agnostic; the default hook only acknowledges.
type CertificateConsumer struct {
	Subscriber    ports.EventSubscriber
	ConsumerGroup string
	Forward       func(ctx context.Context, eventType string, payload map[string]any) error
	Logger        *slog.Logger
}

func (c CertificateConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	group := c.ConsumerGroup
	if group == "" {
		group = defaultCertificateConsumerGroupName
	}
	if err := c.Subscriber.Subscribe(ctx, defaultMarketTopic, group, c.handle); err != nil {
		logger.Error("certificate consumer subscribe failed",
			"event", "ranking_certificate_consumer_subscribe_failed",
			"module", "market-core/ranking-engine",
			"layer", "worker",
			"topic", defaultMarketTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("certificate consumer subscribed",
		"event", "ranking_certificate_consumer_subscribed",
		"module", "market-core/ranking-engine",
		"layer", "worker",
		"topic", defaultMarketTopic,
		"consumer_group", group,
	)
	return nil
}

func (c CertificateConsumer) handle(ctx context.Context, event ports.EventEnvelope) error {
	switch event.EventType {
	case certificatesadapter.EventCertificateIssueRequested,
		certificatesadapter.EventCertificateInvalidateRequested:
	default:
		return nil
	}

	logger := application.ResolveLogger(c.Logger)
	var payload certificateRequestPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("certificate request decode failed",
			"event", "ranking_certificate_decode_failed",
			"module", "market-core/ranking-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if strings.TrimSpace(payload.ReservationID) == "" || strings.TrimSpace(payload.GoodID) == "" {
		logger.Warn("certificate request payload invalid",
			"event", "ranking_certificate_payload_invalid",
			"module", "market-core/ranking-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"has_reservation_id", strings.TrimSpace(payload.ReservationID) != "",
			"has_good_id", strings.TrimSpace(payload.GoodID) != "",
		)
		return domainerrors.ErrInvalidReservationInput
	}

	if c.Forward != nil {
		if err := c.Forward(ctx, event.EventType, map[string]any{
			"reservation_id": payload.ReservationID,
			"good_id":        payload.GoodID,
			"account_id":     payload.AccountID,
			"wallet_address": payload.WalletAddress,
			"kind":           payload.Kind,
		}); err != nil {
			logger.Error("certificate request forward failed",
				"event", "ranking_certificate_forward_failed",
				"module", "market-core/ranking-engine",
				"layer", "worker",
				"event_id", event.EventID,
				"reservation_id", payload.ReservationID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("certificate request processed",
		"event", "ranking_certificate_processed",
		"module", "market-core/ranking-engine",
		"layer", "worker",
		"event_type", event.EventType,
		"reservation_id", payload.ReservationID,
		"good_id", payload.GoodID,
	)
	return nil
}
