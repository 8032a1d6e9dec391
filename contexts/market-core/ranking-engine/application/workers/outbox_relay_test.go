package workers

import (
	"context"
	"errors"
	"testing"

	certificatesadapter "calyx/contexts/market-core/ranking-engine/adapters/certificates"
	"calyx/contexts/market-core/ranking-engine/adapters/memory"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	"calyx/contexts/market-core/ranking-engine/ports"

	"github.com/shopspring/decimal"
)

type capturePublisher struct {
	topics []string
	events []ports.EventEnvelope
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestOutboxRelayPublishesAndMarksMessages(t *testing.T) {
	store := memory.NewStore(nil)
	issuer := certificatesadapter.NewOutboxIssuer(store, store, store, nil)
	if err := issuer.IssueCertificate(context.Background(), entities.Reservation{
		ID:     "res-1",
		GoodID: "good-1",
		Kind:   entities.KindStrong,
		Amount: decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("issue certificate failed: %v", err)
	}

	publisher := &capturePublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	if publisher.topics[0] != defaultMarketTopic {
		t.Fatalf("expected topic %s, got %s", defaultMarketTopic, publisher.topics[0])
	}
	if publisher.events[0].EventType != certificatesadapter.EventCertificateIssueRequested {
		t.Fatalf("unexpected event type %s", publisher.events[0].EventType)
	}

	// Second run must find nothing pending.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second relay run failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected published message not re-delivered, got %d events", len(publisher.events))
	}
}

func TestOutboxRelayKeepsMessagePendingOnPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	issuer := certificatesadapter.NewOutboxIssuer(store, store, store, nil)
	if err := issuer.InvalidateCertificate(context.Background(), entities.Reservation{
		ID:     "res-1",
		GoodID: "good-1",
	}); err != nil {
		t.Fatalf("invalidate certificate failed: %v", err)
	}

	publisher := &capturePublisher{err: errors.New("broker down")}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}
	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected relay error on publish failure")
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected message still pending, got %d", len(pending))
	}
}

type captureSubscriber struct {
	handler func(context.Context, ports.EventEnvelope) error
}

func (s *captureSubscriber) Subscribe(
	_ context.Context,
	_ string,
	_ string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	s.handler = handler
	return nil
}

func TestCertificateConsumerForwardsRequests(t *testing.T) {
	store := memory.NewStore(nil)
	issuer := certificatesadapter.NewOutboxIssuer(store, store, store, nil)
	if err := issuer.IssueCertificate(context.Background(), entities.Reservation{
		ID:            "res-1",
		GoodID:        "good-1",
		WalletAddress: "0xabc",
		Kind:          entities.KindWeak,
	}); err != nil {
		t.Fatalf("issue certificate failed: %v", err)
	}

	subscriber := &captureSubscriber{}
	var forwarded []string
	consumer := CertificateConsumer{
		Subscriber: subscriber,
		Forward: func(_ context.Context, eventType string, payload map[string]any) error {
			forwarded = append(forwarded, eventType)
			if payload["reservation_id"] != "res-1" {
				t.Fatalf("unexpected payload %v", payload)
			}
			return nil
		},
	}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("consumer start failed: %v", err)
	}

	publisher := &capturePublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if err := subscriber.handler(context.Background(), publisher.events[0]); err != nil {
		t.Fatalf("consumer handle failed: %v", err)
	}
	if len(forwarded) != 1 || forwarded[0] != certificatesadapter.EventCertificateIssueRequested {
		t.Fatalf("expected forwarded issue request, got %v", forwarded)
	}

	// Non-certificate traffic on the shared topic is ignored.
	if err := subscriber.handler(context.Background(), ports.EventEnvelope{
		EventType: "reservation.submitted",
	}); err != nil {
		t.Fatalf("unrelated event must be acknowledged: %v", err)
	}
	if len(forwarded) != 1 {
		t.Fatalf("expected unrelated event not forwarded")
	}
}
