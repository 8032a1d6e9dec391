package messaging

import (
	"context"
	"testing"
	"time"

	contractsv1 "calyx/contracts/gen/events/v1"
)

func TestKafkaDeliversToSubscribedTopic(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan contractsv1.Envelope, 1)
	if err := bus.Subscribe(ctx, "market.reservations", "cg-1", func(_ context.Context, event contractsv1.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := bus.Publish(ctx, "market.reservations", contractsv1.Envelope{
		EventID:   "event-1",
		EventType: "reservation.submitted",
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case event := <-received:
		if event.EventID != "event-1" {
			t.Fatalf("unexpected event %s", event.EventID)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected event delivered")
	}

	// A topic without subscribers accepts the publish and drops it.
	if err := bus.Publish(ctx, "market.settlements", contractsv1.Envelope{EventID: "event-2"}); err != nil {
		t.Fatalf("publish to empty topic failed: %v", err)
	}
}

func TestKafkaUnsubscribesOnContextCancel(t *testing.T) {
	bus, err := NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("new kafka failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan contractsv1.Envelope, 1)
	if err := bus.Subscribe(ctx, "market.reservations", "cg-1", func(_ context.Context, event contractsv1.Envelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		bus.mu.RLock()
		remaining := len(bus.subscribers["market.reservations"])
		bus.mu.RUnlock()
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected subscriber removed after cancel, %d left", remaining)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
