package pubsub

import (
	"context"
	"testing"
	"time"

	"pos-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
)

func event(tenantID, topic string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:         "evt-1",
		TenantID:   tenantID,
		Topic:      topic,
		ShopDomain: "demo.myshopify.com",
		Payload:    []byte(`{}`),
		ReceivedAt: time.Now(),
	}
}

func receive(t *testing.T, sub *Subscription) *domain.WebhookEvent {
	t.Helper()
	select {
	case e := <-sub.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	sub := bus.Subscribe(context.Background(), Filter{})
	defer sub.Close()

	bus.Publish(event("t1", "orders/create"))

	got := receive(t, sub)
	if got.TenantID != "t1" || got.Topic != "orders/create" {
		t.Errorf("event = %+v", got)
	}
}

func TestFilterByTopicAndTenant(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	sub := bus.Subscribe(context.Background(), Filter{Topics: []string{"orders/paid"}, TenantID: "t1"})
	defer sub.Close()

	bus.Publish(event("t1", "orders/create"))
	bus.Publish(event("t2", "orders/paid"))
	bus.Publish(event("t1", "orders/paid"))

	got := receive(t, sub)
	if got.TenantID != "t1" || got.Topic != "orders/paid" {
		t.Errorf("event = %+v", got)
	}
	select {
	case extra := <-sub.Events():
		t.Errorf("unexpected extra event %+v", extra)
	default:
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	sub := bus.Subscribe(context.Background(), Filter{})
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		// Nobody drains the channel; overflow events must be dropped.
		for i := 0; i < 100; i++ {
			bus.Publish(event("t1", "orders/create"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestCloseEndsSubscription(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	sub := bus.Subscribe(context.Background(), Filter{})

	if got := bus.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	sub.Close()
	sub.Close() // idempotent

	if got := bus.SubscriberCount(); got != 0 {
		t.Fatalf("SubscriberCount = %d after Close, want 0", got)
	}
	if _, open := <-sub.Events(); open {
		t.Error("events channel still open after Close")
	}
}

func TestContextCancelEndsSubscription(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	bus.Subscribe(ctx, Filter{})
	if got := bus.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bus.SubscriberCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("subscription not cleaned up after context cancel")
}
