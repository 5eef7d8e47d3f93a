// Package pubsub fans verified webhook events out to in-process consumers,
// such as the operational event stream served over HTTP.
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"pos-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
)

// subscriptionBuffer bounds how far a subscriber may lag before events are
// dropped for it.
const subscriptionBuffer = 16

// Filter restricts a subscription to certain topics or one tenant. The zero
// value matches every event.
type Filter struct {
	Topics   []string
	TenantID string
}

func (f Filter) matches(event *domain.WebhookEvent) bool {
	if f.TenantID != "" && event.TenantID != f.TenantID {
		return false
	}
	if len(f.Topics) == 0 {
		return true
	}
	for _, topic := range f.Topics {
		if event.Topic == topic {
			return true
		}
	}
	return false
}

// Subscription is one live event feed. Its channel is closed when the
// subscriber's context ends or Close is called.
type Subscription struct {
	id     uint64
	filter Filter
	events chan *domain.WebhookEvent
	stop   func()
}

// Events returns the subscription's delivery channel.
func (s *Subscription) Events() <-chan *domain.WebhookEvent { return s.events }

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() { s.stop() }

// EventBus broadcasts events to every matching subscription. Publishing
// never blocks: a subscriber that stops draining loses events rather than
// stalling webhook ingestion.
type EventBus struct {
	logger zerolog.Logger
	lastID uint64

	mu   sync.RWMutex
	subs map[uint64]*Subscription
}

// NewEventBus creates an event bus with no subscribers.
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe registers a consumer for events matching the filter. The
// subscription lives until ctx is cancelled or Close is called.
func (b *EventBus) Subscribe(ctx context.Context, filter Filter) *Subscription {
	id := atomic.AddUint64(&b.lastID, 1)
	sub := &Subscription{
		id:     id,
		filter: filter,
		events: make(chan *domain.WebhookEvent, subscriptionBuffer),
	}
	var once sync.Once
	sub.stop = func() { once.Do(func() { b.remove(id) }) }

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	b.logger.Debug().
		Uint64("subscriptionId", id).
		Strs("topics", filter.Topics).
		Str("tenantId", filter.TenantID).
		Msg("event subscription opened")

	go func() {
		<-ctx.Done()
		sub.stop()
	}()
	return sub
}

func (b *EventBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.events)

	b.logger.Debug().Uint64("subscriptionId", id).Msg("event subscription closed")
}

// Publish delivers an event to every matching subscription.
func (b *EventBus) Publish(event *domain.WebhookEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			b.logger.Warn().
				Uint64("subscriptionId", sub.id).
				Str("topic", event.Topic).
				Msg("subscriber buffer full, event dropped")
		}
	}
}

// SubscriberCount reports how many subscriptions are open.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
