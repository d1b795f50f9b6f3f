// Package events is the in-process signal bus used to tell dashboard
// consumers that data or the running spend total changed.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vendorsync/internal/logger"
)

// Topics.
const (
	DashboardRefresh = "dashboard-refresh"
	TotalSpendUpdate = "total-spend-update"
)

// Event is one published signal.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload,omitempty"`
}

// TotalSpendPayload accompanies TotalSpendUpdate events.
type TotalSpendPayload struct {
	Total float64 `json:"total"`
}

// RefreshPayload accompanies DashboardRefresh events.
type RefreshPayload struct {
	Reason string `json:"reason"`
}

// NewEvent stamps a payload with an ID and the current time.
func NewEvent(topic string, payload any) Event {
	return Event{ID: uuid.New(), Topic: topic, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Handler receives events for the topics it subscribed to.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches synchronously, in subscription order. A failing or
// panicking handler is logged and does not stop the others.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	log    zerolog.Logger
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]subscription),
		log:  logger.WithComponent("events"),
	}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})
	b.mu.Unlock()

	b.log.Debug().Str("topic", topic).Uint64("subscription", id).Msg("Handler subscribed")

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

// Publish delivers e to every current subscriber of e.Topic and returns the
// number of handlers that completed without error.
func (b *Bus) Publish(ctx context.Context, e Event) int {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[e.Topic]...)
	b.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if err := b.dispatch(ctx, s.handler, e); err != nil {
			b.log.Error().Err(err).
				Str("topic", e.Topic).
				Str("event_id", e.ID.String()).
				Msg("Handler failed to process event")
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, e)
}

// Subscribers returns the number of handlers on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
