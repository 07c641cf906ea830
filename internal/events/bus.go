package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/comandas/backend/internal/models"
)

// subscriberBuffer bounds each subscriber's queue; a slow subscriber drops
// events instead of blocking the writer, and catches up via replay.
const subscriberBuffer = 64

// Appender persists events; satisfied by *db.Store.
type Appender interface {
	AppendEvent(ctx context.Context, e models.Event) error
}

// Bus appends events to the persistent log and fans them out to attached
// in-process subscribers. Persistence happens first; fan-out is best effort.
type Bus struct {
	appender Appender
	logger   zerolog.Logger

	mu     sync.Mutex
	subs   map[int]chan models.Event
	nextID int
}

func NewBus(appender Appender, logger zerolog.Logger) *Bus {
	return &Bus{
		appender: appender,
		logger:   logger,
		subs:     make(map[int]chan models.Event),
	}
}

// Publish assigns id/timestamp if unset, appends the event to the log and
// delivers it to every subscriber. Append failures are logged, never
// propagated: a committed state change is not undone by a logging failure.
func (b *Bus) Publish(ctx context.Context, e models.Event) models.Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}

	if err := b.appender.AppendEvent(ctx, e); err != nil {
		b.logger.Error().Err(err).Str("type", e.Type).Msg("event append failed")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug().Int("subscriber", id).Str("type", e.Type).Msg("subscriber buffer full, event dropped")
		}
	}
	return e
}

// PublishAll publishes a batch in order.
func (b *Bus) PublishAll(ctx context.Context, evs []models.Event) {
	for _, e := range evs {
		b.Publish(ctx, e)
	}
}

// Subscribe attaches a live subscriber. The returned cancel detaches it and
// closes the channel.
func (b *Bus) Subscribe() (<-chan models.Event, func()) {
	ch := make(chan models.Event, subscriberBuffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount reports active stream subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// New builds an event with the conventional fields filled in.
func New(eventType, entityType, entityID string, payload map[string]any) models.Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return models.Event{Type: eventType, EntityType: entityType, EntityID: entityID, Payload: payload}
}
