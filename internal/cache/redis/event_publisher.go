package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// EventStream is the stream every committed event is appended to.
const EventStream = keyPrefix + "events"

// EventPattern matches every per-kind event channel.
const EventPattern = keyPrefix + "events:*"

// EventChannel returns the pub/sub channel for one event kind.
func EventChannel(kind domain.EventKind) string {
	return key("events", string(kind))
}

// EventPublisher implements domain.EventPublisher over a SignalBus.
type EventPublisher struct {
	bus domain.SignalBus
}

// NewEventPublisher creates an EventPublisher writing to bus.
func NewEventPublisher(bus domain.SignalBus) *EventPublisher {
	return &EventPublisher{bus: bus}
}

// PublishEvents appends each event to EventStream and publishes it on its
// kind channel, preserving order.
func (p *EventPublisher) PublishEvents(ctx context.Context, events []domain.Event) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("redis: marshal event %s: %w", e.ID, err)
		}
		if err := p.bus.StreamAppend(ctx, EventStream, payload); err != nil {
			return err
		}
		if err := p.bus.Publish(ctx, EventChannel(e.Kind), payload); err != nil {
			return err
		}
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventPublisher = (*EventPublisher)(nil)
