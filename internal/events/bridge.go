package events

import (
	"context"
	"fmt"
	"strings"
)

// Sink publishes a JSON-encodable payload under a topic. persistence.Redis
// treats the topic as a pub/sub channel and persistence.AMQP as a routing key.
type Sink interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Bridge forwards every dispatched event to an external sink.
type Bridge struct {
	name  string
	sink  Sink
	topic func(Event) string
}

// NewRedisBridge publishes all events to one pub/sub channel, which backs the
// realtime ticket feed.
func NewRedisBridge(sink Sink, channel string) *Bridge {
	return &Bridge{
		name:  "redis",
		sink:  sink,
		topic: func(Event) string { return channel },
	}
}

// NewAMQPBridge publishes events to a topic exchange with routing keys such
// as ticket.ticket_changed or user.user_deactivated.
func NewAMQPBridge(sink Sink) *Bridge {
	return &Bridge{
		name:  "amqp",
		sink:  sink,
		topic: RoutingKey,
	}
}

// RoutingKey derives the AMQP routing key of an event.
func RoutingKey(e Event) string {
	prefix := "ticket"
	for _, p := range []string{"user", "notification", "project", "settings"} {
		if strings.HasPrefix(string(e.Type), p+"_") {
			prefix = p
			break
		}
	}
	return prefix + "." + string(e.Type)
}

// Name identifies the bridge in logs and metrics.
func (b *Bridge) Name() string {
	return b.name
}

// Register subscribes the bridge to every event type.
func (b *Bridge) Register(d Dispatcher) {
	for _, t := range AllEventTypes {
		d.Subscribe(t, b.Handle)
	}
}

// Handle publishes one event.
func (b *Bridge) Handle(ctx context.Context, e Event) error {
	if err := b.sink.Publish(ctx, b.topic(e), e); err != nil {
		return fmt.Errorf("%s bridge: publish %s: %w", b.name, e.Type, err)
	}
	return nil
}
