// Package messaging provides the pub/sub event bus between the invalidation
// coordinator and the real-time gateway.
package messaging

import (
	"context"

	"github.com/inkwellhq/inkwell-go/internal/domain/events"
)

// Envelope pairs a change event with the topic it arrived on.
type Envelope struct {
	Topic string             `json:"topic"`
	Event events.ChangeEvent `json:"event"`
}

// Publisher is the publish-only bus handle held by the coordinator. The
// publishing path and the listening path must never share a transport
// session: a connection consuming a subscription stream cannot issue other
// commands, so the split is structural, not stylistic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event events.ChangeEvent) error
}

// Subscription is one live, pull-based event stream. Events for the same
// topic arrive in publish order; nothing is replayed after Close, and a new
// Subscribe starts from "now".
type Subscription interface {
	// Events yields envelopes until the subscription closes, at which
	// point the channel is closed.
	Events() <-chan Envelope
	Close() error
}

// Bus is the full event bus surface. Each gateway connection opens its own
// Subscription; fan-out cost is O(subscribers-on-topic) per publish.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
}
