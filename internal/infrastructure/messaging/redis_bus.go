package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/inkwellhq/inkwell-go/internal/domain/events"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
)

// RedisBus carries change events across nodes over Redis pub/sub. The
// publish side and the subscribe side hold separate clients, and each
// Subscribe call opens its own PubSub connection, so a publishing session
// never doubles as a listening one.
type RedisBus struct {
	publisher  *redis.Client
	subscriber *redis.Client
	logger     *logging.ChanneledLogger
}

// NewRedisBus wraps two already-connected clients, one per role.
func NewRedisBus(publisher, subscriber *redis.Client, logger *logging.ChanneledLogger) *RedisBus {
	return &RedisBus{publisher: publisher, subscriber: subscriber, logger: logger}
}

// Publish serializes the event as JSON onto the topic channel. Redis
// fan-out means every connected node sees it exactly once per
// subscription.
func (b *RedisBus) Publish(ctx context.Context, topic string, event events.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event %s: %w", event.ID, err)
	}
	if err := b.publisher.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Envelope
	cancel context.CancelFunc
}

func (s *redisSubscription) Events() <-chan Envelope { return s.ch }

func (s *redisSubscription) Close() error {
	s.cancel()
	return s.pubsub.Close()
}

// Subscribe opens a dedicated PubSub session on the given topics. The
// returned subscription's channel closes when the session ends.
func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	pubsub := b.subscriber.Subscribe(ctx, topics...)

	// Confirm the subscription before handing it out so callers never
	// miss events published after Subscribe returns.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to %v: %w", topics, err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Envelope, 64),
		cancel: cancel,
	}

	go b.pump(subCtx, pubsub, sub.ch)

	return sub, nil
}

func (b *RedisBus) pump(ctx context.Context, pubsub *redis.PubSub, out chan<- Envelope) {
	defer close(out)
	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var event events.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				if b.logger != nil {
					b.logger.Bus().Warn("Dropping undecodable bus payload",
						"topic", msg.Channel, "error", err.Error())
				}
				continue
			}
			// Close must always be able to unblock the pump, even when
			// the subscriber stopped draining: a bare channel send here
			// would strand the goroutine and the deferred close(out).
			select {
			case out <- Envelope{Topic: msg.Channel, Event: event}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Ping verifies the publish connection is alive.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.publisher.Ping(ctx).Err()
}
