package messaging

import (
	"context"
	"sync"

	"github.com/inkwellhq/inkwell-go/internal/domain/events"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
)

// MemoryBus is the in-process bus used in single-node deployments and tests.
// Delivery follows the same contract as the Redis bus: per-topic publish
// order per subscriber, no persistence, no replay for late joiners.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{} // topic -> subscribers
	buffer int
	logger *logging.ChanneledLogger
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus(buffer int, logger *logging.ChanneledLogger) *MemoryBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryBus{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

type memorySubscription struct {
	bus    *MemoryBus
	topics []string
	ch     chan Envelope
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan Envelope { return s.ch }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		for _, topic := range s.topics {
			if subs, ok := s.bus.subs[topic]; ok {
				delete(subs, s)
				if len(subs) == 0 {
					delete(s.bus.subs, topic)
				}
			}
		}
		s.bus.mu.Unlock()
		close(s.ch)
	})
	return nil
}

// Publish fans the event out to every live subscriber on the topic. A
// subscriber whose buffer is full has the event dropped with a warning;
// its next reconnect triggers a revalidation sweep that covers the gap.
func (b *MemoryBus) Publish(_ context.Context, topic string, event events.ChangeEvent) error {
	envelope := Envelope{Topic: topic, Event: event}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[topic] {
		select {
		case sub.ch <- envelope:
		default:
			if b.logger != nil {
				b.logger.Bus().Warn("Subscriber buffer full, event dropped",
					"topic", topic, "eventId", event.ID)
			}
		}
	}
	return nil
}

// Subscribe opens a new stream over the given topics starting from "now".
func (b *MemoryBus) Subscribe(_ context.Context, topics ...string) (Subscription, error) {
	sub := &memorySubscription{
		bus:    b,
		topics: topics,
		ch:     make(chan Envelope, b.buffer),
	}

	b.mu.Lock()
	for _, topic := range topics {
		if b.subs[topic] == nil {
			b.subs[topic] = make(map[*memorySubscription]struct{})
		}
		b.subs[topic][sub] = struct{}{}
	}
	b.mu.Unlock()

	return sub, nil
}

// SubscriberCount reports live subscriptions on a topic.
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
