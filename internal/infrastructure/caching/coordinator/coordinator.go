// Package coordinator orchestrates cache invalidation. On every successful
// mutation it resolves the affected key patterns, deletes them from the
// durable shared cache, and only then announces the change on the event bus.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/domain/events"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/dependency"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/stores"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/messaging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// ErrDegradedConsistency reports that the durable cache could not be
// invalidated. The primary write already succeeded, so callers surface a
// degraded-consistency signal instead of failing the mutation outright.
var ErrDegradedConsistency = errors.New("durable cache invalidation failed, consistency degraded until TTL expiry")

// InvalidationRecorder receives one call per key pattern purged. The cache
// health monitor implements it.
type InvalidationRecorder interface {
	RecordInvalidate(tier, key string)
}

// Coordinator wires the dependency map, the cache tiers, and the bus. It
// holds a publish-only bus handle and no cross-mutation lock; invalidation
// is idempotent, so "last invalidation wins" is safe under concurrency.
type Coordinator struct {
	local     *stores.MemoryStore
	durable   stores.Cache
	publisher messaging.Publisher
	recorder  InvalidationRecorder
	logger    *logging.ChanneledLogger

	retryAttempts  int
	retryBase      time.Duration
	publishTimeout time.Duration
}

// New builds a coordinator with the configured retry policy.
func New(local *stores.MemoryStore, durable stores.Cache, publisher messaging.Publisher, recorder InvalidationRecorder, logger *logging.ChanneledLogger) *Coordinator {
	return &Coordinator{
		local:          local,
		durable:        durable,
		publisher:      publisher,
		recorder:       recorder,
		logger:         logger,
		retryAttempts:  config.PublishRetryAttempts,
		retryBase:      config.PublishRetryBase,
		publishTimeout: config.PublishTimeout,
	}
}

// OnMutation is the hook the domain layer calls immediately after a
// successful write, inside the same logical operation. Steps run in order:
// resolve patterns, purge the durable cache, publish the change event. A
// purge failure aborts before publish so a change is never announced that
// was not actually invalidated. A publish failure is retried in the
// background and never rolls back the purge; TTL expiry bounds the
// resulting staleness.
func (c *Coordinator) OnMutation(ctx context.Context, m dependency.Mutation, payload json.RawMessage) error {
	patterns, ok := dependency.RulesFor(m)
	if !ok {
		c.logger.Invalidation().Warn("No dependency rule for mutation, caches not invalidated",
			"entityType", string(m.EntityType), "mutationKind", string(m.Kind), "entityId", m.EntityID)
		return nil
	}

	start := time.Now()
	if err := c.purge(ctx, patterns); err != nil {
		c.logger.Invalidation().Error("Durable cache purge failed, aborting event publish",
			"entityType", string(m.EntityType), "entityId", m.EntityID, "error", err.Error())
		return fmt.Errorf("%w: %s", ErrDegradedConsistency, err.Error())
	}

	event := events.NewChangeEvent(m.EntityType, m.EntityID, m.Kind, payload)
	event.ParentID = m.ParentID
	c.logger.Invalidation().Info("Invalidated cache for mutation",
		"entityType", string(m.EntityType), "entityId", m.EntityID,
		"mutationKind", string(m.Kind), "patterns", len(patterns),
		"eventId", event.ID, "duration", time.Since(start).String())

	go c.publishWithRetry(events.Topic(m.EntityType), event)
	return nil
}

// purge deletes every resolved pattern from the durable tier and, best
// effort, from this node's memory tier. The durable delete is the one that
// gates event publication.
func (c *Coordinator) purge(ctx context.Context, patterns []keys.Pattern) error {
	for _, pattern := range patterns {
		if _, err := c.durable.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("delete %s: %w", pattern, err)
		}
		if c.local != nil {
			if _, err := c.local.DeletePattern(ctx, pattern); err != nil {
				c.logger.Invalidation().Warn("Memory tier purge failed",
					"pattern", string(pattern), "error", err.Error())
			}
		}
		if c.recorder != nil {
			c.recorder.RecordInvalidate(stores.TierDurable, string(pattern))
		}
	}
	return nil
}

// publishWithRetry announces the event with bounded backoff. The caller's
// response never waits on this; a missed event degrades to eventual
// consistency via TTL expiry.
func (c *Coordinator) publishWithRetry(topic string, event events.ChangeEvent) {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(c.retryBase * time.Duration(1<<(attempt-1)))
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.publishTimeout)
		lastErr = c.publisher.Publish(ctx, topic, event)
		cancel()

		if lastErr == nil {
			if attempt > 0 {
				c.logger.Bus().Info("Change event published after retry",
					"topic", topic, "eventId", event.ID, "attempt", attempt+1)
			}
			return
		}
	}

	c.logger.Bus().Error("Change event dropped after retry budget exhausted",
		"topic", topic, "eventId", event.ID,
		"attempts", c.retryAttempts, "error", lastErr.Error())
}
