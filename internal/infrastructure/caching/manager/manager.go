// Package manager provides the server-side tiered cache: a node-local
// memory tier in front of the durable shared cache, with read-through
// loading from the primary store.
package manager

import (
	"context"
	"errors"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/stores"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// ErrNotFound reports that the loader had no record for the key. It is
// cached as a miss nowhere; every read retries the loader.
var ErrNotFound = errors.New("entity not found")

// Loader fetches the authoritative value when every cache tier misses.
type Loader func(ctx context.Context) ([]byte, error)

// Recorder receives per-operation metrics. The cache health monitor
// implements it.
type Recorder interface {
	RecordHit(tier, key string, latency time.Duration)
	RecordMiss(tier, key string, latency time.Duration)
}

// Manager is the two-tier read-through cache facade used by all server
// handlers. The memory tier carries a short soft TTL so node-local copies
// converge even if an invalidation event is missed; the durable tier is
// the cross-process source of cached truth.
type Manager struct {
	memory  *stores.MemoryStore
	durable stores.Cache

	memoryTTL  time.Duration
	durableTTL time.Duration

	recorder Recorder
	logger   *logging.ChanneledLogger
}

// NewManager wires the two tiers with configured TTLs.
func NewManager(memory *stores.MemoryStore, durable stores.Cache, recorder Recorder, logger *logging.ChanneledLogger) *Manager {
	return &Manager{
		memory:     memory,
		durable:    durable,
		memoryTTL:  config.MemoryTierTTL,
		durableTTL: config.EntityCacheTTL,
		recorder:   recorder,
		logger:     logger,
	}
}

// Memory exposes the node-local tier for the janitor and the coordinator.
func (m *Manager) Memory() *stores.MemoryStore { return m.memory }

// GetOrLoad reads through the tiers in order. A memory hit returns
// immediately; a durable hit is promoted into memory; a full miss invokes
// the loader and populates both tiers. A durable-tier outage degrades to
// loader reads rather than failing the request.
func (m *Manager) GetOrLoad(ctx context.Context, key keys.CacheKey, ttl time.Duration, loader Loader) ([]byte, error) {
	rawKey := key.String()
	if ttl <= 0 {
		ttl = m.durableTTL
	}

	start := time.Now()
	if value, found, _ := m.memory.Get(ctx, rawKey); found {
		m.record(stores.TierMemory, rawKey, true, time.Since(start))
		return value, nil
	}
	m.record(stores.TierMemory, rawKey, false, time.Since(start))

	start = time.Now()
	value, found, err := m.durable.Get(ctx, rawKey)
	if err != nil {
		m.logger.Cache().Warn("Durable tier read failed, falling through to loader",
			"key", rawKey, "error", err.Error())
	} else if found {
		m.record(stores.TierDurable, rawKey, true, time.Since(start))
		m.storeMemory(ctx, rawKey, value)
		return value, nil
	} else {
		m.record(stores.TierDurable, rawKey, false, time.Since(start))
	}

	value, err = loader(ctx)
	if err != nil {
		return nil, err
	}

	if setErr := m.durable.Set(ctx, rawKey, value, ttl); setErr != nil {
		m.logger.Cache().Warn("Durable tier write failed",
			"key", rawKey, "error", setErr.Error())
	}
	m.storeMemory(ctx, rawKey, value)
	return value, nil
}

// Set writes a value into both tiers, bypassing the loader. Used by the
// cache warmer.
func (m *Manager) Set(ctx context.Context, key keys.CacheKey, value []byte, ttl time.Duration) error {
	rawKey := key.String()
	if ttl <= 0 {
		ttl = m.durableTTL
	}
	if err := m.durable.Set(ctx, rawKey, value, ttl); err != nil {
		return err
	}
	m.storeMemory(ctx, rawKey, value)
	return nil
}

// Peek reads the durable tier only, without promotion or loading. The
// cache inspection endpoint uses it so inspection never mutates state.
func (m *Manager) Peek(ctx context.Context, key keys.CacheKey) ([]byte, bool, error) {
	return m.durable.Get(ctx, key.String())
}

func (m *Manager) storeMemory(ctx context.Context, rawKey string, value []byte) {
	if err := m.memory.Set(ctx, rawKey, value, m.memoryTTL); err != nil {
		m.logger.Cache().Warn("Memory tier write failed", "key", rawKey, "error", err.Error())
	}
}

func (m *Manager) record(tier, key string, hit bool, latency time.Duration) {
	m.logger.LogCacheOperation("get", tier, key, hit, latency)
	if m.recorder == nil {
		return
	}
	if hit {
		m.recorder.RecordHit(tier, key, latency)
	} else {
		m.recorder.RecordMiss(tier, key, latency)
	}
}
