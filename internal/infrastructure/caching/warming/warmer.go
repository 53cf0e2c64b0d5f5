// Package warming pre-loads critical content into the cache tiers during
// application startup so first readers after a deploy do not pay cold-cache
// latency.
package warming

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/manager"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
)

// Entry is one pre-computed cache entry to warm.
type Entry struct {
	Key   keys.CacheKey
	Value []byte
	TTL   time.Duration
}

// Source supplies the hot entries. The domain layer implements it over the
// primary store, typically with published story structures and recent feed
// pages.
type Source interface {
	HotEntries(ctx context.Context) ([]Entry, error)
}

// Warmer loads every hot entry through the cache manager.
type Warmer struct {
	cache  *manager.Manager
	source Source
	logger *logging.ChanneledLogger
}

// NewWarmer wires a warmer over the cache manager.
func NewWarmer(cache *manager.Manager, source Source, logger *logging.ChanneledLogger) *Warmer {
	return &Warmer{cache: cache, source: source, logger: logger}
}

// Warm fetches and stores the hot set. Individual entry failures are
// logged and skipped; warming is best-effort and never blocks startup on a
// partial failure.
func (w *Warmer) Warm(ctx context.Context) error {
	start := time.Now()

	entries, err := w.source.HotEntries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		w.logger.Warming().Info("No hot entries to warm")
		return nil
	}

	warmed := 0
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Load through the normal fetch path so the warm shows up in the
		// monitor's counters like any other populate.
		value := entry.Value
		if _, err := w.cache.GetOrLoad(ctx, entry.Key, entry.TTL, func(context.Context) ([]byte, error) {
			return value, nil
		}); err != nil {
			w.logger.Warming().Warn("Failed to warm entry",
				"key", entry.Key.String(), "error", err.Error())
			continue
		}
		warmed++
	}

	w.logger.Warming().Info("Cache warming complete",
		"warmed", warmed, "total", len(entries),
		"duration", time.Since(start).String())
	return nil
}
