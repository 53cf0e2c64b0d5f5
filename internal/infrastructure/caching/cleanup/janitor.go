// Package cleanup provides the background janitor for the memory tier.
package cleanup

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/stores"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// ExpiryRecorder receives one invalidation per reclaimed key so TTL expiry
// shows up in the monitor's invalidation counters.
type ExpiryRecorder interface {
	RecordInvalidate(tier, key string)
}

// Janitor periodically sweeps expired entries out of the node-local memory
// tier. The memory store already drops expired entries lazily on read; the
// janitor reclaims entries nothing reads anymore.
type Janitor struct {
	memory   *stores.MemoryStore
	recorder ExpiryRecorder
	interval time.Duration
	logger   *logging.ChanneledLogger
}

// NewJanitor creates a janitor over the given memory store. The recorder
// may be nil.
func NewJanitor(memory *stores.MemoryStore, recorder ExpiryRecorder, logger *logging.ChanneledLogger) *Janitor {
	return &Janitor{
		memory:   memory,
		recorder: recorder,
		interval: config.JanitorInterval,
		logger:   logger,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.System().Info("Memory tier janitor started", "interval", j.interval.String())

	for {
		select {
		case <-ctx.Done():
			j.logger.Shutdown().Info("Memory tier janitor stopping")
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	start := time.Now()
	swept := j.memory.SweepExpired()
	if len(swept) == 0 {
		return
	}

	if j.recorder != nil {
		for _, key := range swept {
			j.recorder.RecordInvalidate(stores.TierMemory, key)
		}
	}
	j.logger.Cache().Info("Swept expired memory tier entries",
		"swept", len(swept), "remaining", j.memory.Len(),
		"duration", time.Since(start).String())
}
