package warming

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/manager"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/stores"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
)

func quietLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		JSONFormat:    true,
		DefaultLevel:  slog.LevelError + 4,
		ChannelLevels: make(map[logging.Channel]slog.Level),
	})
	require.NoError(t, err)
	return logger
}

type staticSource struct {
	entries []Entry
	err     error
}

func (s *staticSource) HotEntries(context.Context) ([]Entry, error) {
	return s.entries, s.err
}

func TestWarmPopulatesBothTiers(t *testing.T) {
	ctx := context.Background()
	memory := stores.NewMemoryStore()
	durable := stores.NewMemoryStore()
	cache := manager.NewManager(memory, durable, nil, quietLogger(t))

	source := &staticSource{entries: []Entry{
		{Key: keys.New(keys.NSStoryStructure, "st42"), Value: []byte(`{"chapters":3}`), TTL: 15 * time.Minute},
		{Key: keys.New(keys.NSPostFeed, "recent"), Value: []byte(`[]`), TTL: 5 * time.Minute},
	}}
	w := NewWarmer(cache, source, quietLogger(t))

	require.NoError(t, w.Warm(ctx))

	for _, key := range []string{"story-structure:st42", "post-feed:recent"} {
		_, found, err := durable.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found, "durable tier must hold warmed key %s", key)
		_, found, err = memory.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found, "memory tier must hold warmed key %s", key)
	}
}

func TestWarmPropagatesSourceError(t *testing.T) {
	cache := manager.NewManager(stores.NewMemoryStore(), stores.NewMemoryStore(), nil, quietLogger(t))
	boom := errors.New("primary store down")
	w := NewWarmer(cache, &staticSource{err: boom}, quietLogger(t))

	assert.ErrorIs(t, w.Warm(context.Background()), boom)
}

func TestWarmEmptySetIsNoOp(t *testing.T) {
	cache := manager.NewManager(stores.NewMemoryStore(), stores.NewMemoryStore(), nil, quietLogger(t))
	w := NewWarmer(cache, &staticSource{}, quietLogger(t))
	assert.NoError(t, w.Warm(context.Background()))
}
