package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell-go/internal/domain/entities/content"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/dependency"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/stores"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/messaging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
)

func quietLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToConsole: false,
		OutputToFile:    false,
		JSONFormat:      true,
		DefaultLevel:    slog.LevelError + 4,
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	require.NoError(t, err)
	return logger
}

// flakyStore wraps a MemoryStore and fails DeletePattern on demand.
type flakyStore struct {
	*stores.MemoryStore
	mu       sync.Mutex
	failNext bool
	deleted  []string
}

func (f *flakyStore) DeletePattern(ctx context.Context, pattern keys.Pattern) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		return 0, errors.New("connection refused")
	}
	f.deleted = append(f.deleted, string(pattern))
	return f.MemoryStore.DeletePattern(ctx, pattern)
}

func (f *flakyStore) deletedPatterns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type countingRecorder struct {
	mu    sync.Mutex
	count int
}

func (r *countingRecorder) RecordInvalidate(tier, key string) {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *countingRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestOnMutationPurgesThenPublishes(t *testing.T) {
	ctx := context.Background()
	durable := &flakyStore{MemoryStore: stores.NewMemoryStore()}
	local := stores.NewMemoryStore()
	bus := messaging.NewMemoryBus(8, nil)
	recorder := &countingRecorder{}
	coord := New(local, durable, bus, recorder, quietLogger(t))

	sub, err := bus.Subscribe(ctx, "chapter-changed")
	require.NoError(t, err)
	defer sub.Close()

	// Pre-populate both tiers so the purge has something to remove.
	require.NoError(t, durable.Set(ctx, "chapter:ch7", []byte(`{}`), time.Minute))
	require.NoError(t, local.Set(ctx, "chapter:ch7", []byte(`{}`), time.Minute))

	payload := json.RawMessage(`{"title":"revised"}`)
	err = coord.OnMutation(ctx, dependency.Mutation{
		EntityType: content.EntityChapter,
		Kind:       content.MutationUpdate,
		EntityID:   "ch7",
		ParentID:   "st42",
	}, payload)
	require.NoError(t, err)

	select {
	case env := <-sub.Events():
		assert.Equal(t, "chapter-changed", env.Topic)
		assert.Equal(t, content.EntityChapter, env.Event.EntityType)
		assert.Equal(t, "ch7", env.Event.EntityID)
		assert.Equal(t, content.MutationUpdate, env.Event.MutationKind)
		assert.JSONEq(t, string(payload), string(env.Event.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("change event never published")
	}

	assert.Contains(t, durable.deletedPatterns(), "chapter:ch7")
	assert.Contains(t, durable.deletedPatterns(), "story-structure:st42")
	assert.Contains(t, durable.deletedPatterns(), "chapter-list:st42:*")

	_, found, err := durable.Get(ctx, "chapter:ch7")
	require.NoError(t, err)
	assert.False(t, found, "durable entry should be purged")

	_, found, err = local.Get(ctx, "chapter:ch7")
	require.NoError(t, err)
	assert.False(t, found, "memory tier entry should be purged")

	assert.Equal(t, 3, recorder.total())
}

func TestOnMutationAbortsPublishWhenPurgeFails(t *testing.T) {
	ctx := context.Background()
	durable := &flakyStore{MemoryStore: stores.NewMemoryStore(), failNext: true}
	bus := messaging.NewMemoryBus(8, nil)
	coord := New(nil, durable, bus, nil, quietLogger(t))

	sub, err := bus.Subscribe(ctx, "story-changed")
	require.NoError(t, err)
	defer sub.Close()

	err = coord.OnMutation(ctx, dependency.Mutation{
		EntityType: content.EntityStory,
		Kind:       content.MutationPublish,
		EntityID:   "st42",
	}, nil)
	require.ErrorIs(t, err, ErrDegradedConsistency)

	select {
	case env := <-sub.Events():
		t.Fatalf("event %s published despite purge failure", env.Event.ID)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestOnMutationUnknownPairIsDiagnosticNoOp(t *testing.T) {
	ctx := context.Background()
	durable := &flakyStore{MemoryStore: stores.NewMemoryStore()}
	bus := messaging.NewMemoryBus(8, nil)
	coord := New(nil, durable, bus, nil, quietLogger(t))

	err := coord.OnMutation(ctx, dependency.Mutation{
		EntityType: content.EntityType("widget"),
		Kind:       content.MutationUpdate,
		EntityID:   "w1",
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, durable.deletedPatterns())
}

func TestOnMutationIdempotent(t *testing.T) {
	ctx := context.Background()
	durable := &flakyStore{MemoryStore: stores.NewMemoryStore()}
	bus := messaging.NewMemoryBus(8, nil)
	coord := New(nil, durable, bus, nil, quietLogger(t))

	m := dependency.Mutation{
		EntityType: content.EntityPost,
		Kind:       content.MutationDelete,
		EntityID:   "p9",
	}

	// Deleting keys that are already gone is a no-op, not an error.
	require.NoError(t, coord.OnMutation(ctx, m, nil))
	require.NoError(t, coord.OnMutation(ctx, m, nil))
}
