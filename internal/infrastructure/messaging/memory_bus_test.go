package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell-go/internal/domain/entities/content"
	"github.com/inkwellhq/inkwell-go/internal/domain/events"
)

func collect(t *testing.T, sub Subscription, n int) []Envelope {
	t.Helper()
	got := make([]Envelope, 0, n)
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case env, ok := <-sub.Events():
			if !ok {
				t.Fatalf("subscription closed after %d of %d events", len(got), n)
			}
			got = append(got, env)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(got), n)
		}
	}
	return got
}

func TestMemoryBusFanOut(t *testing.T) {
	bus := NewMemoryBus(8, nil)
	ctx := context.Background()

	subA, err := bus.Subscribe(ctx, "chapter-changed")
	require.NoError(t, err)
	defer subA.Close()

	subB, err := bus.Subscribe(ctx, "chapter-changed")
	require.NoError(t, err)
	defer subB.Close()

	event := events.NewChangeEvent(content.EntityChapter, "ch7", content.MutationUpdate, nil)
	require.NoError(t, bus.Publish(ctx, "chapter-changed", event))

	gotA := collect(t, subA, 1)
	gotB := collect(t, subB, 1)

	assert.Equal(t, event.ID, gotA[0].Event.ID)
	assert.Equal(t, event.ID, gotB[0].Event.ID)

	// Exactly one copy each.
	select {
	case extra := <-subA.Events():
		t.Fatalf("unexpected extra event %s", extra.Event.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusPerTopicOrdering(t *testing.T) {
	bus := NewMemoryBus(16, nil)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "scene-changed")
	require.NoError(t, err)
	defer sub.Close()

	var published []string
	for i := 0; i < 10; i++ {
		event := events.NewChangeEvent(content.EntityScene, "sc1", content.MutationUpdate, nil)
		published = append(published, event.ID)
		require.NoError(t, bus.Publish(ctx, "scene-changed", event))
	}

	got := collect(t, sub, 10)
	for i, env := range got {
		assert.Equal(t, published[i], env.Event.ID, "event %d out of order", i)
	}
}

func TestMemoryBusTopicIsolation(t *testing.T) {
	bus := NewMemoryBus(8, nil)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "post-changed")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, "story-changed",
		events.NewChangeEvent(content.EntityStory, "st1", content.MutationUpdate, nil)))

	select {
	case env := <-sub.Events():
		t.Fatalf("received event %s on unsubscribed topic", env.Event.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusCloseUnregisters(t *testing.T) {
	bus := NewMemoryBus(8, nil)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "post-changed")
	require.NoError(t, err)
	require.Equal(t, 1, bus.SubscriberCount("post-changed"))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close()) // idempotent
	assert.Equal(t, 0, bus.SubscriberCount("post-changed"))

	_, open := <-sub.Events()
	assert.False(t, open, "channel should be closed")
}

func TestMemoryBusFullBufferDrops(t *testing.T) {
	bus := NewMemoryBus(1, nil)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "post-changed")
	require.NoError(t, err)
	defer sub.Close()

	first := events.NewChangeEvent(content.EntityPost, "p1", content.MutationCreate, nil)
	second := events.NewChangeEvent(content.EntityPost, "p1", content.MutationUpdate, nil)
	require.NoError(t, bus.Publish(ctx, "post-changed", first))
	require.NoError(t, bus.Publish(ctx, "post-changed", second))

	got := collect(t, sub, 1)
	assert.Equal(t, first.ID, got[0].Event.ID)

	select {
	case env := <-sub.Events():
		t.Fatalf("dropped event %s was delivered", env.Event.ID)
	case <-time.After(50 * time.Millisecond):
	}
}
