package messaging

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell-go/internal/domain/entities/content"
	"github.com/inkwellhq/inkwell-go/internal/domain/events"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// openRedisBus skips the test when no Redis server is reachable so the
// suite stays runnable without infrastructure.
func openRedisBus(t *testing.T) *RedisBus {
	t.Helper()
	publisher := redis.NewClient(&redis.Options{Addr: config.RedisAddr, DB: 15})
	subscriber := redis.NewClient(&redis.Options{Addr: config.RedisAddr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := publisher.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", config.RedisAddr, err)
	}
	t.Cleanup(func() {
		publisher.Close()
		subscriber.Close()
	})
	return NewRedisBus(publisher, subscriber, nil)
}

func TestRedisBusRoundTrip(t *testing.T) {
	bus := openRedisBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "story-changed")
	require.NoError(t, err)
	defer sub.Close()

	event := events.NewChangeEvent(content.EntityStory, "st42", content.MutationUpdate, nil)
	require.NoError(t, bus.Publish(ctx, "story-changed", event))

	got := collect(t, sub, 1)
	assert.Equal(t, event.ID, got[0].Event.ID)
	assert.Equal(t, "story-changed", got[0].Topic)
}

func TestRedisBusCloseUnblocksUndrainedSubscription(t *testing.T) {
	bus := openRedisBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "story-changed")
	require.NoError(t, err)

	// Overfill the subscription buffer without draining it, so the pump
	// is parked on a channel send when Close arrives.
	for i := 0; i < 100; i++ {
		event := events.NewChangeEvent(content.EntityStory, "st42", content.MutationUpdate, nil)
		require.NoError(t, bus.Publish(ctx, "story-changed", event))
	}
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, sub.Close())

	// The pump must exit and close the channel instead of leaking.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("subscription channel never closed after Close")
		}
	}
}
