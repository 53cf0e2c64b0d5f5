package stores

import (
	"context"
	"testing"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, found, err := store.Get(ctx, "story:42")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "story:42", []byte(`{"id":"42"}`), time.Minute))

	val, found, err := store.Get(ctx, "story:42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"id":"42"}`), val)
}

func TestMemoryStoreSoftExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStoreWithClock(func() time.Time { return now })

	require.NoError(t, store.Set(ctx, "story:42", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	_, found, _ := store.Get(ctx, "story:42")
	assert.True(t, found)

	now = now.Add(2 * time.Second)
	_, found, _ = store.Get(ctx, "story:42")
	assert.False(t, found, "entry past storedAt+ttl must read as a miss")

	// Lazy expiry leaves the entry for the janitor.
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []string{"story:42"}, store.SweepExpired())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "story:42", []byte("v"), 0))
	require.NoError(t, store.Delete(ctx, "story:42"))
	require.NoError(t, store.Delete(ctx, "story:42"), "deleting an absent key is a no-op")

	_, found, _ := store.Get(ctx, "story:42")
	assert.False(t, found)
}

func TestMemoryStoreDeletePattern(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "chapter-list:42:cursor=p1", []byte("a"), 0))
	require.NoError(t, store.Set(ctx, "chapter-list:42:cursor=p2", []byte("b"), 0))
	require.NoError(t, store.Set(ctx, "chapter-list:43:cursor=p1", []byte("c"), 0))

	removed, err := store.DeletePattern(ctx, keys.Prefix(keys.NSChapterList, "42"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, _ := store.Get(ctx, "chapter-list:43:cursor=p1")
	assert.True(t, found, "other entities' listings must survive")
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStoreWithClock(func() time.Time { return now })

	require.NoError(t, store.Set(ctx, "story:42", []byte("v"), 0))
	now = now.Add(240 * time.Hour)

	_, found, _ := store.Get(ctx, "story:42")
	assert.True(t, found)
	assert.Empty(t, store.SweepExpired())
}
