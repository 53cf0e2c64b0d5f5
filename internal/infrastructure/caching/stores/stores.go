// Package stores provides concrete cache tier implementations.
package stores

import (
	"context"
	"errors"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
)

// Tier names as reported to the health monitor.
const (
	TierMemory          = "memory"
	TierDurable         = "durable"
	TierClientMemory    = "client-memory"
	TierClientPersisted = "client-persisted"
)

// ErrUnavailable reports that a cache tier could not be reached. The
// coordinator treats it as fatal to the invalidation step.
var ErrUnavailable = errors.New("cache tier unavailable")

// Entry is one stored cache record.
type Entry struct {
	Key      string        `json:"key"`
	Value    []byte        `json:"value"`
	StoredAt time.Time     `json:"storedAt"`
	TTL      time.Duration `json:"ttl"`
}

// Expired reports whether the entry's soft expiry has elapsed.
func (e Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.StoredAt.Add(e.TTL))
}

// Cache is the keyed tier contract shared by the memory and durable stores.
// Deletion is idempotent on every implementation: removing an absent key
// succeeds, which is what lets concurrent invalidations race safely.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern keys.Pattern) (int, error)
}
