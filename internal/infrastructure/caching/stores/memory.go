package stores

import (
	"context"
	"sync"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
)

// MemoryStore is the in-process read tier. It fronts the durable tier on the
// server and doubles as the client's in-memory tier; it also serves as the
// test double wherever the Cache contract is injected.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock creates a store with an injected clock for tests.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry), now: now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if entry.Expired(s.now()) {
		// Lazy expiry; the janitor reclaims memory later.
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Key: key, Value: value, StoredAt: s.now().UTC(), TTL: ttl}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keyNames ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keyNames {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryStore) DeletePattern(_ context.Context, pattern keys.Pattern) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if pattern.Matches(key) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Keys returns a snapshot of all stored key names, expired entries included.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for key := range s.entries {
		names = append(names, key)
	}
	return names
}

// Len returns the number of stored entries, expired entries included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SweepExpired removes every entry past its soft expiry and returns the
// reclaimed keys. The janitor calls this on its interval and reports each
// key as an expiry invalidation.
func (s *MemoryStore) SweepExpired() []string {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed = append(removed, key)
		}
	}
	return removed
}
