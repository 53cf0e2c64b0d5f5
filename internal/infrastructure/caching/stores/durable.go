package stores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	redis "github.com/redis/go-redis/v9"
)

// RedisStore is the durable shared tier backed by Redis, shared by all
// server processes. Writes are idempotent SET/DEL so no cross-process lock
// is needed; "last invalidation wins" is safe because deleting an absent
// key is a no-op.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing client. The caller owns the client's
// lifecycle; this store must never be handed the subscriber connection.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keyNames ...string) error {
	if len(keyNames) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keyNames...).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", ErrUnavailable, err)
	}
	return nil
}

// DeletePattern removes every key covered by the pattern. Wildcards walk the
// keyspace with SCAN and batch deletions through a pipeline; exact patterns
// degrade to a single DEL.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern keys.Pattern) (int, error) {
	if !pattern.IsWildcard() {
		removed, err := s.rdb.Del(ctx, pattern.String()).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: del %s: %v", ErrUnavailable, pattern, err)
		}
		return int(removed), nil
	}

	var matched []string
	iter := s.rdb.Scan(ctx, 0, pattern.String(), 0).Iterator()
	for iter.Next(ctx) {
		matched = append(matched, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%w: scan %s: %v", ErrUnavailable, pattern, err)
	}

	// "ns:id:*" also covers the bare "ns:id" key, which the Redis glob
	// does not match.
	bare := strings.TrimSuffix(strings.TrimSuffix(pattern.String(), "*"), ":")
	matched = append(matched, bare)

	removed, err := s.rdb.Del(ctx, matched...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: del pattern %s: %v", ErrUnavailable, pattern, err)
	}
	return int(removed), nil
}

// Ping verifies the tier is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}
