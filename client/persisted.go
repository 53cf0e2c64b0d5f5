package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
)

// PersistedStore is the client's durable tier, a SQLite file that survives
// process restarts. Values carry their stored-at time so the agent can
// distrust age after a connectivity gap.
type PersistedStore struct {
	db  *sql.DB
	now func() time.Time
}

const persistedSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	stored_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries (expires_at);
`

// OpenPersistedStore opens or creates the cache database at path.
func OpenPersistedStore(path string) (*PersistedStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if _, err := db.Exec(persistedSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return &PersistedStore{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *PersistedStore) Close() error { return s.db.Close() }

// Get returns the value and its stored-at time, or found=false on a miss
// or an expired entry. Expired entries are deleted on read.
func (s *PersistedStore) Get(ctx context.Context, key string) (value []byte, storedAt time.Time, found bool, err error) {
	var stored, expires int64
	row := s.db.QueryRowContext(ctx,
		`SELECT value, stored_at, expires_at FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&value, &stored, &expires); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, fmt.Errorf("read cache entry: %w", err)
	}

	if expires > 0 && s.now().Unix() >= expires {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, time.Time{}, false, nil
	}

	return value, time.Unix(stored, 0), true, nil
}

// Set stores a value. A zero TTL means no expiry.
func (s *PersistedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	var expires int64
	if ttl > 0 {
		expires = now.Add(ttl).Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, stored_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		   stored_at = excluded.stored_at, expires_at = excluded.expires_at`,
		key, value, now.Unix(), expires)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes keys. Missing keys are a no-op.
func (s *PersistedStore) Delete(ctx context.Context, keyNames ...string) error {
	for _, key := range keyNames {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
	}
	return nil
}

// DeletePattern removes every key the pattern matches and reports how
// many were removed.
func (s *PersistedStore) DeletePattern(ctx context.Context, pattern keys.Pattern) (int, error) {
	if !pattern.IsWildcard() {
		res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, string(pattern))
		if err != nil {
			return 0, fmt.Errorf("delete cache entry: %w", err)
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}

	// Match in Go rather than with LIKE so pattern semantics stay
	// identical to the other tiers, including the bare "ns:id" form a
	// trailing wildcard also covers.
	matched, err := s.keysMatching(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}
	if err := s.Delete(ctx, matched...); err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Keys returns every live key, for the revalidation sweep.
func (s *PersistedStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *PersistedStore) keysMatching(ctx context.Context, pattern keys.Pattern) ([]string, error) {
	all, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, key := range all {
		if pattern.Matches(key) {
			matched = append(matched, key)
		}
	}
	return matched, nil
}

// SweepExpired deletes expired rows and reports how many were removed.
func (s *PersistedStore) SweepExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep cache entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
