package client

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/stores"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// MutationState tracks a speculative local write through its lifecycle.
type MutationState string

const (
	MutationPending    MutationState = "pending"
	MutationConfirmed  MutationState = "confirmed"
	MutationRolledBack MutationState = "rolled_back"
)

// MutationRecord is one optimistic mutation. Done is closed when the
// mutation reaches a terminal state.
type MutationRecord struct {
	ID               string
	Key              string
	SpeculativeValue []byte
	PreviousValue    []byte
	HadPrevious      bool
	State            MutationState
	Err              error
	Done             chan struct{}
}

// SendFunc performs the network mutation and returns the authoritative
// server value, or an error to roll back.
type SendFunc func(ctx context.Context) ([]byte, error)

// FailureFunc receives rolled-back mutations so the UI can surface the
// failure.
type FailureFunc func(rec *MutationRecord)

// OptimisticManager applies speculative writes to the in-memory tier
// ahead of server confirmation and reconciles them when the server
// responds or the timeout fires. While a mutation is pending, change
// events for its key are held and applied only after resolution, so a
// confirmed value is never clobbered by an event describing older state.
type OptimisticManager struct {
	memory    *stores.MemoryStore
	memoryTTL time.Duration
	timeout   time.Duration
	logger    *logging.ChanneledLogger
	onFailure FailureFunc

	mu      sync.Mutex
	pending map[string]*MutationRecord
	held    map[string][]func()
}

func NewOptimisticManager(memory *stores.MemoryStore, onFailure FailureFunc, logger *logging.ChanneledLogger) *OptimisticManager {
	return &OptimisticManager{
		memory:    memory,
		memoryTTL: config.MemoryTierTTL,
		timeout:   config.MutationTimeout,
		logger:    logger,
		onFailure: onFailure,
		pending:   make(map[string]*MutationRecord),
		held:      make(map[string][]func()),
	}
}

// Begin snapshots the current value, writes the speculative one, and
// fires the network mutation in the background. The returned record's
// Done channel closes when the mutation confirms or rolls back.
func (m *OptimisticManager) Begin(ctx context.Context, key string, speculative []byte, send SendFunc) *MutationRecord {
	previous, had, _ := m.memory.Get(ctx, key)

	rec := &MutationRecord{
		ID:               ulid.Make().String(),
		Key:              key,
		SpeculativeValue: speculative,
		PreviousValue:    previous,
		HadPrevious:      had,
		State:            MutationPending,
		Done:             make(chan struct{}),
	}

	m.mu.Lock()
	m.pending[key] = rec
	m.mu.Unlock()

	if err := m.memory.Set(ctx, key, speculative, m.memoryTTL); err != nil {
		m.logger.Sync().Warn("Speculative write failed", "key", key, "error", err)
	}

	go m.resolve(ctx, rec, send)
	return rec
}

// HoldIfPending defers apply until the mutation whose key the patterns
// cover resolves. It returns true when the event was queued; false means
// no pending mutation is affected and the caller applies it immediately.
func (m *OptimisticManager) HoldIfPending(patterns []keys.Pattern, apply func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.pending {
		for _, pattern := range patterns {
			if pattern.Matches(key) {
				m.held[key] = append(m.held[key], apply)
				return true
			}
		}
	}
	return false
}

// PendingCount reports how many mutations are in flight.
func (m *OptimisticManager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *OptimisticManager) resolve(ctx context.Context, rec *MutationRecord, send SendFunc) {
	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	serverValue, err := send(sendCtx)
	if err != nil {
		m.rollback(rec, err)
	} else {
		m.confirm(rec, serverValue)
	}

	m.mu.Lock()
	delete(m.pending, rec.Key)
	queued := m.held[rec.Key]
	delete(m.held, rec.Key)
	m.mu.Unlock()

	for _, apply := range queued {
		apply()
	}
	close(rec.Done)
}

func (m *OptimisticManager) confirm(rec *MutationRecord, serverValue []byte) {
	rec.State = MutationConfirmed
	// Server wins on conflict; keep the speculative value only when the
	// server echoed nothing back.
	if serverValue != nil {
		if err := m.memory.Set(context.Background(), rec.Key, serverValue, m.memoryTTL); err != nil {
			m.logger.Sync().Warn("Confirmed write failed", "key", rec.Key, "error", err)
		}
	}
	m.logger.Sync().Debug("Mutation confirmed", "mutationId", rec.ID, "key", rec.Key)
}

func (m *OptimisticManager) rollback(rec *MutationRecord, cause error) {
	rec.State = MutationRolledBack
	rec.Err = cause

	ctx := context.Background()
	if rec.HadPrevious {
		if err := m.memory.Set(ctx, rec.Key, rec.PreviousValue, m.memoryTTL); err != nil {
			m.logger.Sync().Warn("Rollback write failed", "key", rec.Key, "error", err)
		}
	} else {
		_ = m.memory.Delete(ctx, rec.Key)
	}

	m.logger.Sync().Warn("Mutation rolled back", "mutationId", rec.ID, "key", rec.Key, "error", cause)
	if m.onFailure != nil {
		m.onFailure(rec)
	}
}
