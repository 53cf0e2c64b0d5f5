// Package client implements the sync agent embedded in each connected
// client: a two-tier local cache (in-memory plus a SQLite file that
// survives restarts), an event-stream consumer that purges those tiers
// through the same dependency table the server resolves, optimistic
// mutations, and an exponential-backoff reconnect loop.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/inkwellhq/inkwell-go/internal/domain/events"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/dependency"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/keys"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/stores"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// ErrDisconnected is returned by Run when the reconnect budget is spent.
var ErrDisconnected = errors.New("reconnect attempts exhausted")

// ConnState is the agent's connection status as surfaced to the UI.
type ConnState string

const (
	StateConnecting   ConnState = "connecting"
	StateStreaming    ConnState = "streaming"
	StateReconnecting ConnState = "reconnecting"
	// StateDisconnected is terminal: the retry budget is spent and the UI
	// must tell the user freshness is degraded.
	StateDisconnected ConnState = "disconnected"
)

// Fetcher refetches an entity by cache key during a revalidation sweep.
// A nil value means sweeps purge instead of refreshing.
type Fetcher func(ctx context.Context, key string) ([]byte, error)

// InvalidateFunc is a UI subscription callback, invoked with each local
// key purged by a change event or sweep.
type InvalidateFunc func(key string)

// AgentConfig wires an Agent. StreamURL points at the gateway's stream
// endpoint; Token is optional when the server runs without stream auth.
type AgentConfig struct {
	StreamURL  string
	Token      string
	HTTPClient *http.Client
	Fetch      Fetcher
	OnFailure  FailureFunc
	OnState    func(ConnState)
	Logger     *logging.ChanneledLogger
}

// Agent owns the client-side cache tiers and keeps them consistent with
// the server via the event stream.
type Agent struct {
	memory     *stores.MemoryStore
	persisted  *PersistedStore
	optimistic *OptimisticManager
	fetch      Fetcher
	logger     *logging.ChanneledLogger

	streamURL  string
	token      string
	httpClient *http.Client
	backoff    Backoff
	keepAlive  time.Duration
	staleAfter time.Duration
	onState    func(ConnState)
	now        func() time.Time
	sleep      func(time.Duration)

	mu          sync.Mutex
	subs        map[string][]InvalidateFunc
	state       ConnState
	lastFrameAt time.Time
}

func NewAgent(cfg AgentConfig, persisted *PersistedStore) *Agent {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	memory := stores.NewMemoryStore()
	a := &Agent{
		memory:     memory,
		persisted:  persisted,
		fetch:      cfg.Fetch,
		logger:     cfg.Logger,
		streamURL:  cfg.StreamURL,
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		backoff:    DefaultBackoff(),
		keepAlive:  config.KeepAliveInterval,
		staleAfter: 3 * config.KeepAliveInterval,
		onState:    cfg.OnState,
		now:        time.Now,
		sleep:      time.Sleep,
		subs:       make(map[string][]InvalidateFunc),
		state:      StateConnecting,
	}
	a.optimistic = NewOptimisticManager(memory, cfg.OnFailure, cfg.Logger)
	return a
}

// Read checks the in-memory tier, then the persisted tier, promoting a
// persisted hit into memory. A miss is not an error; the UI fetches and
// stores through Put.
func (a *Agent) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if value, found, err := a.memory.Get(ctx, key); err == nil && found {
		return value, true, nil
	}

	value, _, found, err := a.persisted.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	if err := a.memory.Set(ctx, key, value, config.MemoryTierTTL); err != nil {
		a.logger.Sync().Warn("Memory tier promotion failed", "key", key, "error", err)
	}
	return value, true, nil
}

// Put stores a fetched value in both local tiers.
func (a *Agent) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := a.persisted.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return a.memory.Set(ctx, key, value, config.MemoryTierTTL)
}

// Mutate applies an optimistic write against key and reconciles it with
// the server response. See OptimisticManager for the race rules.
func (a *Agent) Mutate(ctx context.Context, key string, speculative []byte, send SendFunc) *MutationRecord {
	return a.optimistic.Begin(ctx, key, speculative, send)
}

// OnInvalidate registers a UI subscription for one key. The callback
// runs whenever a change event or revalidation sweep purges that key.
func (a *Agent) OnInvalidate(key string, fn InvalidateFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs[key] = append(a.subs[key], fn)
}

// State reports the current connection state.
func (a *Agent) State() ConnState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ApplyEvent resolves a change event through the dependency table and
// purges every matching local key. When a pending optimistic mutation
// covers one of the resolved patterns, the purge is held until that
// mutation resolves so a confirmed value is never clobbered by an event
// describing state that predates it.
func (a *Agent) ApplyEvent(ctx context.Context, event events.ChangeEvent) {
	m := dependency.Mutation{
		EntityType: event.EntityType,
		Kind:       event.MutationKind,
		EntityID:   event.EntityID,
		ParentID:   event.ParentID,
	}
	patterns, ok := dependency.RulesFor(m)
	if !ok {
		a.logger.Sync().Warn("No dependency rule for event, local caches not purged",
			"entityType", string(event.EntityType), "mutationKind", string(event.MutationKind))
		return
	}

	apply := func() { a.purge(ctx, patterns) }
	if a.optimistic.HoldIfPending(patterns, apply) {
		a.logger.Sync().Debug("Event held behind pending mutation",
			"eventId", event.ID, "entityId", event.EntityID)
		return
	}
	apply()
}

func (a *Agent) purge(ctx context.Context, patterns []keys.Pattern) {
	for _, pattern := range patterns {
		if _, err := a.memory.DeletePattern(ctx, pattern); err != nil {
			a.logger.Sync().Warn("Memory tier purge failed", "pattern", pattern.String(), "error", err)
		}
		if _, err := a.persisted.DeletePattern(ctx, pattern); err != nil {
			a.logger.Sync().Warn("Persisted tier purge failed", "pattern", pattern.String(), "error", err)
		}
	}
	a.notify(patterns)
}

func (a *Agent) notify(patterns []keys.Pattern) {
	a.mu.Lock()
	var fire []func()
	for key, fns := range a.subs {
		for _, pattern := range patterns {
			if pattern.Matches(key) {
				key := key
				for _, fn := range fns {
					fn := fn
					fire = append(fire, func() { fn(key) })
				}
				break
			}
		}
	}
	a.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// Run maintains the stream connection until ctx is cancelled or the
// retry budget is spent. Each reconnect after a gap longer than the
// keep-alive interval distrusts the persisted cache and triggers a full
// revalidation sweep, because missed events are not replayed by the bus.
func (a *Agent) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		reader, err := openStream(ctx, a.httpClient, a.streamURL, a.token)
		if err == nil {
			attempt = 0
			a.setState(StateStreaming)
			a.afterConnect(ctx)
			err = a.consume(ctx, reader)
			reader.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			a.logger.Sync().Warn("Stream connection lost", "error", err)
		}

		delay := a.backoff.Delay(attempt)
		if delay < 0 {
			a.setState(StateDisconnected)
			a.logger.Sync().Error("Reconnect attempts exhausted, surfacing disconnected state",
				"attempts", a.backoff.MaxAttempts)
			return ErrDisconnected
		}
		a.setState(StateReconnecting)
		attempt++
		a.sleep(delay)
	}
}

// afterConnect runs the post-gap staleness rule: if the last frame is
// older than one keep-alive interval (or this is a fresh process), the
// persisted cache age cannot be trusted and every live key is swept.
func (a *Agent) afterConnect(ctx context.Context) {
	a.mu.Lock()
	last := a.lastFrameAt
	a.mu.Unlock()

	if !last.IsZero() && a.now().Sub(last) <= a.keepAlive {
		return
	}
	if err := a.Revalidate(ctx); err != nil {
		a.logger.Sync().Warn("Revalidation sweep failed", "error", err)
	}
}

// Revalidate sweeps every persisted key: with a Fetcher configured each
// key is refetched and replaced, otherwise the entry is purged so the
// next read misses through to the server.
func (a *Agent) Revalidate(ctx context.Context) error {
	allKeys, err := a.persisted.Keys(ctx)
	if err != nil {
		return err
	}
	a.logger.Sync().Info("Revalidation sweep started", "keys", len(allKeys))

	for _, key := range allKeys {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if a.fetch == nil {
			a.dropKey(ctx, key)
			continue
		}
		value, err := a.fetch(ctx, key)
		if err != nil {
			a.logger.Sync().Warn("Revalidation fetch failed, purging key", "key", key, "error", err)
			a.dropKey(ctx, key)
			continue
		}
		if err := a.Put(ctx, key, value, config.EntityCacheTTL); err != nil {
			a.logger.Sync().Warn("Revalidation store failed", "key", key, "error", err)
		}
	}
	return nil
}

func (a *Agent) dropKey(ctx context.Context, key string) {
	_ = a.memory.Delete(ctx, key)
	_ = a.persisted.Delete(ctx, key)
	a.notify([]keys.Pattern{keys.Pattern(key)})
}

func (a *Agent) consume(ctx context.Context, reader *StreamReader) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go a.watchLiveness(watchCtx, reader)

	for {
		frame, err := reader.Next()
		if err != nil {
			return err
		}
		a.markFrame()

		switch frame.Event {
		case events.EventConnected, events.EventPing:
			// Liveness only.
		case events.EventClose:
			return nil
		case "":
			// Frame with data but no event name; ignore.
		default:
			var event events.ChangeEvent
			if err := json.Unmarshal([]byte(frame.Data), &event); err != nil {
				// Unknown event names are forward-compatible noise.
				a.logger.Sync().Debug("Ignoring undecodable stream frame", "event", frame.Event)
				continue
			}
			if event.EntityType == "" {
				continue
			}
			a.ApplyEvent(ctx, event)
		}
	}
}

// watchLiveness force-closes a stream that has gone silent past the
// stale threshold. A half-open connection delivers no read error, so
// the missing keep-alive pings are the only failure signal; closing the
// reader unblocks consume and hands control back to the reconnect loop.
func (a *Agent) watchLiveness(ctx context.Context, reader *StreamReader) {
	if a.staleAfter <= 0 {
		return
	}
	started := a.now()
	ticker := time.NewTicker(a.staleAfter / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			last := a.lastFrameAt
			a.mu.Unlock()
			if last.Before(started) {
				last = started
			}
			if a.now().Sub(last) > a.staleAfter {
				a.logger.Sync().Warn("Stream silent past stale threshold, forcing reconnect",
					"staleAfter", a.staleAfter.String())
				reader.Close()
				return
			}
		}
	}
}

func (a *Agent) markFrame() {
	a.mu.Lock()
	a.lastFrameAt = a.now()
	a.mu.Unlock()
}

func (a *Agent) setState(state ConnState) {
	a.mu.Lock()
	changed := a.state != state
	a.state = state
	a.mu.Unlock()
	if changed && a.onState != nil {
		a.onState(state)
	}
}

// Close releases the persisted tier.
func (a *Agent) Close() error { return a.persisted.Close() }
