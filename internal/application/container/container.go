// Package container provides dependency injection for all singleton
// services. Every cross-cutting handle is constructed exactly once here
// and passed by reference; nothing reaches for ambient global state.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/cleanup"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/coordinator"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/manager"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/stores"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/caching/warming"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/messaging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/notifications"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/monitoring"
	"github.com/inkwellhq/inkwell-go/internal/presentation/http/handlers"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// Container holds the singleton infrastructure and handler dependencies.
type Container struct {
	Logger *logging.ChanneledLogger

	// Cache tiers
	Memory  *stores.MemoryStore
	Durable *stores.RedisStore

	// Redis clients, split by role
	redisPublisher  *redis.Client
	redisSubscriber *redis.Client

	// Core engine
	Bus          messaging.Bus
	Coordinator  *coordinator.Coordinator
	CacheManager *manager.Manager
	Monitor      *monitoring.CacheMonitor
	Janitor      *cleanup.Janitor

	// SysOp dashboard
	Broadcaster *messaging.SysOpBroadcaster

	// Handlers that outlive a single request
	StreamHandlers *handlers.StreamHandlers

	// External collaborators from the domain layer. Optional; set before
	// routes are built. Nil leaves the mutation endpoint notification-only
	// and the cache endpoint inspection-only.
	ContentWriter handlers.ContentWriter
	ContentReader handlers.ContentReader
}

// NewContainer creates and wires all singletons. The Redis connection is
// verified up front; a cache engine that cannot reach its durable tier
// should fail loudly at startup, not at first request.
func NewContainer(logger *logging.ChanneledLogger) (*Container, error) {
	redisPublisher := newRedisClient()
	redisSubscriber := newRedisClient()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisPublisher.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("durable cache unreachable at %s: %w", config.RedisAddr, err)
	}

	memory := stores.NewMemoryStore()
	durable := stores.NewRedisStore(redisPublisher)

	monitor := monitoring.NewCacheMonitor(monitoring.DefaultMonitorConfig())
	bus := messaging.NewRedisBus(redisPublisher, redisSubscriber, logger)
	coord := coordinator.New(memory, durable, bus, monitor, logger)
	cache := manager.NewManager(memory, durable, monitor, logger)
	janitor := cleanup.NewJanitor(memory, monitor, logger)

	broadcaster := messaging.NewSysOpBroadcaster(monitor, logger)
	logging.SetHubSink(broadcaster)
	monitor.AddAlertCallback(func(alert monitoring.Alert) {
		logger.Alert().Warn("Cache health alert raised",
			"severity", string(alert.Severity), "tier", alert.Tier, "message", alert.Message)
	})

	if mailer, err := notifications.NewMailer(); err != nil {
		logger.System().Warn("Alert mail disabled", "reason", err.Error())
	} else {
		notifier := notifications.NewAlertNotifier(mailer, logger)
		monitor.AddAlertCallback(notifier.Notify)
	}

	return &Container{
		Logger:          logger,
		Memory:          memory,
		Durable:         durable,
		redisPublisher:  redisPublisher,
		redisSubscriber: redisSubscriber,
		Bus:             bus,
		Coordinator:     coord,
		CacheManager:    cache,
		Monitor:         monitor,
		Janitor:         janitor,
		Broadcaster:     broadcaster,
		StreamHandlers:  handlers.NewStreamHandlers(bus, logger),
	}, nil
}

// WarmCache pre-loads the hot set supplied by the domain layer into both
// cache tiers. Best effort; a failed warm never blocks startup.
func (c *Container) WarmCache(ctx context.Context, source warming.Source) error {
	return warming.NewWarmer(c.CacheManager, source, c.Logger).Warm(ctx)
}

func newRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
}

// Close releases the container's long-lived connections.
func (c *Container) Close() error {
	c.Monitor.Stop()
	if err := c.redisSubscriber.Close(); err != nil {
		return err
	}
	return c.redisPublisher.Close()
}
