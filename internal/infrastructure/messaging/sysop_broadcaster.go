package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
)

// SysOpClient is a single connected sysop dashboard socket.
type SysOpClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// HealthSource supplies the snapshot the dashboard renders on each tick.
// The cache monitor implements it.
type HealthSource interface {
	DashboardSnapshot() any
}

// SysOpBroadcaster manages connected dashboard clients, pushing cache
// health snapshots on a timer and log lines as they happen. It implements
// logging.LogSink so the channel loggers can stream into it.
type SysOpBroadcaster struct {
	clients    map[*SysOpClient]bool
	register   chan *SysOpClient
	unregister chan *SysOpClient
	health     HealthSource
	logger     *logging.ChanneledLogger
	mu         sync.RWMutex
}

// NewSysOpBroadcaster creates an empty broadcaster. Run must be started
// before clients attach.
func NewSysOpBroadcaster(health HealthSource, logger *logging.ChanneledLogger) *SysOpBroadcaster {
	return &SysOpBroadcaster{
		clients:    make(map[*SysOpClient]bool),
		register:   make(chan *SysOpClient),
		unregister: make(chan *SysOpClient),
		health:     health,
		logger:     logger,
	}
}

type sysopFrame struct {
	Type   string            `json:"type"`
	Health any               `json:"health,omitempty"`
	Log    *logging.LogEntry `json:"log,omitempty"`
}

// Run is the broadcaster's main loop. Start it as a goroutine.
func (b *SysOpBroadcaster) Run() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
			b.logger.System().Info("SysOp dashboard client connected", "clients", b.clientCount())

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mu.Unlock()
			b.logger.System().Info("SysOp dashboard client disconnected", "clients", b.clientCount())

		case <-ticker.C:
			b.broadcastHealth()
		}
	}
}

// Register queues a client for registration.
func (b *SysOpBroadcaster) Register(client *SysOpClient) { b.register <- client }

// Unregister queues a client for unregistration.
func (b *SysOpBroadcaster) Unregister(client *SysOpClient) { b.unregister <- client }

// SubmitLog satisfies logging.LogSink. Log lines fan out to every
// connected dashboard without blocking the logging path.
func (b *SysOpBroadcaster) SubmitLog(entry logging.LogEntry) {
	frame, err := json.Marshal(sysopFrame{Type: "log", Log: &entry})
	if err != nil {
		return
	}
	b.send(frame)
}

func (b *SysOpBroadcaster) broadcastHealth() {
	if b.health == nil {
		return
	}
	if b.clientCount() == 0 {
		return
	}

	frame, err := json.Marshal(sysopFrame{Type: "health", Health: b.health.DashboardSnapshot()})
	if err != nil {
		b.logger.System().Error("Failed to marshal health snapshot", "error", err.Error())
		return
	}
	b.send(frame)
}

func (b *SysOpBroadcaster) send(frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client.Send <- frame:
		default:
			// A stalled dashboard socket never backs up the hub.
		}
	}
}

func (b *SysOpBroadcaster) clientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
