// Package handlers provides HTTP handlers for the presentation layer.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell-go/internal/domain/events"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/messaging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/security"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// StreamHandlers serves the real-time event stream. Each connection is an
// independent long-lived task holding its own subscribe-only bus session;
// no connection ever blocks on another connection's state.
type StreamHandlers struct {
	bus            messaging.Bus
	logger         *logging.ChanneledLogger
	keepAlive      time.Duration
	maxConnections int64
	active         int64
	shutdown       chan struct{}
}

// NewStreamHandlers creates the stream handler set.
func NewStreamHandlers(bus messaging.Bus, logger *logging.ChanneledLogger) *StreamHandlers {
	return &StreamHandlers{
		bus:            bus,
		logger:         logger,
		keepAlive:      config.KeepAliveInterval,
		maxConnections: int64(config.MaxStreamConnections),
		shutdown:       make(chan struct{}),
	}
}

// Shutdown makes every live connection send a close frame, drop its
// subscription, and return. Called once during graceful shutdown.
func (h *StreamHandlers) Shutdown() {
	close(h.shutdown)
}

// ActiveConnections reports the current live stream count.
func (h *StreamHandlers) ActiveConnections() int64 {
	return atomic.LoadInt64(&h.active)
}

// GetStream handles GET /api/v1/stream. The connection moves through
// connecting (handshake sent), streaming (events forwarded in order with
// periodic pings), and closing (client gone, shutdown, or stream failure).
func (h *StreamHandlers) GetStream(c *gin.Context) {
	claims := streamClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing stream authorization"})
		return
	}
	topics := claims.Topics
	if len(topics) == 0 {
		topics = events.AllTopics()
	}

	// Reserve the slot before any further work; a load-then-add check
	// lets concurrent connects race past the cap.
	if atomic.AddInt64(&h.active, 1) > h.maxConnections {
		atomic.AddInt64(&h.active, -1)
		h.logger.Gateway().Warn("Stream connection refused, at capacity",
			"clientId", claims.ClientID, "max", h.maxConnections)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream capacity reached"})
		return
	}
	defer atomic.AddInt64(&h.active, -1)

	clientCtx := c.Request.Context()
	sub, err := h.bus.Subscribe(clientCtx, topics...)
	if err != nil {
		h.logger.Gateway().Error("Stream subscription failed",
			"clientId", claims.ClientID, "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "subscription unavailable"})
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	start := time.Now()
	if err := writeFrame(c, events.EventConnected,
		fmt.Sprintf(`{"serverTime":%q}`, time.Now().UTC().Format(time.RFC3339))); err != nil {
		return
	}

	h.logger.Gateway().Info("Stream connected",
		"clientId", claims.ClientID, "topics", len(topics),
		"activeConnections", atomic.LoadInt64(&h.active))

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-clientCtx.Done():
			h.logger.Gateway().Info("Stream client disconnected",
				"clientId", claims.ClientID, "connectionDuration", time.Since(start).String())
			return

		case <-h.shutdown:
			_ = writeFrame(c, events.EventClose, "{}")
			h.logger.Gateway().Info("Stream closed for shutdown", "clientId", claims.ClientID)
			return

		case envelope, ok := <-sub.Events():
			if !ok {
				h.logger.Gateway().Warn("Stream subscription ended upstream",
					"clientId", claims.ClientID)
				return
			}
			payload, err := json.Marshal(envelope.Event)
			if err != nil {
				h.logger.Gateway().Error("Failed to serialize change event",
					"eventId", envelope.Event.ID, "error", err.Error())
				continue
			}
			if err := writeFrame(c, envelope.Topic, string(payload)); err != nil {
				h.logger.Gateway().Warn("Stream write failed",
					"clientId", claims.ClientID, "error", err.Error())
				return
			}

		case <-ticker.C:
			if err := writeFrame(c, events.EventPing, "{}"); err != nil {
				h.logger.Gateway().Info("Stream keep-alive failed, dropping connection",
					"clientId", claims.ClientID)
				return
			}
		}
	}
}

// writeFrame emits one event-stream frame and flushes it.
func writeFrame(c *gin.Context, event, data string) error {
	if _, err := c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// streamClaims pulls the validated claims the auth middleware installed.
func streamClaims(c *gin.Context) *security.StreamClaims {
	value, exists := c.Get("streamClaims")
	if !exists {
		return nil
	}
	claims, ok := value.(*security.StreamClaims)
	if !ok {
		return nil
	}
	return claims
}
