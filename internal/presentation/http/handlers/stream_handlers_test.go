package handlers

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/messaging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/security"
)

func quietLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToConsole: false,
		OutputToFile:    false,
		JSONFormat:      true,
		DefaultLevel:    slog.LevelError + 4,
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	require.NoError(t, err)
	return logger
}

func newStreamServer(t *testing.T, maxConnections int64) (*StreamHandlers, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handlers := NewStreamHandlers(messaging.NewMemoryBus(8, nil), quietLogger(t))
	handlers.maxConnections = maxConnections

	router := gin.New()
	router.GET("/api/v1/stream", func(c *gin.Context) {
		c.Set("streamClaims", &security.StreamClaims{ClientID: "cl1", Topics: []string{"story-changed"}})
		handlers.GetStream(c)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return handlers, server
}

func TestStreamCapacityHoldsUnderConcurrentConnects(t *testing.T) {
	const maxConnections = 4
	const dialers = 32

	handlers, server := newStreamServer(t, maxConnections)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < dialers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/stream", nil)
			if err != nil {
				t.Error(err)
				return
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				// Read the handshake, then hold the stream open until the
				// test releases everyone.
				reader := bufio.NewReader(resp.Body)
				if _, err := reader.ReadString('\n'); err != nil {
					return
				}
				accepted.Add(1)
				<-ctx.Done()
			case http.StatusServiceUnavailable:
				rejected.Add(1)
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}()
	}

	// Wait for every dialer to settle into accepted or rejected.
	deadline := time.Now().Add(5 * time.Second)
	for accepted.Load()+rejected.Load() < dialers {
		if time.Now().After(deadline) {
			t.Fatalf("dialers stalled: %d accepted, %d rejected", accepted.Load(), rejected.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Held connections occupy their slots, so admissions cannot exceed
	// the cap no matter how the connects interleave.
	assert.Equal(t, int32(maxConnections), accepted.Load())
	assert.Equal(t, int32(dialers-maxConnections), rejected.Load())
	assert.LessOrEqual(t, handlers.ActiveConnections(), int64(maxConnections))

	cancel()
	wg.Wait()

	// Every slot is returned once the clients go away.
	deadline = time.Now().Add(5 * time.Second)
	for handlers.ActiveConnections() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("slots leaked: %d still active", handlers.ActiveConnections())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamRejectionFreesReservedSlot(t *testing.T) {
	handlers, server := newStreamServer(t, 0)

	resp, err := http.Get(server.URL + "/api/v1/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Zero(t, handlers.ActiveConnections())
}
