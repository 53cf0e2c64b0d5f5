package notifications

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/logging"
	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/monitoring"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []monitoring.Alert
}

func (m *recordingMailer) SendAlertEmail(alert monitoring.Alert) error {
	m.mu.Lock()
	m.sent = append(m.sent, alert)
	m.mu.Unlock()
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func quietLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		JSONFormat:    true,
		DefaultLevel:  slog.LevelError + 4,
		ChannelLevels: make(map[logging.Channel]slog.Level),
	})
	require.NoError(t, err)
	return logger
}

func testAlert(severity monitoring.AlertSeverity) monitoring.Alert {
	return monitoring.Alert{
		ID:        "cache_alert_1",
		Timestamp: time.Now(),
		Severity:  severity,
		Category:  monitoring.AlertHitRate,
		Tier:      "durable",
		Message:   "Hit rate below floor on durable tier: 55.0%",
	}
}

func TestNotifyCooldownSuppressesRepeats(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewAlertNotifier(mailer, quietLogger(t))

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	n.Notify(testAlert(monitoring.AlertWarning))
	n.Notify(testAlert(monitoring.AlertWarning))
	assert.Equal(t, 1, mailer.count())

	clock = clock.Add(n.cooldown + time.Minute)
	n.Notify(testAlert(monitoring.AlertCritical))
	assert.Equal(t, 2, mailer.count())
}

func TestNotifySkipsInfo(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewAlertNotifier(mailer, quietLogger(t))

	n.Notify(testAlert(monitoring.AlertInfo))
	assert.Equal(t, 0, mailer.count())
}

func TestNotifyDistinctCategoriesNotSuppressed(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewAlertNotifier(mailer, quietLogger(t))

	hit := testAlert(monitoring.AlertCritical)
	storm := testAlert(monitoring.AlertCritical)
	storm.Category = monitoring.AlertInvalidation

	n.Notify(hit)
	n.Notify(storm)
	assert.Equal(t, 2, mailer.count())
}
