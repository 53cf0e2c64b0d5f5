package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() *MonitorConfig {
	return &MonitorConfig{
		BucketSize:                5 * time.Minute,
		Retention:                 24 * time.Hour,
		EvalInterval:              time.Minute,
		HitRateWarningFloor:       0.70,
		HitRateCriticalFloor:      0.40,
		InvalidationBaselineRatio: 8.0,
		MinBaselineHistory:        time.Hour,
		EnableAlerts:              true,
	}
}

func newTestMonitor(t *testing.T) (*CacheMonitor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewCacheMonitorWithClock(testConfig(), clock.Now), clock
}

func record(m *CacheMonitor, tier string, hits, misses int) {
	for i := 0; i < hits; i++ {
		m.RecordHit(tier, "story:st1", 2*time.Millisecond)
	}
	for i := 0; i < misses; i++ {
		m.RecordMiss(tier, "story:st1", 20*time.Millisecond)
	}
}

func TestSummaryAggregates(t *testing.T) {
	m, _ := newTestMonitor(t)

	record(m, "memory", 8, 2)
	record(m, "durable", 3, 1)
	m.RecordInvalidate("durable", "story:st1")

	s := m.Summary(time.Hour)
	assert.Equal(t, int64(14), s.Requests)
	assert.Equal(t, int64(11), s.Hits)
	assert.InDelta(t, 11.0/14.0, s.HitRate, 1e-9)
	assert.Equal(t, int64(1), s.Invalidations)

	mem := s.PerTier["memory"]
	assert.Equal(t, int64(10), mem.Requests)
	assert.InDelta(t, 0.8, mem.HitRate, 1e-9)
}

func TestSummaryWindowExcludesOldBuckets(t *testing.T) {
	m, clock := newTestMonitor(t)

	record(m, "memory", 0, 10)
	clock.Advance(2 * time.Hour)
	record(m, "memory", 10, 0)

	s := m.Summary(time.Hour)
	assert.Equal(t, int64(10), s.Requests)
	assert.InDelta(t, 1.0, s.HitRate, 1e-9)
}

func TestRetentionPrunesBuckets(t *testing.T) {
	m, clock := newTestMonitor(t)

	record(m, "memory", 5, 0)
	clock.Advance(25 * time.Hour)
	record(m, "memory", 1, 0)

	s := m.Summary(0) // full retention
	assert.Equal(t, int64(1), s.Requests)
}

func TestHitRateCollapseRaisesCriticalWithinOneCycle(t *testing.T) {
	m, clock := newTestMonitor(t)

	// A healthy window, then a collapse to 25% in the next window.
	record(m, "memory", 85, 15)
	m.Evaluate()
	assert.Empty(t, m.ActiveAlerts())

	clock.Advance(5 * time.Minute)
	record(m, "memory", 25, 75)
	m.Evaluate()

	alerts := m.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCritical, alerts[0].Severity)
	assert.Equal(t, AlertHitRate, alerts[0].Category)
	assert.Equal(t, "memory", alerts[0].Tier)
	assert.InDelta(t, 0.25, alerts[0].CurrentValue, 1e-9)

	// Alert identifiers follow the same ulid scheme as the rest of the
	// system.
	_, err := ulid.Parse(alerts[0].ID)
	assert.NoError(t, err)
}

func TestHitRateWarningBetweenFloors(t *testing.T) {
	m, _ := newTestMonitor(t)

	record(m, "durable", 60, 40)
	m.Evaluate()

	alerts := m.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertWarning, alerts[0].Severity)
}

func TestAlertClearsOnRecovery(t *testing.T) {
	m, clock := newTestMonitor(t)

	record(m, "memory", 10, 90)
	m.Evaluate()
	require.Len(t, m.ActiveAlerts(), 1)

	clock.Advance(5 * time.Minute)
	record(m, "memory", 95, 5)
	m.Evaluate()
	assert.Empty(t, m.ActiveAlerts())
}

func TestAlertCallbackFiresOncePerRaise(t *testing.T) {
	m, _ := newTestMonitor(t)

	var mu sync.Mutex
	var fired []Alert
	done := make(chan struct{}, 4)
	m.AddAlertCallback(func(a Alert) {
		mu.Lock()
		fired = append(fired, a)
		mu.Unlock()
		done <- struct{}{}
	})

	record(m, "memory", 10, 90)
	m.Evaluate()
	m.Evaluate() // still critical, must not re-fire

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("alert callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fired, 1)
	assert.Equal(t, AlertCritical, fired[0].Severity)
}

func TestInvalidationStormAgainstBaseline(t *testing.T) {
	m, clock := newTestMonitor(t)

	// Build over an hour of quiet history, roughly 2 invalidations per
	// bucket, so the baseline judgment is armed.
	for i := 0; i < 13; i++ {
		m.RecordInvalidate("durable", "story:st1")
		m.RecordInvalidate("durable", "chapter-list:st1:*")
		clock.Advance(5 * time.Minute)
	}

	m.Evaluate()
	assert.Empty(t, m.ActiveAlerts(), "steady rate should not alert")

	// A burst far above 8x the baseline in the current window.
	for i := 0; i < 40; i++ {
		m.RecordInvalidate("durable", "post-feed:*")
	}
	m.Evaluate()

	alerts := m.ActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertInvalidation, alerts[0].Category)
	assert.Equal(t, AlertCritical, alerts[0].Severity)
}

func TestInvalidationJudgmentNeedsHistory(t *testing.T) {
	m, _ := newTestMonitor(t)

	// Minutes after startup, even a heavy burst is not judged.
	for i := 0; i < 100; i++ {
		m.RecordInvalidate("durable", "post-feed:*")
	}
	m.Evaluate()
	assert.Empty(t, m.ActiveAlerts())
}
