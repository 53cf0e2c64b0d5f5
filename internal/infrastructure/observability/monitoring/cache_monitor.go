// Package monitoring provides cache performance monitoring and health
// tracking across Inkwell's cache tiers. The monitor is purely
// observational: it records, summarizes, and alerts, but never takes
// corrective action itself.
package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// AlertSeverity represents the severity of an alert
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// AlertCategory represents the type of cache alert
type AlertCategory string

const (
	AlertHitRate      AlertCategory = "hit_rate"
	AlertInvalidation AlertCategory = "invalidation_rate"
)

// Alert is one active threshold violation. Alerts carry a severity and a
// human-readable cause for dashboards and operator notification.
type Alert struct {
	ID           string        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Severity     AlertSeverity `json:"severity"`
	Category     AlertCategory `json:"category"`
	Tier         string        `json:"tier"`
	Message      string        `json:"message"`
	CurrentValue float64       `json:"currentValue"`
	Threshold    float64       `json:"threshold"`
}

// AlertCallback is called once per newly raised alert.
type AlertCallback func(alert Alert)

// Summary is the aggregate view over a requested window.
type Summary struct {
	Window           time.Duration          `json:"window"`
	Requests         int64                  `json:"requests"`
	Hits             int64                  `json:"hits"`
	Misses           int64                  `json:"misses"`
	HitRate          float64                `json:"hitRate"`
	AvgLatency       time.Duration          `json:"avgLatency"`
	Invalidations    int64                  `json:"invalidations"`
	InvalidationRate float64                `json:"invalidationRate"` // per minute
	PerTier          map[string]TierSummary `json:"perTier"`
}

// TierSummary is the same aggregate restricted to one cache tier.
type TierSummary struct {
	Requests         int64         `json:"requests"`
	HitRate          float64       `json:"hitRate"`
	AvgLatency       time.Duration `json:"avgLatency"`
	Invalidations    int64         `json:"invalidations"`
	InvalidationRate float64       `json:"invalidationRate"`
}

// MonitorConfig contains configuration for the cache monitor.
type MonitorConfig struct {
	BucketSize   time.Duration `json:"bucketSize"`
	Retention    time.Duration `json:"retention"`
	EvalInterval time.Duration `json:"evalInterval"`

	// Hit-rate floors over the most recent bucket window.
	HitRateWarningFloor  float64 `json:"hitRateWarningFloor"`
	HitRateCriticalFloor float64 `json:"hitRateCriticalFloor"`

	// Invalidation storms are judged against the historical per-bucket
	// mean; no judgment is made before MinBaselineHistory has accrued.
	InvalidationBaselineRatio float64       `json:"invalidationBaselineRatio"`
	MinBaselineHistory        time.Duration `json:"minBaselineHistory"`

	EnableAlerts   bool            `json:"enableAlerts"`
	AlertCallbacks []AlertCallback `json:"-"`
}

// DefaultMonitorConfig returns the configured defaults.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		BucketSize:                config.MonitorBucketSize,
		Retention:                 config.MonitorRetention,
		EvalInterval:              config.MonitorEvalInterval,
		HitRateWarningFloor:       config.HitRateWarningFloor,
		HitRateCriticalFloor:      config.HitRateCriticalFloor,
		InvalidationBaselineRatio: config.InvalidationBaselineRatio,
		MinBaselineHistory:        time.Hour,
		EnableAlerts:              true,
	}
}

// bucket accumulates counters for one fixed time slice of one tier.
type bucket struct {
	start         time.Time
	hits          int64
	misses        int64
	invalidations int64
	latencySum    time.Duration
}

// tierSeries is the rolling bucket history for one cache tier, newest last.
type tierSeries struct {
	buckets []*bucket
}

// CacheMonitor tracks hits, misses, and invalidations per tier in rolling
// fixed-size buckets, evaluates threshold rules on a timer, and fans raised
// alerts out to registered callbacks.
type CacheMonitor struct {
	tiers        map[string]*tierSeries
	activeAlerts map[string]Alert
	config       *MonitorConfig
	now          func() time.Time
	mu           sync.RWMutex
	started      time.Time
	stop         chan struct{}
	stopOnce     sync.Once
}

// NewCacheMonitor creates a monitor with the given configuration.
func NewCacheMonitor(cfg *MonitorConfig) *CacheMonitor {
	return NewCacheMonitorWithClock(cfg, time.Now)
}

// NewCacheMonitorWithClock injects the clock so bucket placement is
// deterministic under test.
func NewCacheMonitorWithClock(cfg *MonitorConfig, now func() time.Time) *CacheMonitor {
	if cfg == nil {
		cfg = DefaultMonitorConfig()
	}
	return &CacheMonitor{
		tiers:        make(map[string]*tierSeries),
		activeAlerts: make(map[string]Alert),
		config:       cfg,
		now:          now,
		started:      now(),
		stop:         make(chan struct{}),
	}
}

// RecordHit records a cache hit with its observed latency.
func (m *CacheMonitor) RecordHit(tier, key string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.currentBucket(tier)
	b.hits++
	b.latencySum += latency
}

// RecordMiss records a cache miss with its observed latency.
func (m *CacheMonitor) RecordMiss(tier, key string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.currentBucket(tier)
	b.misses++
	b.latencySum += latency
}

// RecordInvalidate records one purged key pattern.
func (m *CacheMonitor) RecordInvalidate(tier, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentBucket(tier).invalidations++
}

// currentBucket returns the bucket covering now for the tier, creating it
// and pruning expired history as a side effect. Callers hold the lock.
func (m *CacheMonitor) currentBucket(tier string) *bucket {
	series, ok := m.tiers[tier]
	if !ok {
		series = &tierSeries{}
		m.tiers[tier] = series
	}

	now := m.now()
	start := now.Truncate(m.config.BucketSize)

	if n := len(series.buckets); n > 0 && series.buckets[n-1].start.Equal(start) {
		return series.buckets[n-1]
	}

	b := &bucket{start: start}
	series.buckets = append(series.buckets, b)

	cutoff := now.Add(-m.config.Retention)
	firstLive := 0
	for firstLive < len(series.buckets) && series.buckets[firstLive].start.Before(cutoff) {
		firstLive++
	}
	series.buckets = series.buckets[firstLive:]

	return b
}

// Summary aggregates all tiers over the requested window.
func (m *CacheMonitor) Summary(window time.Duration) Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if window <= 0 || window > m.config.Retention {
		window = m.config.Retention
	}
	cutoff := m.now().Add(-window)

	out := Summary{Window: window, PerTier: make(map[string]TierSummary)}
	var latencySum time.Duration

	for tier, series := range m.tiers {
		var ts TierSummary
		var tierHits int64
		var tierLatency time.Duration
		for _, b := range series.buckets {
			if b.start.Before(cutoff) {
				continue
			}
			tierHits += b.hits
			ts.Requests += b.hits + b.misses
			ts.Invalidations += b.invalidations
			tierLatency += b.latencySum
			out.Misses += b.misses
		}
		if ts.Requests > 0 {
			ts.HitRate = float64(tierHits) / float64(ts.Requests)
			ts.AvgLatency = tierLatency / time.Duration(ts.Requests)
		}
		ts.InvalidationRate = perMinute(ts.Invalidations, window)
		out.PerTier[tier] = ts
		out.Hits += tierHits
		out.Invalidations += ts.Invalidations
		latencySum += tierLatency
	}

	out.Requests = out.Hits + out.Misses
	if out.Requests > 0 {
		out.HitRate = float64(out.Hits) / float64(out.Requests)
		out.AvgLatency = latencySum / time.Duration(out.Requests)
	}
	out.InvalidationRate = perMinute(out.Invalidations, window)
	return out
}

func perMinute(count int64, window time.Duration) float64 {
	minutes := window.Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(count) / minutes
}

// ActiveAlerts returns the currently firing alerts, newest first not
// guaranteed; order is unspecified.
func (m *CacheMonitor) ActiveAlerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]Alert, 0, len(m.activeAlerts))
	for _, alert := range m.activeAlerts {
		alerts = append(alerts, alert)
	}
	return alerts
}

// AddAlertCallback registers a callback for newly raised alerts.
func (m *CacheMonitor) AddAlertCallback(callback AlertCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.AlertCallbacks = append(m.config.AlertCallbacks, callback)
}

// Start begins the background evaluation loop.
func (m *CacheMonitor) Start() {
	go m.evalLoop()
}

// Stop halts the evaluation loop. Recording remains safe after Stop.
func (m *CacheMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *CacheMonitor) evalLoop() {
	ticker := time.NewTicker(m.config.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Evaluate()
		}
	}
}

// Evaluate runs one evaluation cycle over the most recent bucket window,
// raising and clearing alerts as thresholds are crossed. The eval loop
// calls it on a timer; tests call it directly.
func (m *CacheMonitor) Evaluate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.EnableAlerts {
		return
	}

	// Judgments run over the current bucket so a sudden collapse is not
	// diluted by a healthy preceding window.
	now := m.now()
	recentStart := now.Truncate(m.config.BucketSize)

	for tier, series := range m.tiers {
		m.evaluateHitRate(tier, series, recentStart, now)
		m.evaluateInvalidationRate(tier, series, recentStart, now)
	}
}

func (m *CacheMonitor) evaluateHitRate(tier string, series *tierSeries, recentStart, now time.Time) {
	var hits, requests int64
	for _, b := range series.buckets {
		if b.start.Before(recentStart) {
			continue
		}
		hits += b.hits
		requests += b.hits + b.misses
	}

	alertKey := tier + ":" + string(AlertHitRate)
	if requests == 0 {
		delete(m.activeAlerts, alertKey)
		return
	}

	hitRate := float64(hits) / float64(requests)
	switch {
	case hitRate < m.config.HitRateCriticalFloor:
		m.raise(alertKey, Alert{
			Severity:     AlertCritical,
			Category:     AlertHitRate,
			Tier:         tier,
			Message:      fmt.Sprintf("Hit rate critically low on %s tier: %.1f%%", tier, hitRate*100),
			CurrentValue: hitRate,
			Threshold:    m.config.HitRateCriticalFloor,
		}, now)
	case hitRate < m.config.HitRateWarningFloor:
		m.raise(alertKey, Alert{
			Severity:     AlertWarning,
			Category:     AlertHitRate,
			Tier:         tier,
			Message:      fmt.Sprintf("Hit rate below floor on %s tier: %.1f%%", tier, hitRate*100),
			CurrentValue: hitRate,
			Threshold:    m.config.HitRateWarningFloor,
		}, now)
	default:
		delete(m.activeAlerts, alertKey)
	}
}

func (m *CacheMonitor) evaluateInvalidationRate(tier string, series *tierSeries, recentStart, now time.Time) {
	alertKey := tier + ":" + string(AlertInvalidation)

	if now.Sub(m.started) < m.config.MinBaselineHistory {
		return
	}

	var recent int64
	var historical int64
	var historicalBuckets int64
	for _, b := range series.buckets {
		if b.start.Before(recentStart) {
			historical += b.invalidations
			historicalBuckets++
		} else {
			recent += b.invalidations
		}
	}

	if historicalBuckets == 0 {
		return
	}
	baseline := float64(historical) / float64(historicalBuckets)
	if baseline <= 0 {
		// No history of invalidations; a first burst is not a storm.
		delete(m.activeAlerts, alertKey)
		return
	}

	if float64(recent) > baseline*m.config.InvalidationBaselineRatio {
		m.raise(alertKey, Alert{
			Severity:     AlertCritical,
			Category:     AlertInvalidation,
			Tier:         tier,
			Message:      fmt.Sprintf("Invalidation storm on %s tier: %d in current window vs %.1f baseline", tier, recent, baseline),
			CurrentValue: float64(recent),
			Threshold:    baseline * m.config.InvalidationBaselineRatio,
		}, now)
	} else {
		delete(m.activeAlerts, alertKey)
	}
}

// raise installs or refreshes an alert. Callbacks fire only on the first
// raise for a given key, not on every evaluation while it stays active.
// Callers hold the lock.
func (m *CacheMonitor) raise(alertKey string, alert Alert, now time.Time) {
	if existing, ok := m.activeAlerts[alertKey]; ok && existing.Severity == alert.Severity {
		return
	}

	alert.ID = ulid.Make().String()
	alert.Timestamp = now
	m.activeAlerts[alertKey] = alert

	for _, callback := range m.config.AlertCallbacks {
		go callback(alert)
	}
}

// DashboardSnapshot feeds the sysop hub's periodic health frame.
func (m *CacheMonitor) DashboardSnapshot() any {
	summary := m.Summary(m.config.BucketSize)

	m.mu.RLock()
	uptime := m.now().Sub(m.started)
	m.mu.RUnlock()

	return map[string]any{
		"summary":       summary,
		"activeAlerts":  m.ActiveAlerts(),
		"monitorUptime": uptime.String(),
	}
}
