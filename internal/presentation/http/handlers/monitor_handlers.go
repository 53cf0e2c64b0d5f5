package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/observability/monitoring"
)

// MonitorHandlers exposes cache health summaries and active alerts.
type MonitorHandlers struct {
	monitor *monitoring.CacheMonitor
}

// NewMonitorHandlers creates the monitor handler set.
func NewMonitorHandlers(monitor *monitoring.CacheMonitor) *MonitorHandlers {
	return &MonitorHandlers{monitor: monitor}
}

var summaryRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// GetSummary handles GET /api/v1/monitor/summary?range=1h|6h|24h|7d.
func (h *MonitorHandlers) GetSummary(c *gin.Context) {
	rangeParam := c.DefaultQuery("range", "1h")
	window, ok := summaryRanges[rangeParam]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range must be one of 1h, 6h, 24h, 7d"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"range":   rangeParam,
		"summary": h.monitor.Summary(window),
	})
}

// GetAlerts handles GET /api/v1/monitor/alerts.
func (h *MonitorHandlers) GetAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.monitor.ActiveAlerts()})
}
