// Package config provides centralized default values for Inkwell
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%f (default: %f)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port              string
	ServerReadTimeout time.Duration
	ServerIdleTimeout time.Duration

	// Redis Configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Stream (SSE) Configuration
	KeepAliveInterval    time.Duration
	StreamChannelBuffer  int
	MaxStreamConnections int
	StreamTokenSecret    string

	// Durable Cache TTLs
	EntityCacheTTL time.Duration
	ListCacheTTL   time.Duration
	MemoryTierTTL  time.Duration

	// Publish Retry
	PublishRetryAttempts int
	PublishRetryBase     time.Duration
	PublishTimeout       time.Duration

	// Client Reconnect
	ReconnectBase        time.Duration
	ReconnectCap         time.Duration
	ReconnectMaxAttempts int

	// Optimistic Mutations
	MutationTimeout time.Duration

	// Health Monitor
	MonitorBucketSize         time.Duration
	MonitorRetention          time.Duration
	MonitorEvalInterval       time.Duration
	HitRateWarningFloor       float64
	HitRateCriticalFloor      float64
	InvalidationBaselineRatio float64

	// Janitor
	JanitorInterval time.Duration

	// Alert Notifications
	AlertMailCooldown time.Duration
	AlertMailFrom     string
	AlertMailTo       string

	// SysOp Dashboard
	SysopPasswordHash string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Redis
	RedisAddr = getEnvString("INKWELL_REDIS_ADDR", "127.0.0.1:6379")
	RedisPassword = getEnvString("INKWELL_REDIS_PASSWORD", "")
	RedisDB = getEnvInt("INKWELL_REDIS_DB", 0)

	// Stream
	KeepAliveInterval = getEnvDuration("INKWELL_KEEPALIVE_INTERVAL", 30*time.Second)
	StreamChannelBuffer = getEnvInt("INKWELL_STREAM_CHANNEL_BUFFER", 64)
	MaxStreamConnections = getEnvInt("INKWELL_MAX_STREAM_CONNECTIONS", 10000)
	StreamTokenSecret = getEnvString("INKWELL_STREAM_TOKEN_SECRET", "")

	// TTLs
	EntityCacheTTL = getEnvDuration("INKWELL_ENTITY_CACHE_TTL", 15*time.Minute)
	ListCacheTTL = getEnvDuration("INKWELL_LIST_CACHE_TTL", 5*time.Minute)
	MemoryTierTTL = getEnvDuration("INKWELL_MEMORY_TIER_TTL", 60*time.Second)

	// Publish Retry
	PublishRetryAttempts = getEnvInt("INKWELL_PUBLISH_RETRY_ATTEMPTS", 3)
	PublishRetryBase = getEnvDuration("INKWELL_PUBLISH_RETRY_BASE", 250*time.Millisecond)
	PublishTimeout = getEnvDuration("INKWELL_PUBLISH_TIMEOUT", 2*time.Second)

	// Client Reconnect
	ReconnectBase = getEnvDuration("INKWELL_RECONNECT_BASE", time.Second)
	ReconnectCap = getEnvDuration("INKWELL_RECONNECT_CAP", 30*time.Second)
	ReconnectMaxAttempts = getEnvInt("INKWELL_RECONNECT_MAX_ATTEMPTS", 10)

	// Optimistic Mutations
	MutationTimeout = getEnvDuration("INKWELL_MUTATION_TIMEOUT", 10*time.Second)

	// Health Monitor
	MonitorBucketSize = getEnvDuration("INKWELL_MONITOR_BUCKET_SIZE", 5*time.Minute)
	MonitorRetention = getEnvDuration("INKWELL_MONITOR_RETENTION", 24*time.Hour)
	MonitorEvalInterval = getEnvDuration("INKWELL_MONITOR_EVAL_INTERVAL", time.Minute)
	HitRateWarningFloor = getEnvFloat("INKWELL_HIT_RATE_WARNING_FLOOR", 0.70)
	HitRateCriticalFloor = getEnvFloat("INKWELL_HIT_RATE_CRITICAL_FLOOR", 0.40)
	InvalidationBaselineRatio = getEnvFloat("INKWELL_INVALIDATION_BASELINE_RATIO", 8.0)

	// Janitor
	JanitorInterval = getEnvDuration("INKWELL_JANITOR_INTERVAL", 60*time.Second)

	// Alerts
	AlertMailCooldown = getEnvDuration("INKWELL_ALERT_MAIL_COOLDOWN", 30*time.Minute)
	AlertMailFrom = getEnvString("INKWELL_ALERT_MAIL_FROM", "alerts@inkwell.press")
	AlertMailTo = getEnvString("INKWELL_ALERT_MAIL_TO", "")

	// SysOp
	SysopPasswordHash = getEnvString("INKWELL_SYSOP_PASSWORD_HASH", "")
}
