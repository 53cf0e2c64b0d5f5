// Package logging provides the custom io.Writer for dashboard log streaming.
package logging

import (
	"encoding/json"
	"log/slog"
	"time"
)

// LogEntry represents a single log line as sent to dashboard clients.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// LogSink receives parsed log entries. The sysop hub implements it; tests
// substitute their own.
type LogSink interface {
	SubmitLog(entry LogEntry)
}

var (
	hubSink LogSink
	noop    = noopSink{}
)

type noopSink struct{}

func (noopSink) SubmitLog(LogEntry) {}

// SetHubSink installs the dashboard hub as the log stream destination.
// Called once at startup before any channel logger writes.
func SetHubSink(sink LogSink) { hubSink = sink }

// HubWriter is an io.Writer that intercepts JSON log lines and forwards them
// to the dashboard hub without blocking the logging call.
type HubWriter struct{}

// NewHubWriter creates a writer that feeds the installed hub sink.
func NewHubWriter() *HubWriter { return &HubWriter{} }

func (w *HubWriter) sink() LogSink {
	if hubSink == nil {
		return noop
	}
	return hubSink
}

// Write satisfies io.Writer. It receives slog JSON output, extracts the
// fields the dashboard needs, and submits asynchronously.
func (w *HubWriter) Write(p []byte) (n int, err error) {
	var rawLog map[string]any
	if err := json.Unmarshal(p, &rawLog); err != nil {
		go w.sink().SubmitLog(LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     slog.LevelError.String(),
			Channel:   string(ChannelSystem),
			Message:   "hub_writer: failed to parse incoming log message",
		})
		return len(p), nil
	}

	entry := LogEntry{
		Timestamp: getString(rawLog, "time"),
		Level:     getString(rawLog, "level"),
		Channel:   getString(rawLog, "channel"),
		Message:   getString(rawLog, "msg"),
	}

	go w.sink().SubmitLog(entry)
	return len(p), nil
}

func getString(data map[string]any, key string) string {
	if val, ok := data[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return ""
}
