package core

import (
	"log/slog"
	"time"
)

// LogMetrics is a MetricsCollector that emits request telemetry as structured
// debug logs. The deployment has no metrics backend; the log stream is the
// observability surface.
type LogMetrics struct {
	logger *slog.Logger
}

// NewLogMetrics creates a LogMetrics collector.
func NewLogMetrics(logger *slog.Logger) *LogMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMetrics{logger: logger}
}

// RecordRequest logs one request's method, endpoint, status, and latency.
func (m *LogMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.String("status", status),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)
}
