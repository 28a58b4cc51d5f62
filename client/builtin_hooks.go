package client

import (
	"context"
	"fmt"
	"sync/atomic"
)

// ============================================================================
// LoggingHook - Logs request execution details
// ============================================================================

// LoggingHook logs request execution with configurable detail levels.
type LoggingHook struct {
	logger       Logger
	logCommands  bool // Log SQL text
	logResults   bool // Log results
	logDurations bool // Log execution times
}

// NewLoggingHook creates a new logging hook with the given logger.
func NewLoggingHook(logger Logger, logCommands, logResults, logDurations bool) *LoggingHook {
	return &LoggingHook{
		logger:       logger,
		logCommands:  logCommands,
		logResults:   logResults,
		logDurations: logDurations,
	}
}

func (h *LoggingHook) Name() string {
	return "logging"
}

func (h *LoggingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	if h.logCommands {
		h.logger.Debug("executing request",
			String("op", hookCtx.Op),
			String("command", hookCtx.Command),
			String("type", hookCtx.CommandType),
			String("trace_id", hookCtx.TraceID))
	}
	return nil
}

func (h *LoggingHook) After(ctx context.Context, hookCtx *HookContext) error {
	fields := []Field{
		String("op", hookCtx.Op),
		String("trace_id", hookCtx.TraceID),
	}

	if h.logDurations {
		fields = append(fields, Duration("duration", hookCtx.Duration))
	}

	if hookCtx.Error != nil {
		fields = append(fields, Error("error", hookCtx.Error))
		h.logger.Error("request failed", fields...)
	} else {
		if h.logResults && hookCtx.Result != nil {
			fields = append(fields, String("result", fmt.Sprintf("%v", hookCtx.Result)))
		}
		h.logger.Debug("request completed", fields...)
	}

	return nil
}

// ============================================================================
// MetricsHook - Collects performance metrics
// ============================================================================

// MetricsHook collects request execution metrics using atomic counters.
type MetricsHook struct {
	TotalRequests   atomic.Uint64
	TotalQueries    atomic.Uint64
	TotalMutations  atomic.Uint64
	TotalErrors     atomic.Uint64
	TotalDurationNs atomic.Uint64
}

// NewMetricsHook creates a new metrics collection hook.
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{}
}

func (h *MetricsHook) Name() string {
	return "metrics"
}

func (h *MetricsHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}

func (h *MetricsHook) After(ctx context.Context, hookCtx *HookContext) error {
	h.TotalRequests.Add(1)
	h.TotalDurationNs.Add(uint64(hookCtx.Duration.Nanoseconds()))

	switch hookCtx.CommandType {
	case "query":
		h.TotalQueries.Add(1)
	case "mutation":
		h.TotalMutations.Add(1)
	}

	if hookCtx.Error != nil {
		h.TotalErrors.Add(1)
	}

	return nil
}

// GetStats returns current metrics as a map.
func (h *MetricsHook) GetStats() map[string]interface{} {
	totalReqs := h.TotalRequests.Load()
	totalDur := h.TotalDurationNs.Load()

	avgDuration := int64(0)
	if totalReqs > 0 {
		avgDuration = int64(totalDur / totalReqs)
	}

	return map[string]interface{}{
		"total_requests":    totalReqs,
		"total_queries":     h.TotalQueries.Load(),
		"total_mutations":   h.TotalMutations.Load(),
		"total_errors":      h.TotalErrors.Load(),
		"total_duration_ns": totalDur,
		"avg_duration_ns":   avgDuration,
		"avg_duration_ms":   float64(avgDuration) / 1_000_000,
		"total_duration_ms": float64(totalDur) / 1_000_000,
	}
}

// Reset clears all metrics.
func (h *MetricsHook) Reset() {
	h.TotalRequests.Store(0)
	h.TotalQueries.Store(0)
	h.TotalMutations.Store(0)
	h.TotalErrors.Store(0)
	h.TotalDurationNs.Store(0)
}
