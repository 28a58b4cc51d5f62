package client

import (
	"encoding/json"
	"runtime"
	"time"

	"github.com/dan-strohschein/orientdb-driver/protocol"
)

// GetDebugInfo returns a snapshot of client state for support bundles
// and bug reports. Everything in it is safe to share: no credentials,
// no payloads.
func (c *Client) GetDebugInfo() map[string]interface{} {
	info := map[string]interface{}{
		"driver_version":     Version,
		"driver_name":        DriverName,
		"protocol_min":       protocol.MinProtocolVersion,
		"protocol_max":       protocol.MaxProtocolVersion,
		"address":            c.address,
		"state":              c.GetState().String(),
		"debug_mode":         c.IsDebugMode(),
		"hooks":              c.GetHooks(),
		"go_version":         runtime.Version(),
		"goroutines":         runtime.NumGoroutine(),
		"captured_at":        time.Now().Format(time.RFC3339),
		"timeout_ms":         c.opts.DefaultTimeoutMs,
		"max_retries":        c.opts.MaxRetries,
		"pool_min":           c.opts.PoolMinSize,
		"pool_max":           c.opts.PoolMaxSize,
		"tls_enabled":        c.opts.TLSEnabled,
		"tls_skip_verify":    c.opts.TLSInsecureSkipVerify,
		"token_session":      c.opts.TokenSession,
		"preload_schema":     c.opts.PreloadSchema,
		"default_fetch_plan": c.opts.DefaultFetchPlan,
		"health_interval_ms": c.opts.HealthCheckInterval.Milliseconds(),
		"idle_timeout_ms":    c.opts.PoolIdleTimeout.Milliseconds(),
		"reconnect_attempts": c.opts.MaxReconnectAttempts,
	}

	last := c.stateMgr.GetLastTransition()
	if !last.Timestamp.IsZero() {
		transition := map[string]interface{}{
			"from":      last.From.String(),
			"to":        last.To.String(),
			"timestamp": last.Timestamp.Format(time.RFC3339),
			"held_ms":   last.Duration.Milliseconds(),
		}
		if last.Error != nil {
			transition["error"] = last.Error.Error()
		}
		info["last_transition"] = transition
	}

	return info
}

// DumpDebugInfoJSON renders GetDebugInfo as indented JSON.
func (c *Client) DumpDebugInfoJSON() (string, error) {
	data, err := json.MarshalIndent(c.GetDebugInfo(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DebugSnapshot extends the client snapshot with one session pool's
// counters when the caller runs one.
func (c *Client) DebugSnapshot(pool *SessionPool) map[string]interface{} {
	info := c.GetDebugInfo()
	if pool != nil {
		stats := pool.Stats()
		info["pool"] = map[string]interface{}{
			"active":       stats.ActiveSessions,
			"idle":         stats.IdleSessions,
			"total":        stats.TotalSessions,
			"wait_count":   stats.WaitCount,
			"wait_time_ms": stats.WaitDuration.Milliseconds(),
			"hits":         stats.Hits,
			"misses":       stats.Misses,
			"timeouts":     stats.Timeouts,
			"errors":       stats.Errors,
		}
	}
	return info
}
