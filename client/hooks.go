package client

import (
	"context"
	"strings"
	"time"
)

// HookContext contains information about the request being executed.
// This is passed to hooks to allow inspection and instrumentation.
type HookContext struct {
	// Op is the wire operation name (e.g. "DB_EXISTS", "COMMAND")
	Op string

	// Command is the SQL text for command operations, empty otherwise
	Command string

	// CommandType categorizes the command (query, mutation, schema, ...)
	CommandType string

	// Params are named parameters associated with a command
	Params map[string]interface{}

	// StartTime is when the request began
	StartTime time.Time

	// Metadata allows hooks to store arbitrary data for passing between Before/After
	Metadata map[string]interface{}

	// TraceID is the unique identifier for this request
	TraceID string

	// Result stores the decoded result (set after execution, available in After hook)
	Result interface{}

	// Error stores any error that occurred (available in After hook)
	Error error

	// Duration is the execution time (available in After hook)
	Duration time.Duration
}

// Hook is the interface that all hooks must implement.
// Hooks can inspect requests or abort them before they reach the wire.
type Hook interface {
	// Name returns the unique name of this hook
	Name() string

	// Before is called before the request is written.
	// Returning an error aborts the request and returns the error.
	// Hooks can modify the HookContext (e.g., add Metadata).
	Before(ctx context.Context, hookCtx *HookContext) error

	// After is called after the response arrived (even on failure).
	// Returning an error replaces any existing error.
	// Hooks can inspect Result/Error and modify the HookContext.
	After(ctx context.Context, hookCtx *HookContext) error
}

// hookEntry wraps a Hook with its registration order for stable iteration.
type hookEntry struct {
	hook  Hook
	order int
}

// RegisterHook adds a hook to the client's hook chain.
// Hooks are executed in FIFO order (first registered, first executed).
// If a hook with the same name already exists, it is replaced.
func (c *Client) RegisterHook(hook Hook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()

	// Check if hook already exists
	for i, entry := range c.hooks {
		if entry.hook.Name() == hook.Name() {
			// Replace existing hook, preserve order
			c.hooks[i].hook = hook
			c.logger.Info("hook replaced", String("hook", hook.Name()))
			return
		}
	}

	// Add new hook
	order := len(c.hooks)
	c.hooks = append(c.hooks, hookEntry{hook: hook, order: order})
	c.logger.Info("hook registered", String("hook", hook.Name()), Int("order", order))
}

// UnregisterHook removes a hook by name.
// Returns true if the hook was found and removed, false otherwise.
func (c *Client) UnregisterHook(name string) bool {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()

	for i, entry := range c.hooks {
		if entry.hook.Name() == name {
			// Remove hook while preserving order of others
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			c.logger.Info("hook unregistered", String("hook", name))
			return true
		}
	}

	return false
}

// GetHooks returns the names of all registered hooks in execution order.
func (c *Client) GetHooks() []string {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()

	names := make([]string, len(c.hooks))
	for i, entry := range c.hooks {
		names[i] = entry.hook.Name()
	}
	return names
}

// executeBeforeHooks runs all Before hooks in order.
// If any hook returns an error, execution stops and the error is returned.
func (c *Client) executeBeforeHooks(ctx context.Context, hookCtx *HookContext) error {
	c.hooksMu.RLock()
	hooks := make([]Hook, len(c.hooks))
	for i, entry := range c.hooks {
		hooks[i] = entry.hook
	}
	c.hooksMu.RUnlock()

	for _, hook := range hooks {
		if err := hook.Before(ctx, hookCtx); err != nil {
			c.logger.Debug("hook aborted request",
				String("hook", hook.Name()),
				String("op", hookCtx.Op),
				Error("error", err))
			return err
		}
	}

	return nil
}

// executeAfterHooks runs all After hooks in order.
// All hooks are executed even if one returns an error.
// The last error returned (if any) is returned.
func (c *Client) executeAfterHooks(ctx context.Context, hookCtx *HookContext) error {
	c.hooksMu.RLock()
	hooks := make([]Hook, len(c.hooks))
	for i, entry := range c.hooks {
		hooks[i] = entry.hook
	}
	c.hooksMu.RUnlock()

	var lastErr error
	for _, hook := range hooks {
		if err := hook.After(ctx, hookCtx); err != nil {
			c.logger.Debug("hook returned error in After",
				String("hook", hook.Name()),
				String("op", hookCtx.Op),
				Error("error", err))
			lastErr = err
		}
	}

	return lastErr
}

// inferCommandType determines the command category from the SQL text.
func inferCommandType(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "unknown"
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT", "TRAVERSE", "MATCH", "FIND":
		return "query"
	case "INSERT", "UPDATE", "DELETE", "TRUNCATE":
		return "mutation"
	case "CREATE", "DROP", "ALTER":
		return "schema"
	case "BEGIN", "COMMIT", "ROLLBACK":
		return "transaction"
	case "GRANT", "REVOKE":
		return "permission"
	default:
		return "command"
	}
}
