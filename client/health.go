package client

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// HealthMonitor watches a session pool end to end: it checks a session out
// on an interval, pings it, and after enough consecutive failures (or one
// clear connection drop) rebuilds the pool with exponential backoff.
type HealthMonitor struct {
	client           *Client
	pool             *SessionPool
	interval         time.Duration
	failureThreshold int
	failureCount     atomic.Int32
	reconnecting     atomic.Bool
	ctx              context.Context
	cancel           context.CancelFunc
	stopCh           chan struct{}
	wg               sync.WaitGroup
	logger           Logger
}

// NewHealthMonitor builds a monitor over the pool. A zero interval falls
// back to the client's HealthCheckInterval, a threshold under one to 3.
func NewHealthMonitor(client *Client, pool *SessionPool, interval time.Duration, threshold int) *HealthMonitor {
	if interval <= 0 {
		interval = client.opts.HealthCheckInterval
	}
	if threshold < 1 {
		threshold = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HealthMonitor{
		client:           client,
		pool:             pool,
		interval:         interval,
		failureThreshold: threshold,
		ctx:              ctx,
		cancel:           cancel,
		stopCh:           make(chan struct{}),
		logger:           client.logger.WithFields(String("component", "health_monitor")),
	}
}

// Start begins monitoring in a background goroutine.
func (h *HealthMonitor) Start() {
	h.wg.Add(1)
	go h.monitorLoop()
	h.logger.Info("health monitor started", Duration("interval", h.interval))
}

// Stop halts the monitor and cancels any reconnect in flight.
func (h *HealthMonitor) Stop() {
	h.cancel()
	close(h.stopCh)
	h.wg.Wait()
	h.logger.Info("health monitor stopped")
}

func (h *HealthMonitor) monitorLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return

		case <-ticker.C:
			if h.client.GetState() != CONNECTED {
				continue
			}

			err := h.performHealthCheck()
			if err == nil {
				if prev := h.failureCount.Swap(0); prev > 0 {
					h.logger.Info("health check recovered",
						Int("previous_failures", int(prev)))
				}
				continue
			}

			count := h.failureCount.Add(1)
			h.logger.Warn("health check failed",
				Error("error", err),
				Int("failure_count", int(count)))

			if int(count) >= h.failureThreshold || isConnectionDrop(err) {
				h.failureCount.Store(0)
				h.triggerReconnect()
			}
		}
	}
}

// performHealthCheck pings one pooled session end to end.
func (h *HealthMonitor) performHealthCheck() error {
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()

	db, err := h.pool.Get(ctx)
	if err != nil {
		return err
	}
	defer h.pool.Put(db)

	return db.Ping()
}

// triggerReconnect launches one reconnect at a time.
func (h *HealthMonitor) triggerReconnect() {
	if !h.reconnecting.CompareAndSwap(false, true) {
		return
	}

	h.logger.Error("health check failure threshold exceeded, triggering reconnection")
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.reconnecting.Store(false)
		h.client.attemptReconnect(h.ctx, h.pool)
	}()
}

// isConnectionDrop reports whether the error marks a dropped connection
// rather than a slow or failing request.
func isConnectionDrop(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.Code == "CONNECTION_FAILED"
}

// attemptReconnect tears the pool down and rebuilds it with exponential
// backoff, walking the client's state machine so lifecycle callbacks fire.
func (c *Client) attemptReconnect(ctx context.Context, pool *SessionPool) error {
	c.logger.Warn("attempting automatic reconnection")

	c.stateMgr.TransitionTo(DISCONNECTING, nil, map[string]interface{}{
		"reason": "health_check_failed",
	})
	c.stateMgr.TransitionTo(DISCONNECTED, nil, map[string]interface{}{
		"reason": "health_check_failed",
	})

	const baseBackoff = 100 * time.Millisecond
	const maxBackoff = 60 * time.Second

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.stateMgr.TransitionTo(CONNECTING, nil, map[string]interface{}{
			"reason":  "reconnect",
			"attempt": attempt,
		})
		c.logger.Info("reconnection attempt",
			Int("attempt", attempt),
			Int("max_attempts", c.opts.MaxReconnectAttempts))

		err := pool.reset()
		if err == nil {
			c.stateMgr.TransitionTo(CONNECTED, nil, map[string]interface{}{
				"reason":  "reconnect",
				"attempt": attempt,
			})
			c.logger.Info("reconnection successful", Int("attempt", attempt))
			return nil
		}

		lastErr = err
		c.stateMgr.TransitionTo(DISCONNECTED, err, map[string]interface{}{
			"reason":  "reconnect_attempt_failed",
			"attempt": attempt,
		})

		if attempt < c.opts.MaxReconnectAttempts {
			backoff := time.Duration(float64(baseBackoff) * math.Pow(2, float64(attempt-1)))
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.logger.Error("reconnection failed after all attempts",
		Int("max_attempts", c.opts.MaxReconnectAttempts))
	return ErrConnectionFailed(c.address, lastErr)
}
