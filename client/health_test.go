package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/transport/mock"
)

// pingFactory opens mock-backed sessions. The first session answers no
// pings when firstDead is set; later sessions answer plenty.
type pingFactory struct {
	mu        sync.Mutex
	opened    []*mock.MockTransport
	firstDead bool
}

func (f *pingFactory) open() (*Database, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	mt := mock.NewMockTransport()
	if !f.firstDead || len(f.opened) > 0 {
		for i := 0; i < 64; i++ {
			mt.QueueFrames(okFrame(func(w *protocol.Writer) {
				w.WriteInt64(1024)
			}))
		}
	}
	f.opened = append(f.opened, mt)
	return newTestDatabase(mt), nil
}

func (f *pingFactory) openedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

// failingFactory never opens a session.
func failingFactory() (*Database, error) {
	return nil, errors.New("connection refused")
}

func healthTestClient(maxReconnects int) *Client {
	opts := DefaultOptions()
	opts.MaxReconnectAttempts = maxReconnects
	return newTestClientWith(opts, singleTransport(mock.NewMockTransport()))
}

func TestNewHealthMonitorDefaults(t *testing.T) {
	c := healthTestClient(3)
	pool := NewSessionPool(c, (&pingFactory{}).open)

	mon := NewHealthMonitor(c, pool, 0, 0)
	if mon.interval != c.opts.HealthCheckInterval {
		t.Errorf("expected interval to default to %v, got %v",
			c.opts.HealthCheckInterval, mon.interval)
	}
	if mon.failureThreshold != 3 {
		t.Errorf("expected failure threshold 3, got %d", mon.failureThreshold)
	}
}

func TestIsConnectionDrop(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"wrapped eof", fmt.Errorf("read frame: %w", io.EOF), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"broken pipe", syscall.EPIPE, true},
		{"net op error", &net.OpError{Op: "read", Err: errors.New("reset")}, true},
		{"connection failed", ErrConnectionFailed("db1:2424", errors.New("refused")), true},
		{"connection closed", &ConnectionError{Code: "CONNECTION_CLOSED"}, false},
		{"timeout", ErrTimeout("DB_SIZE", time.Second, context.DeadlineExceeded), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionDrop(tt.err); got != tt.want {
				t.Errorf("isConnectionDrop(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAttemptReconnectRebuildsPool(t *testing.T) {
	f := &pingFactory{}
	c := healthTestClient(3)
	pool := NewSessionPool(c, f.open)
	defer pool.Close()

	if err := c.attemptReconnect(context.Background(), pool); err != nil {
		t.Fatalf("attemptReconnect failed: %v", err)
	}

	if got := c.GetState(); got != CONNECTED {
		t.Errorf("expected state CONNECTED after reconnect, got %s", got)
	}
	if got := pool.Stats().TotalSessions; got != 1 {
		t.Errorf("expected 1 session after rebuild, got %d", got)
	}
	if got := f.openedCount(); got != 1 {
		t.Errorf("expected 1 session opened, got %d", got)
	}
}

func TestAttemptReconnectExhaustsAttempts(t *testing.T) {
	c := healthTestClient(2)
	pool := NewSessionPool(c, failingFactory)
	defer pool.Close()

	err := c.attemptReconnect(context.Background(), pool)
	if err == nil {
		t.Fatal("expected reconnect to fail when no session can be opened")
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if got := c.GetState(); got != DISCONNECTED {
		t.Errorf("expected state DISCONNECTED after exhausted reconnects, got %s", got)
	}
}

func TestAttemptReconnectHonorsContext(t *testing.T) {
	c := healthTestClient(10)
	pool := NewSessionPool(c, failingFactory)
	defer pool.Close()

	// The first attempt fails and the backoff sleep must observe the
	// cancellation instead of running all ten attempts.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.attemptReconnect(ctx, pool)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("reconnect ignored cancellation, ran %v", elapsed)
	}
}

// TestHealthMonitorTriggersReconnect drives the full loop: the pooled
// session stops answering pings, the monitor notices and the pool is
// rebuilt with a fresh session.
func TestHealthMonitorTriggersReconnect(t *testing.T) {
	f := &pingFactory{firstDead: true}
	c := healthTestClient(3)
	pool := NewSessionPool(c, f.open)
	if err := pool.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer pool.Close()

	// The monitor only acts while the client reports CONNECTED.
	c.stateMgr.TransitionTo(CONNECTING, nil, nil)
	c.stateMgr.TransitionTo(CONNECTED, nil, nil)

	mon := NewHealthMonitor(c, pool, 20*time.Millisecond, 3)
	mon.Start()
	defer mon.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.openedCount() >= 2 && c.GetState() == CONNECTED {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := f.openedCount(); got < 2 {
		t.Fatalf("expected a replacement session after failed pings, got %d opened", got)
	}
	if got := c.GetState(); got != CONNECTED {
		t.Errorf("expected state CONNECTED after recovery, got %s", got)
	}
	if got := pool.Stats().TotalSessions; got != 1 {
		t.Errorf("expected 1 pooled session after recovery, got %d", got)
	}
}
