// Package mock provides a scripted transport for exercising the client
// without a running server.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/orientdb-driver/transport"
)

// MockTransport implements transport.Transport for testing. Response
// frames are queued up front and handed out one per Receive call, so a
// test can script a whole multi-frame exchange before running it.
type MockTransport struct {
	// Behavior configuration
	sendErr    error
	receiveErr error
	frames     [][]byte
	healthy    bool

	// Call tracking
	sendCalls    atomic.Int32
	receiveCalls atomic.Int32
	closeCalls   atomic.Int32

	// Metrics
	metrics     mockMetrics
	mu          sync.RWMutex
	closed      bool
	sendDelay   time.Duration
	recvDelay   time.Duration
	sendHistory [][]byte
	recvHistory [][]byte
}

type mockMetrics struct {
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	latencySum    atomic.Int64
}

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		healthy:     true,
		frames:      make([][]byte, 0),
		sendHistory: make([][]byte, 0),
		recvHistory: make([][]byte, 0),
	}
}

// QueueFrames appends response frames to be returned by successive
// Receive calls.
func (m *MockTransport) QueueFrames(frames ...[]byte) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frames...)
	return m
}

// WithSendError configures the transport to return an error on Send.
func (m *MockTransport) WithSendError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
	return m
}

// WithReceiveError configures the transport to return an error on Receive
// once the frame queue is drained.
func (m *MockTransport) WithReceiveError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiveErr = err
	return m
}

// WithHealthy configures the health status.
func (m *MockTransport) WithHealthy(healthy bool) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	return m
}

// WithSendDelay adds a delay to Send operations.
func (m *MockTransport) WithSendDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendDelay = delay
	return m
}

// WithReceiveDelay adds a delay to Receive operations.
func (m *MockTransport) WithReceiveDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recvDelay = delay
	return m
}

// Send implements transport.Transport.
func (m *MockTransport) Send(ctx context.Context, frame []byte) error {
	m.sendCalls.Add(1)
	m.metrics.totalRequests.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	delay := m.sendDelay
	sendErr := m.sendErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if sendErr != nil {
		m.metrics.totalErrors.Add(1)
		return sendErr
	}

	// Callers may reuse the frame buffer after Send returns, keep a copy.
	recorded := make([]byte, len(frame))
	copy(recorded, frame)

	m.mu.Lock()
	m.sendHistory = append(m.sendHistory, recorded)
	m.mu.Unlock()

	m.metrics.bytesSent.Add(int64(len(frame)))
	return nil
}

// Receive implements transport.Transport. It returns the next queued
// frame, the configured receive error once the queue is empty, or a
// generic error when neither is scripted.
func (m *MockTransport) Receive(ctx context.Context) ([]byte, error) {
	m.receiveCalls.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("transport is closed")
	}
	delay := m.recvDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	m.mu.Lock()
	if len(m.frames) == 0 {
		receiveErr := m.receiveErr
		m.mu.Unlock()
		if receiveErr != nil {
			m.metrics.totalErrors.Add(1)
			return nil, receiveErr
		}
		return nil, fmt.Errorf("no frame queued")
	}
	frame := m.frames[0]
	m.frames = m.frames[1:]
	m.recvHistory = append(m.recvHistory, frame)
	m.mu.Unlock()

	m.metrics.bytesReceived.Add(int64(len(frame)))
	return frame, nil
}

// Close implements transport.Transport.
func (m *MockTransport) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsHealthy implements transport.Transport.
func (m *MockTransport) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && !m.closed
}

// GetMetrics implements transport.Transport.
func (m *MockTransport) GetMetrics() transport.TransportMetrics {
	totalReqs := m.metrics.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(m.metrics.latencySum.Load() / totalReqs)
	}

	return transport.TransportMetrics{
		TotalRequests:  totalReqs,
		TotalErrors:    m.metrics.totalErrors.Load(),
		AverageLatency: avgLatency,
		BytesSent:      m.metrics.bytesSent.Load(),
		BytesReceived:  m.metrics.bytesReceived.Load(),
	}
}

// GetSendCallCount returns the number of times Send was called.
func (m *MockTransport) GetSendCallCount() int {
	return int(m.sendCalls.Load())
}

// GetReceiveCallCount returns the number of times Receive was called.
func (m *MockTransport) GetReceiveCallCount() int {
	return int(m.receiveCalls.Load())
}

// GetCloseCallCount returns the number of times Close was called.
func (m *MockTransport) GetCloseCallCount() int {
	return int(m.closeCalls.Load())
}

// GetSendHistory returns all frames sent through this transport.
func (m *MockTransport) GetSendHistory() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([][]byte, len(m.sendHistory))
	copy(history, m.sendHistory)
	return history
}

// GetReceiveHistory returns all frames handed out by this transport.
func (m *MockTransport) GetReceiveHistory() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([][]byte, len(m.recvHistory))
	copy(history, m.recvHistory)
	return history
}

// PendingFrames returns the number of queued frames not yet received.
func (m *MockTransport) PendingFrames() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

// IsClosed returns whether the transport has been closed.
func (m *MockTransport) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Reset clears all state and call counts.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendErr = nil
	m.receiveErr = nil
	m.frames = make([][]byte, 0)
	m.healthy = true
	m.closed = false
	m.sendDelay = 0
	m.recvDelay = 0

	m.sendCalls.Store(0)
	m.receiveCalls.Store(0)
	m.closeCalls.Store(0)

	m.metrics.totalRequests.Store(0)
	m.metrics.totalErrors.Store(0)
	m.metrics.bytesSent.Store(0)
	m.metrics.bytesReceived.Store(0)
	m.metrics.latencySum.Store(0)

	m.sendHistory = make([][]byte, 0)
	m.recvHistory = make([][]byte, 0)
}
