// Package transport defines the frame transport abstraction the client
// speaks through. Implementations move whole length-prefixed frames; the
// client layers sessions and request encoding on top.
package transport

import (
	"context"
	"time"
)

// Transport carries protocol frames between client and server.
//
// Implementations are not required to be safe for concurrent use. The
// session layer serializes Send and Receive so that responses pair with
// the request that produced them.
type Transport interface {
	// Send transmits one frame body to the server.
	Send(ctx context.Context, frame []byte) error

	// Receive reads the next frame body from the server.
	Receive(ctx context.Context) ([]byte, error)

	// Close tears down the underlying connection.
	Close() error

	// IsHealthy returns whether the transport can still carry frames.
	IsHealthy() bool

	// GetMetrics returns transport performance metrics.
	GetMetrics() TransportMetrics
}

// TransportMetrics contains performance and health metrics.
type TransportMetrics struct {
	// TotalRequests is the total number of frames sent.
	TotalRequests int64

	// TotalErrors is the total number of errors encountered.
	TotalErrors int64

	// AverageLatency is the average time spent inside Send and Receive.
	AverageLatency time.Duration

	// LastError is the most recent error encountered.
	LastError error

	// LastErrorTime is when the last error occurred.
	LastErrorTime time.Time

	// BytesSent is the total frame body bytes sent.
	BytesSent int64

	// BytesReceived is the total frame body bytes received.
	BytesReceived int64
}

// Factory creates new transport instances.
type Factory func(ctx context.Context) (Transport, error)
