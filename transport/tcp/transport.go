package tcp

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/transport"
)

// Options configures the TCP transport.
type Options struct {
	// Address is the server address (host:port).
	Address string

	// Timeout bounds dialing and, when the caller's context carries no
	// deadline, individual reads and writes.
	Timeout time.Duration

	// TLS configuration.
	UseTLS     bool
	CertPath   string
	KeyPath    string
	CAPath     string
	SkipVerify bool
}

// TCPTransport implements transport.Transport over a single TCP
// connection. The server ties session state to the socket, so each
// session owns exactly one transport; pooling happens above this layer.
//
// Not safe for concurrent use. The session layer serializes access.
type TCPTransport struct {
	opts    Options
	conn    net.Conn
	br      *bufio.Reader
	metrics transportMetrics

	mu    sync.Mutex
	alive bool
}

// transportMetrics tracks transport performance.
type transportMetrics struct {
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	latencySum    atomic.Int64 // nanoseconds
	mu            sync.RWMutex
	lastError     error
	lastErrorTime time.Time
}

// NewTCPTransport dials the server and returns a connected transport.
func NewTCPTransport(opts Options) (*TCPTransport, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	conn, err := net.DialTimeout("tcp", opts.Address, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Address, err)
	}

	if opts.UseTLS {
		tlsConfig, err := buildTLSConfig(opts)
		if err != nil {
			conn.Close()
			return nil, err
		}

		tlsConn := tls.Client(conn, tlsConfig)
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		err = tlsConn.HandshakeContext(ctx)
		cancel()
		if err != nil {
			tlsConn.Close()
			return nil, fmt.Errorf("TLS handshake with %s failed: %w", opts.Address, err)
		}
		conn = tlsConn
	}

	return &TCPTransport{
		opts:  opts,
		conn:  conn,
		br:    bufio.NewReader(conn),
		alive: true,
	}, nil
}

// Send implements transport.Transport.
func (t *TCPTransport) Send(ctx context.Context, frame []byte) error {
	start := time.Now()
	t.metrics.totalRequests.Add(1)

	if err := t.conn.SetWriteDeadline(t.deadline(ctx)); err != nil {
		t.recordError(err)
		return err
	}
	if err := protocol.WriteFrame(t.conn, frame); err != nil {
		t.markDead()
		t.recordError(err)
		return err
	}

	t.metrics.bytesSent.Add(int64(len(frame)))
	t.recordLatency(time.Since(start))
	return nil
}

// Receive implements transport.Transport.
func (t *TCPTransport) Receive(ctx context.Context) ([]byte, error) {
	start := time.Now()

	if err := t.conn.SetReadDeadline(t.deadline(ctx)); err != nil {
		t.recordError(err)
		return nil, err
	}
	frame, err := protocol.ReadFrame(t.br)
	if err != nil {
		t.markDead()
		t.recordError(err)
		return nil, err
	}

	t.metrics.bytesReceived.Add(int64(len(frame)))
	t.recordLatency(time.Since(start))
	return frame, nil
}

// Close implements transport.Transport.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	t.alive = false
	t.mu.Unlock()
	return t.conn.Close()
}

// IsHealthy implements transport.Transport.
func (t *TCPTransport) IsHealthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

// GetMetrics implements transport.Transport.
func (t *TCPTransport) GetMetrics() transport.TransportMetrics {
	t.metrics.mu.RLock()
	lastErr := t.metrics.lastError
	lastErrTime := t.metrics.lastErrorTime
	t.metrics.mu.RUnlock()

	totalReqs := t.metrics.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(t.metrics.latencySum.Load() / totalReqs)
	}

	return transport.TransportMetrics{
		TotalRequests:  totalReqs,
		TotalErrors:    t.metrics.totalErrors.Load(),
		AverageLatency: avgLatency,
		LastError:      lastErr,
		LastErrorTime:  lastErrTime,
		BytesSent:      t.metrics.bytesSent.Load(),
		BytesReceived:  t.metrics.bytesReceived.Load(),
	}
}

// deadline picks the operation deadline: the context's when it carries
// one, otherwise the configured timeout, otherwise none.
func (t *TCPTransport) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if t.opts.Timeout > 0 {
		return time.Now().Add(t.opts.Timeout)
	}
	return time.Time{}
}

func (t *TCPTransport) markDead() {
	t.mu.Lock()
	t.alive = false
	t.mu.Unlock()
}

// recordError records an error in metrics.
func (t *TCPTransport) recordError(err error) {
	t.metrics.totalErrors.Add(1)
	t.metrics.mu.Lock()
	t.metrics.lastError = err
	t.metrics.lastErrorTime = time.Now()
	t.metrics.mu.Unlock()
}

// recordLatency records latency in metrics.
func (t *TCPTransport) recordLatency(latency time.Duration) {
	t.metrics.latencySum.Add(int64(latency))
}

// buildTLSConfig creates a TLS configuration.
func buildTLSConfig(opts Options) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: opts.SkipVerify,
	}

	// Extract server name from address
	serverName := opts.Address
	if idx := strings.Index(opts.Address, ":"); idx >= 0 {
		serverName = opts.Address[:idx]
	}
	tlsConfig.ServerName = serverName

	// Load client certificate if provided
	if opts.CertPath != "" && opts.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertPath, opts.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate from %s: %w", opts.CertPath, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// Load custom CA bundle if provided, otherwise the system pool is used
	if opts.CAPath != "" {
		caData, err := os.ReadFile(opts.CAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", opts.CAPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caData) {
			return nil, fmt.Errorf("no valid certificates found in CA file %s", opts.CAPath)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}
