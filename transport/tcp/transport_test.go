package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dan-strohschein/orientdb-driver/protocol"
)

// echoServer accepts one connection and echoes every frame back with an
// "echo:" prefix until the client hangs up.
func echoServer(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		for {
			frame, err := protocol.ReadFrame(br)
			if err != nil {
				return
			}
			if err := protocol.WriteFrame(conn, append([]byte("echo:"), frame...)); err != nil {
				return
			}
		}
	}()

	return ln
}

func TestTCPTransport_RoundTrip(t *testing.T) {
	ln := echoServer(t)
	defer ln.Close()

	tr, err := NewTCPTransport(Options{Address: ln.Addr().String(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewTCPTransport: %v", err)
	}
	defer tr.Close()

	ctx := context.Background()
	if err := tr.Send(ctx, []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	frame, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(frame) != "echo:ping" {
		t.Errorf("Receive = %q, want %q", frame, "echo:ping")
	}

	if !tr.IsHealthy() {
		t.Error("transport reported unhealthy after successful round trip")
	}

	metrics := tr.GetMetrics()
	if metrics.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", metrics.TotalRequests)
	}
	if metrics.BytesSent != 4 {
		t.Errorf("BytesSent = %d, want 4", metrics.BytesSent)
	}
	if metrics.BytesReceived != 9 {
		t.Errorf("BytesReceived = %d, want 9", metrics.BytesReceived)
	}
}

func TestTCPTransport_DialFailure(t *testing.T) {
	// Grab a port and close it again so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := NewTCPTransport(Options{Address: addr, Timeout: time.Second}); err == nil {
		t.Fatal("expected dial error, got nil")
	}
}

func TestTCPTransport_MissingAddress(t *testing.T) {
	if _, err := NewTCPTransport(Options{}); err == nil {
		t.Fatal("expected error for missing address, got nil")
	}
}

func TestTCPTransport_ReceiveTimeout(t *testing.T) {
	// Server accepts but never writes back.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	tr, err := NewTCPTransport(Options{Address: ln.Addr().String(), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewTCPTransport: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = tr.Receive(ctx)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected net timeout error, got %v", err)
	}

	if tr.IsHealthy() {
		t.Error("transport still healthy after receive failure")
	}
	metrics := tr.GetMetrics()
	if metrics.TotalErrors == 0 {
		t.Error("expected error recorded in metrics")
	}
	if metrics.LastError == nil {
		t.Error("expected last error recorded in metrics")
	}
}

func TestTCPTransport_CloseMarksUnhealthy(t *testing.T) {
	ln := echoServer(t)
	defer ln.Close()

	tr, err := NewTCPTransport(Options{Address: ln.Addr().String(), Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewTCPTransport: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tr.IsHealthy() {
		t.Error("transport reported healthy after Close")
	}
}

func TestTCPTransport_PeerDisconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	tr, err := NewTCPTransport(Options{Address: ln.Addr().String(), Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewTCPTransport: %v", err)
	}
	defer tr.Close()

	conn := <-accepted
	conn.Close()

	if _, err := tr.Receive(context.Background()); err == nil {
		t.Fatal("expected error after peer disconnect, got nil")
	}
	if tr.IsHealthy() {
		t.Error("transport still healthy after peer disconnect")
	}
}
