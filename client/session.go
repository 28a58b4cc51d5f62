package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/transport"
)

// session is one authenticated wire conversation: a transport, the
// negotiated protocol version and the server-assigned session id echoed on
// every request. The protocol allows no pipelining, so a per-session mutex
// serializes requests; concurrency comes from opening more sessions.
type session struct {
	client    *Client
	transport transport.Transport
	version   int16
	id        int32
	token     []byte

	mu     sync.Mutex
	closed bool
}

func newSession(c *Client, tr transport.Transport, version int16, id int32, token []byte) *session {
	return &session{
		client:    c,
		transport: tr,
		version:   version,
		id:        id,
		token:     token,
	}
}

// request runs one request/response exchange and returns a reader over the
// success payload (the bytes after the status byte).
func (s *session) request(op protocol.OpCode, build func(*protocol.Writer)) (*protocol.Reader, error) {
	return s.requestWith(op, &HookContext{}, build)
}

// requestWith is request with a caller-prefilled hook context (command
// text, params) for the hook chain.
//
// A transport failure or timeout closes the session: the server may still
// apply the in-flight request, so the caller must reconnect, not retry. A
// ServerError leaves the session usable; the stream stays aligned.
func (s *session) requestWith(op protocol.OpCode, hookCtx *HookContext, build func(*protocol.Writer)) (*protocol.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrConnectionClosed(op.String())
	}

	start := time.Now()
	hookCtx.Op = op.String()
	hookCtx.TraceID = uuid.New().String()
	hookCtx.StartTime = start
	if hookCtx.Metadata == nil {
		hookCtx.Metadata = make(map[string]interface{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.client.opts.timeout())
	defer cancel()

	if err := s.client.executeBeforeHooks(ctx, hookCtx); err != nil {
		return nil, err
	}

	r, err := s.exchange(ctx, op, start, build)

	hookCtx.Duration = time.Since(start)
	hookCtx.Error = err
	if err == nil {
		hookCtx.Result = r
	}
	if afterErr := s.client.executeAfterHooks(ctx, hookCtx); afterErr != nil {
		return nil, afterErr
	}

	return r, err
}

// exchange writes the request frame, reads the response frame and demuxes
// the status byte. Caller holds the session mutex.
func (s *session) exchange(ctx context.Context, op protocol.OpCode, start time.Time, build func(*protocol.Writer)) (*protocol.Reader, error) {
	w := protocol.AcquireWriter()
	defer protocol.ReleaseWriter(w)
	w.WriteByte(byte(op))
	w.WriteInt32(s.id)
	if build != nil {
		build(w)
	}

	if err := s.transport.Send(ctx, w.Bytes()); err != nil {
		s.closeLocked()
		return nil, classifyTransportError(s.client.address, op.String(), start, err)
	}

	body, err := s.transport.Receive(ctx)
	if err != nil {
		s.closeLocked()
		return nil, classifyTransportError(s.client.address, op.String(), start, err)
	}

	r := protocol.NewReader(body)
	status, err := r.ReadByte()
	if err != nil {
		s.closeLocked()
		return nil, ErrProtocolViolation("empty response body", map[string]interface{}{
			"op": op.String(),
		}, err)
	}

	switch status {
	case protocol.StatusOK:
		return r, nil
	case protocol.StatusError:
		return nil, decodeServerError(r)
	default:
		// Unknown status means the stream position is unknowable.
		s.closeLocked()
		return nil, ErrProtocolViolation("unknown response status", map[string]interface{}{
			"op":     op.String(),
			"status": status,
		}, nil)
	}
}

// sendNoReply writes one request frame and expects no response. Used by
// DB_CLOSE only; failures are ignored since the session is going away.
func (s *session) sendNoReply(op protocol.OpCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.client.opts.timeout())
	defer cancel()

	w := protocol.AcquireWriter()
	defer protocol.ReleaseWriter(w)
	w.WriteByte(byte(op))
	w.WriteInt32(s.id)

	if err := s.transport.Send(ctx, w.Bytes()); err != nil {
		s.client.logger.Debug("close notification failed",
			String("op", op.String()),
			Error("error", err))
	}
}

// Close releases the transport. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.transport.Close()
}

// IsAlive reports whether the session can still carry requests.
func (s *session) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.transport.IsHealthy()
}

// SessionID returns the server-assigned session id.
func (s *session) SessionID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// classifyTransportError maps a transport failure to the driver taxonomy:
// expired deadlines become TimeoutError, everything else ConnectionError.
func classifyTransportError(address, operation string, start time.Time, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ErrTimeout(operation, time.Since(start), err)
	}
	return ErrConnectionFailed(address, err)
}

// decodeServerError decodes a status-1 payload: repeated
// `[1][class][message]` pairs, a `[0]` terminator, then an optional opaque
// stack-trace blob kept unparsed. Server order (outermost first) is kept.
func decodeServerError(r *protocol.Reader) error {
	var exceptions []ServerException

	for {
		marker, err := r.ReadByte()
		if err != nil {
			return ErrProtocolViolation("truncated error chain", map[string]interface{}{
				"decoded": len(exceptions),
			}, err)
		}
		if marker == 0 {
			break
		}
		if marker != 1 {
			return ErrProtocolViolation("malformed error chain marker", map[string]interface{}{
				"marker": marker,
			}, nil)
		}

		class, err := r.ReadString()
		if err != nil {
			return ErrProtocolViolation("truncated exception class", nil, err)
		}
		message, err := r.ReadString()
		if err != nil {
			return ErrProtocolViolation("truncated exception message", nil, err)
		}
		exceptions = append(exceptions, ServerException{Class: class, Message: message})
	}

	var trace []byte
	if r.Remaining() > 0 {
		b, err := r.ReadBytes()
		if err != nil {
			return ErrProtocolViolation("malformed stack trace blob", nil, err)
		}
		trace = b
	}

	return NewServerError(exceptions, trace)
}
