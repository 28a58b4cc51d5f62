// Package client implements sessions against the OrientDB binary protocol:
// server-level administration, database-level record and command operations,
// and the schema cache that backs compact field decoding.
package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/transport"
	"github.com/dan-strohschein/orientdb-driver/transport/tcp"
)

// defaultPort is the OrientDB binary listener port.
const defaultPort = "2424"

// Client holds one server endpoint plus the machinery shared by every
// session opened against it: options, logger, state tracking, hooks.
//
// The state manager tracks the client lifecycle (dialed, closed), not the
// lifecycle of individual sessions; sessions carry their own closed flag.
type Client struct {
	address string
	opts    Options

	logger    Logger
	stateMgr  *StateManager
	debugMode atomic.Bool

	hooks   []hookEntry
	hooksMu sync.RWMutex

	// newTransport dials one frame transport. Swapped in tests.
	newTransport transport.Factory

	mu             sync.Mutex
	pending        transport.Transport
	pendingVersion int16
	closed         bool
}

// Dial connects to an OrientDB server, reads the protocol version preamble
// and validates it against the supported range. The returned client holds
// the validated connection until the first Auth or Open consumes it; later
// sessions dial fresh connections.
//
// addr accepts "orientdb://host:port" or bare "host:port"; a missing port
// defaults to 2424. TLS settings may ride along as query parameters
// (?tls=true&tlsCAFile=...), see tls.go.
func Dial(addr string, opts Options) (*Client, error) {
	base, params, err := splitAddressParams(addr)
	if err != nil {
		return nil, err
	}
	address, err := parseAddress(base)
	if err != nil {
		return nil, err
	}
	if err := applyTLSParams(&opts, params); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel, nil)
	}
	logger = logger.WithFields(String("address", address))

	c := &Client{
		address:  address,
		opts:     opts,
		logger:   logger,
		stateMgr: NewStateManager(),
	}
	c.debugMode.Store(opts.DebugMode)
	c.newTransport = func(ctx context.Context) (transport.Transport, error) {
		return tcp.NewTCPTransport(tcp.Options{
			Address:    address,
			Timeout:    opts.timeout(),
			UseTLS:     opts.TLSEnabled,
			SkipVerify: opts.TLSInsecureSkipVerify,
			CertPath:   opts.TLSCertFile,
			KeyPath:    opts.TLSKeyFile,
			CAPath:     opts.TLSCAFile,
		})
	}

	c.registerLifecycleCallbacks()

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// registerLifecycleCallbacks wires the option callbacks into state changes.
func (c *Client) registerLifecycleCallbacks() {
	if c.opts.OnConnected == nil && c.opts.OnDisconnected == nil && c.opts.OnReconnecting == nil {
		return
	}

	c.stateMgr.OnStateChange(func(t StateTransition) {
		switch {
		case t.To == CONNECTED && c.opts.OnConnected != nil:
			c.opts.OnConnected(t)
		case t.To == DISCONNECTED && t.From != CONNECTING && c.opts.OnDisconnected != nil:
			c.opts.OnDisconnected(t)
		case t.To == CONNECTING && t.Metadata["reason"] == "reconnect" && c.opts.OnReconnecting != nil:
			c.opts.OnReconnecting(t)
		}
	})
}

// connect dials with retries and keeps the validated transport pending.
func (c *Client) connect() error {
	if err := c.stateMgr.TransitionTo(CONNECTING, nil, map[string]interface{}{
		"address": c.address,
	}); err != nil {
		return err
	}

	tr, version, err := c.dialValidated()
	if err != nil {
		c.stateMgr.TransitionTo(DISCONNECTED, err, map[string]interface{}{
			"address": c.address,
			"reason":  "error",
		})
		return err
	}

	c.mu.Lock()
	c.pending = tr
	c.pendingVersion = version
	c.mu.Unlock()

	c.stateMgr.TransitionTo(CONNECTED, nil, map[string]interface{}{
		"address":         c.address,
		"protocolVersion": int(version),
	})
	c.logger.Info("connected", Int("protocol_version", int(version)))
	return nil
}

// dialValidated dials one transport and negotiates the protocol version,
// retrying transient failures with exponential backoff.
func (c *Client) dialValidated() (transport.Transport, int16, error) {
	backoff := 100 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		tr, version, err := c.dialOnce()
		if err == nil {
			return tr, version, nil
		}
		lastErr = err

		// Version rejection is deterministic, retrying cannot help.
		var protoErr *ProtocolError
		if errors.As(err, &protoErr) {
			return nil, 0, err
		}
		// Same for certificate problems.
		var connErr *ConnectionError
		if errors.As(err, &connErr) && strings.HasPrefix(connErr.Code, "TLS_") {
			return nil, 0, err
		}

		if attempt < c.opts.MaxRetries {
			c.logger.Warn("dial failed, retrying",
				Int("attempt", attempt),
				Duration("backoff", backoff),
				Error("error", err))
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	return nil, 0, ErrConnectionFailed(c.address, lastErr)
}

// dialOnce dials a transport and reads the server's version preamble: one
// frame whose body is the server protocol version as int16.
func (c *Client) dialOnce() (transport.Transport, int16, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.timeout())
	defer cancel()

	tr, err := c.newTransport(ctx)
	if err != nil {
		if c.opts.TLSEnabled {
			return nil, 0, classifyTLSError(c.address, err)
		}
		return nil, 0, err
	}

	body, err := tr.Receive(ctx)
	if err != nil {
		tr.Close()
		return nil, 0, err
	}

	r := protocol.NewReader(body)
	serverVersion, err := r.ReadInt16()
	if err != nil {
		tr.Close()
		return nil, 0, ErrProtocolViolation("malformed version preamble", map[string]interface{}{
			"frameLen": len(body),
		}, err)
	}

	if serverVersion < protocol.MinProtocolVersion {
		tr.Close()
		return nil, 0, ErrProtocolVersion(serverVersion, protocol.MinProtocolVersion, protocol.MaxProtocolVersion)
	}

	// Newer servers still speak older revisions, negotiate down to ours.
	negotiated := serverVersion
	if negotiated > protocol.MaxProtocolVersion {
		negotiated = protocol.MaxProtocolVersion
	}

	return tr, negotiated, nil
}

// takeTransport hands out the pending validated transport, or dials a
// fresh one when it is already consumed.
func (c *Client) takeTransport() (transport.Transport, int16, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, 0, ErrConnectionClosed("session open")
	}
	if c.pending != nil {
		tr, version := c.pending, c.pendingVersion
		c.pending = nil
		c.mu.Unlock()
		return tr, version, nil
	}
	c.mu.Unlock()

	return c.dialValidated()
}

// Auth performs the server-level CONNECT handshake and returns an Admin
// session for database lifecycle operations.
func (c *Client) Auth(user, password string) (*Admin, error) {
	tr, version, err := c.takeTransport()
	if err != nil {
		return nil, err
	}

	r, err := c.handshake(tr, protocol.OpConnect, func(w *protocol.Writer) {
		writeHandshakePrefix(w, version, c.opts.TokenSession)
		w.WriteString(user)
		w.WriteString(password)
	})
	if err != nil {
		tr.Close()
		if isSecurityException(err) {
			return nil, ErrAuthenticationFailed(user, err)
		}
		return nil, err
	}

	sessionID, err := r.ReadInt32()
	if err != nil {
		tr.Close()
		return nil, ErrProtocolViolation("connect response missing session id", nil, err)
	}
	token, err := r.ReadBytes()
	if err != nil {
		tr.Close()
		return nil, ErrProtocolViolation("connect response missing token", nil, err)
	}

	sess := newSession(c, tr, version, sessionID, token)
	c.logger.Info("server session opened", Int("session_id", int(sessionID)))

	return &Admin{sess: sess}, nil
}

// Open performs the DB_OPEN handshake against a named database and returns
// a Database session carrying the server's cluster configuration and a
// fresh schema cache.
func (c *Client) Open(name, dbType, user, password string) (*Database, error) {
	tr, version, err := c.takeTransport()
	if err != nil {
		return nil, err
	}

	r, err := c.handshake(tr, protocol.OpDBOpen, func(w *protocol.Writer) {
		writeHandshakePrefix(w, version, c.opts.TokenSession)
		w.WriteString(name)
		w.WriteString(dbType)
		w.WriteString(user)
		w.WriteString(password)
	})
	if err != nil {
		tr.Close()
		if isSecurityException(err) {
			return nil, ErrAuthenticationFailed(user, err)
		}
		return nil, err
	}

	sessionID, err := r.ReadInt32()
	if err != nil {
		tr.Close()
		return nil, ErrProtocolViolation("db open response missing session id", nil, err)
	}
	token, err := r.ReadBytes()
	if err != nil {
		tr.Close()
		return nil, ErrProtocolViolation("db open response missing token", nil, err)
	}

	clusters, err := readClusterTable(r)
	if err != nil {
		tr.Close()
		return nil, err
	}
	if _, err := r.ReadBytes(); err != nil { // cluster config, unused
		tr.Close()
		return nil, ErrProtocolViolation("db open response missing cluster config", nil, err)
	}
	release, err := r.ReadString()
	if err != nil {
		tr.Close()
		return nil, ErrProtocolViolation("db open response missing server release", nil, err)
	}

	sess := newSession(c, tr, version, sessionID, token)
	db := newDatabase(c, sess, name, clusters, release)
	c.logger.Info("database session opened",
		String("database", name),
		Int("session_id", int(sessionID)),
		Int("clusters", len(clusters)),
		String("server_release", release))

	if c.opts.PreloadSchema {
		if err := db.ReloadSchema(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// handshake runs one pre-session exchange: opcode, SessionNone, fields.
func (c *Client) handshake(tr transport.Transport, op protocol.OpCode, build func(*protocol.Writer)) (*protocol.Reader, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.timeout())
	defer cancel()
	start := time.Now()

	w := protocol.AcquireWriter()
	defer protocol.ReleaseWriter(w)
	w.WriteByte(byte(op))
	w.WriteInt32(protocol.SessionNone)
	build(w)

	if err := tr.Send(ctx, w.Bytes()); err != nil {
		return nil, classifyTransportError(c.address, op.String(), start, err)
	}

	body, err := tr.Receive(ctx)
	if err != nil {
		return nil, classifyTransportError(c.address, op.String(), start, err)
	}

	r := protocol.NewReader(body)
	status, err := r.ReadByte()
	if err != nil {
		return nil, ErrProtocolViolation("empty handshake response", nil, err)
	}
	if status == protocol.StatusError {
		return nil, decodeServerError(r)
	}
	if status != protocol.StatusOK {
		return nil, ErrProtocolViolation("unknown response status", map[string]interface{}{
			"status": status,
			"op":     op.String(),
		}, nil)
	}

	return r, nil
}

// writeHandshakePrefix writes the driver identification fields shared by
// CONNECT and DB_OPEN.
func writeHandshakePrefix(w *protocol.Writer, version int16, tokenSession bool) {
	w.WriteString(DriverName)
	w.WriteString(Version)
	w.WriteInt16(version)
	w.WriteNullString() // client id, unused by this driver
	w.WriteString(SerializationImpl)
	w.WriteBool(tokenSession)
}

// readClusterTable decodes `[count int16]` then `{name, id int16}` pairs.
func readClusterTable(r *protocol.Reader) ([]Cluster, error) {
	count, err := r.ReadInt16()
	if err != nil {
		return nil, ErrProtocolViolation("missing cluster count", nil, err)
	}
	if count < 0 {
		return nil, ErrProtocolViolation("negative cluster count", map[string]interface{}{
			"count": count,
		}, nil)
	}

	clusters := make([]Cluster, 0, count)
	for i := int16(0); i < count; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, ErrProtocolViolation("truncated cluster table", nil, err)
		}
		id, err := r.ReadInt16()
		if err != nil {
			return nil, ErrProtocolViolation("truncated cluster table", nil, err)
		}
		clusters = append(clusters, Cluster{Name: name, ID: id})
	}
	return clusters, nil
}

// GetState returns the client lifecycle state.
func (c *Client) GetState() ConnectionState {
	return c.stateMgr.GetState()
}

// Address returns the resolved server address.
func (c *Client) Address() string {
	return c.address
}

// SetDebugMode toggles verbose error formatting at runtime.
func (c *Client) SetDebugMode(enabled bool) {
	c.debugMode.Store(enabled)
}

// IsDebugMode reports whether verbose error formatting is on.
func (c *Client) IsDebugMode() bool {
	return c.debugMode.Load()
}

// Logger exposes the client logger for sessions and the pool.
func (c *Client) Logger() Logger {
	return c.logger
}

// Close releases the pending transport, if any, and marks the client
// closed. Sessions already handed out stay usable until their own Close.
// Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		pending.Close()
	}

	if c.stateMgr.GetState() == CONNECTED {
		meta := map[string]interface{}{"reason": "user_initiated"}
		c.stateMgr.TransitionTo(DISCONNECTING, nil, meta)
		c.stateMgr.TransitionTo(DISCONNECTED, nil, meta)
	}

	c.logger.Info("client closed")
	return nil
}

// parseAddress validates the address form and applies the default port.
func parseAddress(addr string) (string, error) {
	if addr == "" {
		return "", &ConnectionError{
			Code:      "INVALID_ADDRESS",
			Type:      "CONNECTION_ERROR",
			Message:   "empty address",
			Timestamp: time.Now(),
		}
	}

	if i := strings.Index(addr, "://"); i >= 0 {
		scheme := addr[:i]
		if scheme != "orientdb" {
			return "", &ConnectionError{
				Code:    "INVALID_ADDRESS",
				Type:    "CONNECTION_ERROR",
				Message: "unsupported scheme: " + scheme,
				Details: map[string]interface{}{
					"address": addr,
				},
				Timestamp: time.Now(),
			}
		}
		addr = addr[i+3:]
	}

	if addr == "" {
		return "", &ConnectionError{
			Code:      "INVALID_ADDRESS",
			Type:      "CONNECTION_ERROR",
			Message:   "address missing host",
			Timestamp: time.Now(),
		}
	}

	if !strings.Contains(addr, ":") {
		addr += ":" + defaultPort
	}
	return addr, nil
}
