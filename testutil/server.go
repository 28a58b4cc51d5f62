// Package testutil provides an in-process OrientDB wire server and
// fixture builders for driver tests. The server speaks the real binary
// protocol over a loopback listener, so tests exercise the full client
// stack including the TCP transport and frame codec.
package testutil

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/record"
)

// ServerFault is an error a handler returns to produce a status-1
// response carrying a server exception chain.
type ServerFault struct {
	Class   string
	Message string
}

func (f *ServerFault) Error() string {
	return fmt.Sprintf("%s: %s", f.Class, f.Message)
}

// Exception class names matching what a real server raises, so the
// client's error predicates classify faults the same way.
const (
	ExceptionGeneric       = "com.orientechnologies.common.exception.OException"
	ExceptionSecurity      = "com.orientechnologies.orient.core.exception.OSecurityAccessException"
	ExceptionDatabase      = "com.orientechnologies.orient.core.exception.ODatabaseException"
	ExceptionStorage       = "com.orientechnologies.orient.core.exception.OStorageException"
	ExceptionConcurrentMod = "com.orientechnologies.orient.core.exception.OConcurrentModificationException"
	ExceptionCommand       = "com.orientechnologies.orient.core.exception.OCommandExecutionException"
)

// Request is one decoded client request: the opcode, the session id the
// client echoed, and a reader positioned at the operation payload.
type Request struct {
	Op        protocol.OpCode
	SessionID int32
	Body      *protocol.Reader
}

// Handler produces the success payload for a request (the bytes after
// the status byte). Returning a *ServerFault produces an error response
// instead; any other error is wrapped in a generic exception.
type Handler func(req *Request) ([]byte, error)

// Cluster is one entry of the cluster table sent in the DB_OPEN
// response.
type Cluster struct {
	Name string
	ID   int16
}

// storedRecord is one record held by the in-memory store.
type storedRecord struct {
	content []byte
	version int32
}

// Server is an in-process OrientDB protocol server. Lifecycle
// operations and record CRUD work out of the box against an in-memory
// catalog and record store; anything else is scripted per opcode with
// Handle. Configure before the first client connects.
type Server struct {
	ln      net.Listener
	version int16
	release string

	user string
	pass string
	size int64

	mu        sync.Mutex
	databases map[string]string
	clusters  []Cluster
	records   map[record.RID]*storedRecord
	positions map[int16]int64
	handlers  map[protocol.OpCode]Handler
	conns     map[net.Conn]struct{}
	ops       []protocol.OpCode
	closed    bool

	nextSession atomic.Int32
	wg          sync.WaitGroup
}

// StartServer listens on a loopback port and begins accepting
// connections. The zero configuration accepts root/root, reports the
// newest supported protocol version and serves one database "testdb"
// with a default cluster table.
func StartServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:      ln,
		version: protocol.MaxProtocolVersion,
		release: "3.2.29 (build test)",
		user:    "root",
		pass:    "root",
		size:    1 << 20,
		databases: map[string]string{
			"testdb": "plocal:/data/databases/testdb",
		},
		clusters: []Cluster{
			{Name: "internal", ID: 0},
			{Name: "default", ID: 3},
		},
		records:   make(map[record.RID]*storedRecord),
		positions: make(map[int16]int64),
		handlers:  make(map[protocol.OpCode]Handler),
		conns:     make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// NewServer starts a server and ties its shutdown to the test.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s, err := StartServer()
	if err != nil {
		t.Fatalf("failed to start test server: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Addr returns the address clients dial.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// WithCredentials sets the accepted user and password. Empty user
// accepts anything.
func (s *Server) WithCredentials(user, pass string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.pass = user, pass
	return s
}

// WithProtocolVersion sets the version sent in the preamble.
func (s *Server) WithProtocolVersion(v int16) *Server {
	s.version = v
	return s
}

// WithDatabases replaces the database catalog.
func (s *Server) WithDatabases(databases map[string]string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases = databases
	return s
}

// WithClusters replaces the cluster table sent on DB_OPEN.
func (s *Server) WithClusters(clusters ...Cluster) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters = clusters
	return s
}

// Handle scripts the response for one opcode, overriding the built-in
// behavior.
func (s *Server) Handle(op protocol.OpCode, h Handler) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[op] = h
	return s
}

// Databases returns a copy of the catalog.
func (s *Server) Databases() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.databases))
	for k, v := range s.databases {
		out[k] = v
	}
	return out
}

// OpLog returns the opcodes received so far, in order.
func (s *Server) OpLog() []protocol.OpCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.OpCode, len(s.ops))
	copy(out, s.ops)
	return out
}

// RecordCount returns the number of records in the in-memory store.
func (s *Server) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close stops accepting, closes every connection and waits for the
// connection goroutines to drain.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.ln.Close()
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) dropConn(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// serveConn speaks the wire protocol on one connection: the version
// preamble frame, then request/response frames until the client sends
// DB_CLOSE or goes away.
func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.dropConn(conn)

	pre := protocol.NewWriter()
	pre.WriteInt16(s.version)
	if err := protocol.WriteFrame(conn, pre.Bytes()); err != nil {
		return
	}

	br := bufio.NewReader(conn)
	for {
		body, err := protocol.ReadFrame(br)
		if err != nil {
			return
		}

		r := protocol.NewReader(body)
		opByte, err := r.ReadByte()
		if err != nil {
			return
		}
		op := protocol.OpCode(opByte)
		sessionID, err := r.ReadInt32()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.ops = append(s.ops, op)
		s.mu.Unlock()

		// DB_CLOSE has no response; the session is over.
		if op == protocol.OpDBClose {
			return
		}

		resp := s.respond(&Request{Op: op, SessionID: sessionID, Body: r})
		if err := protocol.WriteFrame(conn, resp); err != nil {
			return
		}
	}
}

// respond dispatches a request and frames its outcome as a response
// body: status byte plus payload or exception chain.
func (s *Server) respond(req *Request) []byte {
	payload, err := s.dispatch(req)

	w := protocol.NewWriter()
	if err != nil {
		var fault *ServerFault
		if !errors.As(err, &fault) {
			fault = &ServerFault{Class: ExceptionGeneric, Message: err.Error()}
		}
		w.WriteByte(protocol.StatusError)
		w.WriteByte(1)
		w.WriteString(fault.Class)
		w.WriteString(fault.Message)
		w.WriteByte(0)
		return w.Bytes()
	}

	w.WriteByte(protocol.StatusOK)
	w.WriteRaw(payload)
	return w.Bytes()
}

func (s *Server) dispatch(req *Request) ([]byte, error) {
	s.mu.Lock()
	h, ok := s.handlers[req.Op]
	s.mu.Unlock()
	if ok {
		return h(req)
	}

	switch req.Op {
	case protocol.OpConnect:
		return s.handleConnect(req)
	case protocol.OpDBOpen:
		return s.handleDBOpen(req)
	case protocol.OpDBExists:
		return s.handleDBExists(req)
	case protocol.OpDBCreate:
		return s.handleDBCreate(req)
	case protocol.OpDBDrop:
		return s.handleDBDrop(req)
	case protocol.OpDBList:
		return s.handleDBList()
	case protocol.OpDBSize:
		return s.handleDBSize()
	case protocol.OpDBCountRecords:
		return s.handleDBCountRecords()
	case protocol.OpDBReload:
		return s.handleDBReload()
	case protocol.OpRecordCreate:
		return s.handleRecordCreate(req)
	case protocol.OpRecordLoad, protocol.OpRecordLoadIfVersionNotLatest:
		return s.handleRecordLoad(req)
	case protocol.OpRecordUpdate:
		return s.handleRecordUpdate(req)
	case protocol.OpRecordDelete:
		return s.handleRecordDelete(req)
	default:
		return nil, &ServerFault{
			Class:   ExceptionCommand,
			Message: fmt.Sprintf("no handler for operation %s", req.Op),
		}
	}
}

// readHandshakePrefix consumes the driver identification fields shared
// by CONNECT and DB_OPEN requests.
func readHandshakePrefix(r *protocol.Reader) error {
	if _, err := r.ReadString(); err != nil { // driver name
		return err
	}
	if _, err := r.ReadString(); err != nil { // driver version
		return err
	}
	if _, err := r.ReadInt16(); err != nil { // protocol version
		return err
	}
	if _, err := r.ReadString(); err != nil { // client id
		return err
	}
	if _, err := r.ReadString(); err != nil { // serialization impl
		return err
	}
	if _, err := r.ReadBool(); err != nil { // token session
		return err
	}
	return nil
}

func (s *Server) checkCredentials(user, pass string) error {
	s.mu.Lock()
	wantUser, wantPass := s.user, s.pass
	s.mu.Unlock()

	if wantUser != "" && (user != wantUser || pass != wantPass) {
		return &ServerFault{
			Class:   ExceptionSecurity,
			Message: fmt.Sprintf("User or password not valid for username: %s", user),
		}
	}
	return nil
}

func (s *Server) handleConnect(req *Request) ([]byte, error) {
	if err := readHandshakePrefix(req.Body); err != nil {
		return nil, err
	}
	user, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}
	pass, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}
	if err := s.checkCredentials(user, pass); err != nil {
		return nil, err
	}

	w := protocol.NewWriter()
	w.WriteInt32(s.nextSession.Add(1))
	w.WriteBytes(nil) // token
	return w.Bytes(), nil
}

func (s *Server) handleDBOpen(req *Request) ([]byte, error) {
	if err := readHandshakePrefix(req.Body); err != nil {
		return nil, err
	}
	name, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}
	if _, err := req.Body.ReadString(); err != nil { // db type
		return nil, err
	}
	user, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}
	pass, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, exists := s.databases[name]
	clusters := make([]Cluster, len(s.clusters))
	copy(clusters, s.clusters)
	s.mu.Unlock()

	if !exists {
		return nil, &ServerFault{
			Class:   ExceptionDatabase,
			Message: fmt.Sprintf("Database '%s' does not exist", name),
		}
	}
	if err := s.checkCredentials(user, pass); err != nil {
		return nil, err
	}

	w := protocol.NewWriter()
	w.WriteInt32(s.nextSession.Add(1))
	w.WriteBytes(nil) // token
	w.WriteInt16(int16(len(clusters)))
	for _, c := range clusters {
		w.WriteString(c.Name)
		w.WriteInt16(c.ID)
	}
	w.WriteBytes(nil) // cluster config
	w.WriteString(s.release)
	return w.Bytes(), nil
}

func (s *Server) handleDBExists(req *Request) ([]byte, error) {
	name, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, exists := s.databases[name]
	s.mu.Unlock()

	w := protocol.NewWriter()
	w.WriteBool(exists)
	return w.Bytes(), nil
}

func (s *Server) handleDBCreate(req *Request) ([]byte, error) {
	name, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}
	if _, err := req.Body.ReadString(); err != nil { // db type
		return nil, err
	}
	storage, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.databases[name]; exists {
		return nil, &ServerFault{
			Class:   ExceptionDatabase,
			Message: fmt.Sprintf("Database named '%s' already exists", name),
		}
	}
	s.databases[name] = storage + ":/data/databases/" + name
	return nil, nil
}

func (s *Server) handleDBDrop(req *Request) ([]byte, error) {
	name, err := req.Body.ReadString()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.databases[name]; !exists {
		return nil, &ServerFault{
			Class:   ExceptionStorage,
			Message: fmt.Sprintf("Database with name '%s' does not exist", name),
		}
	}
	delete(s.databases, name)
	return nil, nil
}

func (s *Server) handleDBList() ([]byte, error) {
	s.mu.Lock()
	entries := make(map[string]interface{}, len(s.databases))
	for name, path := range s.databases {
		entries[name] = path
	}
	s.mu.Unlock()

	doc := record.NewDocument("").Set("databases", entries)
	content, err := (&record.Serializer{}).Serialize(doc)
	if err != nil {
		return nil, err
	}

	w := protocol.NewWriter()
	w.WriteBytes(content)
	return w.Bytes(), nil
}

func (s *Server) handleDBSize() ([]byte, error) {
	w := protocol.NewWriter()
	w.WriteInt64(s.size)
	return w.Bytes(), nil
}

func (s *Server) handleDBCountRecords() ([]byte, error) {
	s.mu.Lock()
	count := int64(len(s.records))
	s.mu.Unlock()

	w := protocol.NewWriter()
	w.WriteInt64(count)
	return w.Bytes(), nil
}

func (s *Server) handleDBReload() ([]byte, error) {
	s.mu.Lock()
	clusters := make([]Cluster, len(s.clusters))
	copy(clusters, s.clusters)
	s.mu.Unlock()

	w := protocol.NewWriter()
	w.WriteInt16(int16(len(clusters)))
	for _, c := range clusters {
		w.WriteString(c.Name)
		w.WriteInt16(c.ID)
	}
	return w.Bytes(), nil
}

func (s *Server) handleRecordCreate(req *Request) ([]byte, error) {
	clusterID, err := req.Body.ReadInt16()
	if err != nil {
		return nil, err
	}
	content, err := req.Body.ReadBytes()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.positions[clusterID]++
	position := s.positions[clusterID]
	rid := record.RID{ClusterID: clusterID, Position: position}
	s.records[rid] = &storedRecord{content: content, version: 1}
	s.mu.Unlock()

	w := protocol.NewWriter()
	w.WriteInt16(rid.ClusterID)
	w.WriteInt64(rid.Position)
	w.WriteInt32(1)
	return w.Bytes(), nil
}

func (s *Server) handleRecordLoad(req *Request) ([]byte, error) {
	clusterID, err := req.Body.ReadInt16()
	if err != nil {
		return nil, err
	}
	position, err := req.Body.ReadInt64()
	if err != nil {
		return nil, err
	}
	heldVersion := int32(-1)
	if req.Op == protocol.OpRecordLoadIfVersionNotLatest {
		heldVersion, err = req.Body.ReadInt32()
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	rec, ok := s.records[record.RID{ClusterID: clusterID, Position: position}]
	var content []byte
	var version int32
	if ok {
		content = append([]byte(nil), rec.content...)
		version = rec.version
	}
	s.mu.Unlock()

	w := protocol.NewWriter()
	// Missing records, and records for which the caller already holds
	// the latest version, come back as an empty item stream.
	if !ok || (req.Op == protocol.OpRecordLoadIfVersionNotLatest && version <= heldVersion) {
		w.WriteByte(protocol.PayloadEnd)
		return w.Bytes(), nil
	}

	w.WriteByte(protocol.PayloadRecord)
	w.WriteByte(protocol.RecordTypeDocument)
	w.WriteInt32(version)
	w.WriteBytes(content)
	w.WriteByte(protocol.PayloadEnd)
	return w.Bytes(), nil
}

func (s *Server) handleRecordUpdate(req *Request) ([]byte, error) {
	clusterID, err := req.Body.ReadInt16()
	if err != nil {
		return nil, err
	}
	position, err := req.Body.ReadInt64()
	if err != nil {
		return nil, err
	}
	if _, err := req.Body.ReadBool(); err != nil { // update content flag
		return nil, err
	}
	content, err := req.Body.ReadBytes()
	if err != nil {
		return nil, err
	}
	version, err := req.Body.ReadInt32()
	if err != nil {
		return nil, err
	}

	rid := record.RID{ClusterID: clusterID, Position: position}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[rid]
	if !ok {
		return nil, &ServerFault{
			Class:   ExceptionStorage,
			Message: fmt.Sprintf("Record %s does not exist", rid),
		}
	}
	if version >= 0 && version != rec.version {
		return nil, &ServerFault{
			Class: ExceptionConcurrentMod,
			Message: fmt.Sprintf(
				"Cannot UPDATE the record %s because the version is not the latest. Probably you are updating an old record (v%d your=v%d)",
				rid, rec.version, version),
		}
	}

	rec.content = content
	rec.version++

	w := protocol.NewWriter()
	w.WriteInt32(rec.version)
	return w.Bytes(), nil
}

func (s *Server) handleRecordDelete(req *Request) ([]byte, error) {
	clusterID, err := req.Body.ReadInt16()
	if err != nil {
		return nil, err
	}
	position, err := req.Body.ReadInt64()
	if err != nil {
		return nil, err
	}
	version, err := req.Body.ReadInt32()
	if err != nil {
		return nil, err
	}

	rid := record.RID{ClusterID: clusterID, Position: position}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[rid]
	deleted := ok && (version < 0 || version == rec.version)
	if deleted {
		delete(s.records, rid)
	}

	w := protocol.NewWriter()
	w.WriteBool(deleted)
	return w.Bytes(), nil
}
