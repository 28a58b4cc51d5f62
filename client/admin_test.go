package client

import (
	"errors"
	"strings"
	"testing"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/record"
	"github.com/dan-strohschein/orientdb-driver/transport/mock"
)

// newTestAdmin wires a server-level session directly over mt.
func newTestAdmin(mt *mock.MockTransport) *Admin {
	c := newTestClient(mt)
	return &Admin{sess: newSession(c, mt, protocol.MaxProtocolVersion, 7, nil)}
}

// TestDatabaseExists verifies the request fields and flag decode.
func TestDatabaseExists(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"present", true},
		{"absent", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := mock.NewMockTransport().QueueFrames(okFrame(func(w *protocol.Writer) {
				w.WriteBool(tt.exists)
			}))
			admin := newTestAdmin(mt)

			exists, err := admin.DatabaseExists("demo", StorageTypePLocal)
			if err != nil {
				t.Fatalf("DatabaseExists failed: %v", err)
			}
			if exists != tt.exists {
				t.Errorf("expected exists=%v, got %v", tt.exists, exists)
			}

			r := sentReader(t, mt, 0)
			if op, _ := r.ReadByte(); op != byte(protocol.OpDBExists) {
				t.Errorf("expected opcode %d, got %d", protocol.OpDBExists, op)
			}
			sid, _ := r.ReadInt32()
			if sid != 7 {
				t.Errorf("expected session id 7, got %d", sid)
			}
			name, _ := r.ReadString()
			if name != "demo" {
				t.Errorf("expected db name demo, got %q", name)
			}
			storage, _ := r.ReadString()
			if storage != "plocal" {
				t.Errorf("expected storage plocal, got %q", storage)
			}
			if r.Remaining() != 0 {
				t.Errorf("expected fully consumed request, %d bytes left", r.Remaining())
			}
		})
	}
}

// TestCreateDatabase verifies the request fields.
func TestCreateDatabase(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(okFrame(nil))
	admin := newTestAdmin(mt)

	if err := admin.CreateDatabase("demo", DatabaseTypeGraph, StorageTypeMemory); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}

	r := sentReader(t, mt, 0)
	if op, _ := r.ReadByte(); op != byte(protocol.OpDBCreate) {
		t.Errorf("expected opcode %d, got %d", protocol.OpDBCreate, op)
	}
	r.ReadInt32() // session id
	name, _ := r.ReadString()
	dbType, _ := r.ReadString()
	storage, _ := r.ReadString()
	if name != "demo" || dbType != "graph" || storage != "memory" {
		t.Errorf("unexpected create fields: %q %q %q", name, dbType, storage)
	}
}

// TestCreateDatabaseAlreadyExists verifies the duplicate classification.
func TestCreateDatabaseAlreadyExists(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(errFrame(ServerException{
		Class:   "com.orientechnologies.orient.core.exception.ODatabaseException",
		Message: "Database named 'demo' already exists: plocal:/orientdb/databases/demo",
	}))
	admin := newTestAdmin(mt)

	err := admin.CreateDatabase("demo", DatabaseTypeDocument, StorageTypePLocal)
	if err == nil {
		t.Fatal("expected error for duplicate database")
	}
	if !IsDatabaseAlreadyExists(err) {
		t.Errorf("expected already-exists classification, got %v", err)
	}
	if !admin.IsAlive() {
		t.Error("expected session alive after server error")
	}
}

// TestDropDatabaseNotFound verifies the chain names the exception class and
// the database.
func TestDropDatabaseNotFound(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(errFrame(ServerException{
		Class:   "com.orientechnologies.orient.core.exception.OStorageException",
		Message: "Database with name 'ghost' does not exist",
	}))
	admin := newTestAdmin(mt)

	err := admin.DropDatabase("ghost", StorageTypePLocal)
	if err == nil {
		t.Fatal("expected error for missing database")
	}

	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected ServerError, got %T", err)
	}
	if !srvErr.HasExceptionClass("OStorageException") {
		t.Errorf("expected OStorageException, got %v", srvErr.Exceptions)
	}
	if !strings.Contains(srvErr.Exceptions[0].Message, "ghost") {
		t.Errorf("expected database name in message, got %q", srvErr.Exceptions[0].Message)
	}
	if !IsDatabaseNotFound(err) {
		t.Errorf("expected not-found classification, got %v", err)
	}
}

// TestDropDatabaseWire verifies the request fields.
func TestDropDatabaseWire(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(okFrame(nil))
	admin := newTestAdmin(mt)

	if err := admin.DropDatabase("demo", StorageTypePLocal); err != nil {
		t.Fatalf("DropDatabase failed: %v", err)
	}

	r := sentReader(t, mt, 0)
	if op, _ := r.ReadByte(); op != byte(protocol.OpDBDrop) {
		t.Errorf("expected opcode %d, got %d", protocol.OpDBDrop, op)
	}
	r.ReadInt32() // session id
	name, _ := r.ReadString()
	storage, _ := r.ReadString()
	if name != "demo" || storage != "plocal" {
		t.Errorf("unexpected drop fields: %q %q", name, storage)
	}
}

// TestListDatabases verifies the serialized catalog decode.
func TestListDatabases(t *testing.T) {
	catalog := record.NewDocument("").Set("databases", map[string]interface{}{
		"demo":  "plocal:/orientdb/databases/demo",
		"tempo": "memory:tempo",
	})
	content, err := (&record.Serializer{}).Serialize(catalog)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	mt := mock.NewMockTransport().QueueFrames(okFrame(func(w *protocol.Writer) {
		w.WriteBytes(content)
	}))
	admin := newTestAdmin(mt)

	databases, err := admin.ListDatabases()
	if err != nil {
		t.Fatalf("ListDatabases failed: %v", err)
	}

	if len(databases) != 2 {
		t.Fatalf("expected 2 databases, got %d", len(databases))
	}
	if databases["demo"] != "plocal:/orientdb/databases/demo" {
		t.Errorf("unexpected demo path: %q", databases["demo"])
	}
	if databases["tempo"] != "memory:tempo" {
		t.Errorf("unexpected tempo path: %q", databases["tempo"])
	}

	r := sentReader(t, mt, 0)
	if op, _ := r.ReadByte(); op != byte(protocol.OpDBList) {
		t.Errorf("expected opcode %d, got %d", protocol.OpDBList, op)
	}
}

// TestListDatabasesEmpty verifies a catalog without entries decodes to an
// empty map.
func TestListDatabasesEmpty(t *testing.T) {
	content, err := (&record.Serializer{}).Serialize(record.NewDocument(""))
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	mt := mock.NewMockTransport().QueueFrames(okFrame(func(w *protocol.Writer) {
		w.WriteBytes(content)
	}))
	admin := newTestAdmin(mt)

	databases, err := admin.ListDatabases()
	if err != nil {
		t.Fatalf("ListDatabases failed: %v", err)
	}
	if len(databases) != 0 {
		t.Errorf("expected no databases, got %d", len(databases))
	}
}

// TestAdminLifecycle runs exists, create, exists, drop, exists on one
// session and checks each outcome.
func TestAdminLifecycle(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(
		okFrame(func(w *protocol.Writer) { w.WriteBool(false) }),
		okFrame(nil),
		okFrame(func(w *protocol.Writer) { w.WriteBool(true) }),
		okFrame(nil),
		okFrame(func(w *protocol.Writer) { w.WriteBool(false) }),
	)
	admin := newTestAdmin(mt)

	exists, err := admin.DatabaseExists("demo", StorageTypeMemory)
	if err != nil || exists {
		t.Fatalf("expected demo absent, got %v (err %v)", exists, err)
	}

	if err := admin.CreateDatabase("demo", DatabaseTypeDocument, StorageTypeMemory); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}

	exists, err = admin.DatabaseExists("demo", StorageTypeMemory)
	if err != nil || !exists {
		t.Fatalf("expected demo present after create, got %v (err %v)", exists, err)
	}

	if err := admin.DropDatabase("demo", StorageTypeMemory); err != nil {
		t.Fatalf("DropDatabase failed: %v", err)
	}

	exists, err = admin.DatabaseExists("demo", StorageTypeMemory)
	if err != nil || exists {
		t.Fatalf("expected demo absent after drop, got %v (err %v)", exists, err)
	}

	if mt.GetSendCallCount() != 5 {
		t.Errorf("expected 5 requests, got %d", mt.GetSendCallCount())
	}
}

// TestAdminClose verifies close is idempotent.
func TestAdminClose(t *testing.T) {
	mt := mock.NewMockTransport()
	admin := newTestAdmin(mt)

	if err := admin.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if admin.IsAlive() {
		t.Error("expected session dead after close")
	}
	if err := admin.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
