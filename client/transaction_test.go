package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/transport/mock"
)

func noneResultFrame() []byte {
	return okFrame(func(w *protocol.Writer) {
		w.WriteByte(protocol.ResultNone)
		w.WriteByte(protocol.PayloadEnd)
	})
}

// sentScriptText digs the script text out of the nth sent frame.
func sentScriptText(t *testing.T, mt *mock.MockTransport, n int) string {
	t.Helper()
	r := sentReader(t, mt, n)
	r.ReadByte()  // opcode
	r.ReadInt32() // session id
	r.ReadByte()  // mode
	inner, _ := r.ReadBytes()

	ir := protocol.NewReader(inner)
	ir.ReadString() // class "s"
	ir.ReadString() // language
	text, _ := ir.ReadString()
	return text
}

// TestTransactionCommit verifies buffered statements ship wrapped in
// BEGIN/COMMIT as a single script.
func TestTransactionCommit(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(noneResultFrame())
	db := newTestDatabase(mt)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.Exec("UPDATE Account SET balance = balance - 100 WHERE name = :from"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if err := tx.Exec("UPDATE Account SET balance = balance + 100 WHERE name = :to"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if err := tx.Bind("from", "alice"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := tx.Bind("to", "bob"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if _, err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	text := sentScriptText(t, mt, 0)
	if !strings.HasPrefix(text, "BEGIN;\n") {
		t.Errorf("script does not start with BEGIN: %q", text)
	}
	if !strings.HasSuffix(text, "\nCOMMIT") {
		t.Errorf("script does not end with COMMIT: %q", text)
	}
	if !strings.Contains(text, "balance - 100") || !strings.Contains(text, "balance + 100") {
		t.Errorf("script is missing buffered statements: %q", text)
	}
}

// TestTransactionCommitRetry verifies the retry clause.
func TestTransactionCommitRetry(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(noneResultFrame())
	db := newTestDatabase(mt)

	tx, _ := db.Begin()
	tx.Exec("UPDATE Counter SET n = n + 1")

	if _, err := tx.CommitWithRetry(5); err != nil {
		t.Fatalf("CommitWithRetry failed: %v", err)
	}

	text := sentScriptText(t, mt, 0)
	if !strings.HasSuffix(text, "COMMIT RETRY 5") {
		t.Errorf("expected COMMIT RETRY 5 suffix, got %q", text)
	}
}

// TestTransactionCommitRetryValidation rejects non-positive attempts.
func TestTransactionCommitRetryValidation(t *testing.T) {
	db := newTestDatabase(mock.NewMockTransport())
	tx, _ := db.Begin()
	tx.Exec("UPDATE Counter SET n = n + 1")

	if _, err := tx.CommitWithRetry(0); err == nil {
		t.Fatal("expected error for zero retry attempts, got nil")
	}
}

// TestTransactionEmptyCommit verifies an empty transaction commits
// without a round trip.
func TestTransactionEmptyCommit(t *testing.T) {
	mt := mock.NewMockTransport()
	db := newTestDatabase(mt)

	tx, _ := db.Begin()
	res, err := tx.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if res.Kind != KindNone {
		t.Errorf("expected KindNone, got %s", res.Kind)
	}
	if mt.GetSendCallCount() != 0 {
		t.Errorf("expected no request for empty commit, got %d", mt.GetSendCallCount())
	}
}

// TestTransactionFinishedGuards verifies a finished transaction rejects
// further use.
func TestTransactionFinishedGuards(t *testing.T) {
	t.Run("after commit", func(t *testing.T) {
		mt := mock.NewMockTransport().QueueFrames(noneResultFrame())
		db := newTestDatabase(mt)

		tx, _ := db.Begin()
		tx.Exec("DELETE FROM Stale")
		if _, err := tx.Commit(); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}

		if err := tx.Exec("INSERT INTO X SET a = 1"); err == nil {
			t.Error("expected Exec after commit to fail")
		}
		if _, err := tx.Commit(); err == nil {
			t.Error("expected second Commit to fail")
		}
		if err := tx.Rollback(); err == nil {
			t.Error("expected Rollback after commit to fail")
		}
	})

	t.Run("after rollback", func(t *testing.T) {
		mt := mock.NewMockTransport()
		db := newTestDatabase(mt)

		tx, _ := db.Begin()
		tx.Exec("DELETE FROM Stale")
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		// Rollback is idempotent.
		if err := tx.Rollback(); err != nil {
			t.Errorf("second Rollback failed: %v", err)
		}
		if _, err := tx.Commit(); err == nil {
			t.Error("expected Commit after rollback to fail")
		}
		if mt.GetSendCallCount() != 0 {
			t.Errorf("rollback is local, expected no requests, got %d", mt.GetSendCallCount())
		}
	})
}

// TestTransactionCommitFailureLeavesOpen verifies a server rejection
// leaves the transaction open for rollback or retry.
func TestTransactionCommitFailureLeavesOpen(t *testing.T) {
	mt := mock.NewMockTransport().QueueFrames(
		errFrame(ServerException{
			Class:   "com.orientechnologies.orient.core.exception.OConcurrentModificationException",
			Message: "version mismatch on #10:3",
		}),
		noneResultFrame(),
	)
	db := newTestDatabase(mt)

	tx, _ := db.Begin()
	tx.Exec("UPDATE Person SET name = 'x' WHERE @rid = #10:3")

	_, err := tx.Commit()
	if err == nil {
		t.Fatal("expected commit rejection, got nil")
	}
	if !IsConcurrentModification(err) {
		t.Errorf("expected concurrent-modification classification, got %v", err)
	}

	// Still open: the retry commit succeeds.
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("retry Commit failed: %v", err)
	}
}

// TestInTransaction verifies the callback wrapper.
func TestInTransaction(t *testing.T) {
	t.Run("success commits", func(t *testing.T) {
		mt := mock.NewMockTransport().QueueFrames(noneResultFrame())
		db := newTestDatabase(mt)

		_, err := db.InTransaction(func(tx *Tx) error {
			return tx.Exec("INSERT INTO Audit SET action = 'ok'")
		})
		if err != nil {
			t.Fatalf("InTransaction failed: %v", err)
		}
		if mt.GetSendCallCount() != 1 {
			t.Errorf("expected 1 commit request, got %d", mt.GetSendCallCount())
		}
	})

	t.Run("error rolls back", func(t *testing.T) {
		mt := mock.NewMockTransport()
		db := newTestDatabase(mt)

		boom := fmt.Errorf("validation failed upstream")
		_, err := db.InTransaction(func(tx *Tx) error {
			tx.Exec("INSERT INTO Audit SET action = 'no'")
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected callback error, got %v", err)
		}
		if mt.GetSendCallCount() != 0 {
			t.Errorf("expected rollback without requests, got %d", mt.GetSendCallCount())
		}
	})

	t.Run("panic rolls back and repanics", func(t *testing.T) {
		mt := mock.NewMockTransport()
		db := newTestDatabase(mt)

		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
			if mt.GetSendCallCount() != 0 {
				t.Errorf("expected rollback without requests, got %d", mt.GetSendCallCount())
			}
		}()

		db.InTransaction(func(tx *Tx) error {
			panic("boom")
		})
	})
}
