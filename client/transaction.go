package client

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tx is a client-buffered optimistic transaction. Statements accumulate
// locally and ship to the server as one SQL script wrapped in
// BEGIN/COMMIT, so the whole transaction applies atomically in a single
// round trip. Nothing reaches the server before Commit; Rollback only
// discards the buffer.
//
// The server resolves conflicts optimistically at commit time. A
// concurrent-modification rejection surfaces as a ServerError for which
// IsConcurrentModification reports true; CommitWithRetry asks the
// server to re-run the conflicting script instead.
type Tx struct {
	id        string
	db        *Database
	batch     *Batch
	startedAt time.Time

	mu         sync.Mutex
	committed  bool
	rolledBack bool
}

// Begin starts a buffered transaction on this database session.
func (db *Database) Begin() (*Tx, error) {
	if !db.IsAlive() {
		return nil, ErrConnectionClosed("begin transaction")
	}

	tx := &Tx{
		id:        uuid.New().String(),
		db:        db,
		batch:     db.NewBatch(),
		startedAt: time.Now(),
	}

	db.sess.client.Logger().Debug("transaction started",
		String("tx_id", tx.id),
		String("database", db.Name()))

	return tx, nil
}

// ID returns the client-side transaction identifier used in logs.
func (tx *Tx) ID() string {
	return tx.id
}

// guard rejects use of a finished transaction.
func (tx *Tx) guard() error {
	if tx.committed {
		return fmt.Errorf("transaction %s already committed", tx.id)
	}
	if tx.rolledBack {
		return fmt.Errorf("transaction %s already rolled back", tx.id)
	}
	return nil
}

// Exec buffers one statement for the commit script.
func (tx *Tx) Exec(stmt string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if err := tx.guard(); err != nil {
		return err
	}
	tx.batch.Add(stmt)
	return nil
}

// Let buffers a statement whose result binds to a script variable,
// usable as $name by later statements and Return.
func (tx *Tx) Let(name, stmt string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if err := tx.guard(); err != nil {
		return err
	}
	tx.batch.Let(name, stmt)
	return nil
}

// Bind attaches a named parameter shared by every buffered statement.
func (tx *Tx) Bind(name string, value interface{}) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if err := tx.guard(); err != nil {
		return err
	}
	tx.batch.Bind(name, value)
	return nil
}

// Return sets the expression the commit script surfaces as its result.
func (tx *Tx) Return(expr string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if err := tx.guard(); err != nil {
		return err
	}
	tx.batch.Return(expr)
	return nil
}

// Len reports the number of buffered statements.
func (tx *Tx) Len() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.batch.Len()
}

// Commit sends the buffered statements wrapped in BEGIN/COMMIT and
// marks the transaction finished. An empty transaction commits as a
// no-op without a round trip.
func (tx *Tx) Commit() (*Result, error) {
	return tx.commit(0)
}

// CommitWithRetry commits with `COMMIT RETRY n`: the server re-runs
// the script up to n times when optimistic conflict detection rejects
// it, instead of surfacing the first conflict.
func (tx *Tx) CommitWithRetry(attempts int) (*Result, error) {
	if attempts < 1 {
		return nil, fmt.Errorf("commit retry attempts must be positive, got %d", attempts)
	}
	return tx.commit(attempts)
}

func (tx *Tx) commit(retry int) (*Result, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if err := tx.guard(); err != nil {
		return nil, err
	}

	if tx.batch.Len() == 0 {
		tx.committed = true
		tx.db.sess.client.Logger().Debug("empty transaction committed", String("tx_id", tx.id))
		return &Result{Kind: KindNone}, nil
	}

	commitStmt := "COMMIT"
	if retry > 0 {
		commitStmt = fmt.Sprintf("COMMIT RETRY %d", retry)
	}

	script := "BEGIN;\n" + tx.batch.Script() + ";\n" + commitStmt

	var opts *CommandOptions
	if len(tx.batch.params) > 0 {
		opts = &CommandOptions{Params: tx.batch.params}
	}

	res, err := tx.db.Script("sql", script, opts)
	if err != nil {
		// The script failed as a unit; the transaction stays open so
		// the caller can Rollback or retry the commit.
		tx.db.sess.client.Logger().Warn("transaction commit failed",
			String("tx_id", tx.id),
			Int("statements", tx.batch.Len()),
			Error("error", err))
		return nil, err
	}

	tx.committed = true
	tx.db.sess.client.Logger().Info("transaction committed",
		String("tx_id", tx.id),
		Int("statements", tx.batch.Len()),
		Duration("duration", time.Since(tx.startedAt)))

	return res, nil
}

// Rollback discards the buffered statements. Nothing was sent to the
// server, so this is purely local. Idempotent after Commit failure.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed {
		return fmt.Errorf("transaction %s already committed", tx.id)
	}
	if tx.rolledBack {
		return nil
	}

	tx.rolledBack = true
	tx.db.sess.client.Logger().Debug("transaction rolled back",
		String("tx_id", tx.id),
		Int("discarded_statements", tx.batch.Len()))
	return nil
}

// InTransaction runs fn inside a transaction and commits when fn
// returns nil. An error from fn rolls back the buffer and returns the
// error. A panic inside fn rolls back, logs the stack, and re-panics.
func (db *Database) InTransaction(fn func(tx *Tx) error) (*Result, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				db.sess.client.Logger().Error("rollback after panic failed",
					String("tx_id", tx.id),
					Error("error", rbErr))
			}
			db.sess.client.Logger().Error("panic in transaction",
				String("tx_id", tx.id),
				String("panic", fmt.Sprintf("%v", r)),
				String("stack", string(debug.Stack())))
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.sess.client.Logger().Error("rollback failed",
				String("tx_id", tx.id),
				Error("error", rbErr))
		}
		return nil, err
	}

	return tx.Commit()
}
