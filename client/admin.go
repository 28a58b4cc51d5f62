package client

import (
	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/record"
)

// Admin is a server-level session created by Client.Auth. It carries the
// database lifecycle operations; record and command operations need a
// database-level session from Client.Open.
type Admin struct {
	sess *session
}

// DatabaseExists reports whether a database exists under the given storage
// type ("plocal" or "memory").
func (a *Admin) DatabaseExists(name, storageType string) (bool, error) {
	r, err := a.sess.request(protocol.OpDBExists, func(w *protocol.Writer) {
		w.WriteString(name)
		w.WriteString(storageType)
	})
	if err != nil {
		return false, err
	}

	exists, err := r.ReadBool()
	if err != nil {
		return false, ErrProtocolViolation("db exists response missing flag", nil, err)
	}
	return exists, nil
}

// CreateDatabase creates a database. Creating a name that already exists
// surfaces the server's exception chain; IsDatabaseAlreadyExists classifies
// it.
func (a *Admin) CreateDatabase(name, dbType, storageType string) error {
	_, err := a.sess.request(protocol.OpDBCreate, func(w *protocol.Writer) {
		w.WriteString(name)
		w.WriteString(dbType)
		w.WriteString(storageType)
	})
	if err != nil {
		return err
	}

	a.sess.client.logger.Info("database created",
		String("database", name),
		String("db_type", dbType),
		String("storage_type", storageType))
	return nil
}

// DropDatabase removes a database. Dropping a nonexistent name surfaces
// the server's exception chain; IsDatabaseNotFound classifies it.
func (a *Admin) DropDatabase(name, storageType string) error {
	_, err := a.sess.request(protocol.OpDBDrop, func(w *protocol.Writer) {
		w.WriteString(name)
		w.WriteString(storageType)
	})
	if err != nil {
		return err
	}

	a.sess.client.logger.Info("database dropped",
		String("database", name),
		String("storage_type", storageType))
	return nil
}

// ListDatabases returns the server's databases as a name to storage-path
// map, decoded from the serialized catalog document.
func (a *Admin) ListDatabases() (map[string]string, error) {
	r, err := a.sess.request(protocol.OpDBList, nil)
	if err != nil {
		return nil, err
	}

	content, err := r.ReadBytes()
	if err != nil {
		return nil, ErrProtocolViolation("db list response missing record", nil, err)
	}

	// The catalog document is always name-encoded.
	ser := &record.Serializer{}
	doc, err := ser.Deserialize(content)
	if err != nil {
		return nil, ErrProtocolViolation("malformed database catalog", nil, err)
	}

	raw, ok := doc.Get("databases")
	if !ok {
		return map[string]string{}, nil
	}
	entries, ok := raw.(map[string]interface{})
	if !ok {
		return nil, ErrProtocolViolation("database catalog is not a map", map[string]interface{}{
			"field": "databases",
		}, nil)
	}

	databases := make(map[string]string, len(entries))
	for name, path := range entries {
		s, ok := path.(string)
		if !ok {
			return nil, ErrProtocolViolation("database path is not a string", map[string]interface{}{
				"database": name,
			}, nil)
		}
		databases[name] = s
	}
	return databases, nil
}

// SessionID returns the server-assigned session id.
func (a *Admin) SessionID() int32 {
	return a.sess.SessionID()
}

// IsAlive reports whether the underlying session can still carry requests.
func (a *Admin) IsAlive() bool {
	return a.sess.IsAlive()
}

// Close releases the session. Idempotent.
func (a *Admin) Close() error {
	return a.sess.Close()
}
