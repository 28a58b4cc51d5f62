package client

import (
	"errors"
	"strings"
	"sync"

	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/record"
	"github.com/dan-strohschein/orientdb-driver/schema"
)

// Storage types accepted by database lifecycle operations.
const (
	StorageTypePLocal = "plocal"
	StorageTypeMemory = "memory"
)

// Database types accepted by Open and CreateDatabase.
const (
	DatabaseTypeDocument = "document"
	DatabaseTypeGraph    = "graph"
)

// schemaQuery fetches the global property catalog backing compact field
// references.
const schemaQuery = "select expand(globalProperties) from metadata:schema"

// Class and index metadata queries backing FetchSchema.
const (
	classesQuery = "select expand(classes) from metadata:schema"
	indexesQuery = "select expand(indexes) from metadata:indexmanager"
)

// Cluster is one entry of the database's cluster configuration.
type Cluster struct {
	Name string
	ID   int16
}

// Database is a database-level session created by Client.Open. It owns the
// record and command operations, the cluster table the server announced at
// open, and the schema cache resolving compact field references.
type Database struct {
	name    string
	release string
	sess    *session
	schema  *schema.Cache
	ser     *record.Serializer

	clustersMu sync.RWMutex
	clusters   []Cluster
}

func newDatabase(c *Client, sess *session, name string, clusters []Cluster, release string) *Database {
	cache := schema.NewCache()
	return &Database{
		name:     name,
		release:  release,
		sess:     sess,
		schema:   cache,
		ser:      &record.Serializer{Resolver: cache, Index: cache},
		clusters: clusters,
	}
}

// Name returns the database name.
func (db *Database) Name() string {
	return db.name
}

// ServerRelease returns the server release string from the open handshake.
func (db *Database) ServerRelease() string {
	return db.release
}

// SessionID returns the server-assigned session id.
func (db *Database) SessionID() int32 {
	return db.sess.SessionID()
}

// IsAlive reports whether the underlying session can still carry requests.
func (db *Database) IsAlive() bool {
	return db.sess.IsAlive()
}

// Schema returns the catalog cache backing compact field decoding.
func (db *Database) Schema() *schema.Cache {
	return db.schema
}

// Clusters returns a copy of the cluster configuration.
func (db *Database) Clusters() []Cluster {
	db.clustersMu.RLock()
	defer db.clustersMu.RUnlock()
	clusters := make([]Cluster, len(db.clusters))
	copy(clusters, db.clusters)
	return clusters
}

// ClusterID resolves a cluster name, case-insensitively.
func (db *Database) ClusterID(name string) (int16, bool) {
	db.clustersMu.RLock()
	defer db.clustersMu.RUnlock()
	for _, c := range db.clusters {
		if strings.EqualFold(c.Name, name) {
			return c.ID, true
		}
	}
	return 0, false
}

// Reload refreshes the cluster configuration from the server.
func (db *Database) Reload() error {
	r, err := db.sess.request(protocol.OpDBReload, nil)
	if err != nil {
		return err
	}

	clusters, err := readClusterTable(r)
	if err != nil {
		return err
	}

	db.clustersMu.Lock()
	db.clusters = clusters
	db.clustersMu.Unlock()

	db.sess.client.logger.Debug("cluster configuration reloaded",
		String("database", db.name),
		Int("clusters", len(clusters)))
	return nil
}

// Size returns the database size in bytes.
func (db *Database) Size() (int64, error) {
	r, err := db.sess.request(protocol.OpDBSize, nil)
	if err != nil {
		return 0, err
	}

	size, err := r.ReadInt64()
	if err != nil {
		return 0, ErrProtocolViolation("db size response missing value", nil, err)
	}
	return size, nil
}

// CountRecords returns the number of records in the database.
func (db *Database) CountRecords() (int64, error) {
	r, err := db.sess.request(protocol.OpDBCountRecords, nil)
	if err != nil {
		return 0, err
	}

	count, err := r.ReadInt64()
	if err != nil {
		return 0, ErrProtocolViolation("record count response missing value", nil, err)
	}
	return count, nil
}

// Ping verifies the session end to end with a cheap size request.
func (db *Database) Ping() error {
	_, err := db.Size()
	return err
}

// LoadOptions tunes LoadRecord. The zero value uses the client's default
// fetch plan, allows the server cache, and applies no version guard.
type LoadOptions struct {
	// FetchPlan controls eager link resolution, e.g. "*:0" (none) or
	// "*:-1" (unlimited depth).
	FetchPlan string

	// IgnoreCache asks the server to bypass its record cache.
	IgnoreCache bool

	// IfVersionNotLatest skips the transfer when the stored version is not
	// newer than Version; the result set comes back empty. Avoids moving
	// unchanged records.
	IfVersionNotLatest bool

	// Version is the version the caller already holds. Only read when
	// IfVersionNotLatest is set.
	Version int32
}

// LoadRecord fetches a record, plus whatever the fetch plan resolved ahead
// of time. Zero primary records is a normal outcome under the version guard.
func (db *Database) LoadRecord(rid record.RID, opts *LoadOptions) (*record.ResultSet, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}
	plan := opts.FetchPlan
	if plan == "" {
		plan = db.sess.client.opts.DefaultFetchPlan
	}

	op := protocol.OpRecordLoad
	if opts.IfVersionNotLatest {
		op = protocol.OpRecordLoadIfVersionNotLatest
	}

	r, err := db.sess.request(op, func(w *protocol.Writer) {
		w.WriteInt16(rid.ClusterID)
		w.WriteInt64(rid.Position)
		if opts.IfVersionNotLatest {
			w.WriteInt32(opts.Version)
		}
		w.WriteString(plan)
		w.WriteBool(opts.IgnoreCache)
	})
	if err != nil {
		return nil, err
	}

	payload := remainingBytes(r)
	var rs *record.ResultSet
	err = db.withSchemaRetry(func() error {
		var derr error
		rs, derr = decodeLoadPayload(db.ser, rid, payload)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// CreateRecord stores a document in the given cluster and returns the
// server-assigned identity and initial version, also set on the document.
func (db *Database) CreateRecord(clusterID int16, doc *record.Document) (record.RID, int32, error) {
	content, err := db.ser.Serialize(doc)
	if err != nil {
		return record.NullRID, 0, err
	}

	r, err := db.sess.request(protocol.OpRecordCreate, func(w *protocol.Writer) {
		w.WriteInt16(clusterID)
		w.WriteBytes(content)
		w.WriteByte(protocol.RecordTypeDocument)
		w.WriteByte(0) // synchronous mode
	})
	if err != nil {
		return record.NullRID, 0, err
	}

	cluster, err := r.ReadInt16()
	if err != nil {
		return record.NullRID, 0, ErrProtocolViolation("create response missing cluster id", nil, err)
	}
	position, err := r.ReadInt64()
	if err != nil {
		return record.NullRID, 0, ErrProtocolViolation("create response missing position", nil, err)
	}
	version, err := r.ReadInt32()
	if err != nil {
		return record.NullRID, 0, ErrProtocolViolation("create response missing version", nil, err)
	}

	rid := record.RID{ClusterID: cluster, Position: position}
	doc.RID = rid
	doc.Version = version

	db.sess.client.logger.Debug("record created",
		RIDField("rid", rid),
		Int32("version", version))
	return rid, version, nil
}

// UpdateRecord replaces a record's content guarded by the optimistic
// version and returns the new version, also set on the document. A stale
// version surfaces the server's concurrent-modification chain;
// IsConcurrentModification classifies it.
func (db *Database) UpdateRecord(rid record.RID, doc *record.Document, version int32) (int32, error) {
	content, err := db.ser.Serialize(doc)
	if err != nil {
		return 0, err
	}

	r, err := db.sess.request(protocol.OpRecordUpdate, func(w *protocol.Writer) {
		w.WriteInt16(rid.ClusterID)
		w.WriteInt64(rid.Position)
		w.WriteBool(true) // update content
		w.WriteBytes(content)
		w.WriteInt32(version)
		w.WriteByte(protocol.RecordTypeDocument)
		w.WriteByte(0) // synchronous mode
	})
	if err != nil {
		return 0, err
	}

	newVersion, err := r.ReadInt32()
	if err != nil {
		return 0, ErrProtocolViolation("update response missing version", nil, err)
	}

	doc.RID = rid
	doc.Version = newVersion

	db.sess.client.logger.Debug("record updated",
		RIDField("rid", rid),
		Int32("version", newVersion))
	return newVersion, nil
}

// DeleteRecord removes a record guarded by the optimistic version. False
// with a nil error means the version was stale or the record is gone, a
// normal outcome.
func (db *Database) DeleteRecord(rid record.RID, version int32) (bool, error) {
	r, err := db.sess.request(protocol.OpRecordDelete, func(w *protocol.Writer) {
		w.WriteInt16(rid.ClusterID)
		w.WriteInt64(rid.Position)
		w.WriteInt32(version)
		w.WriteByte(0) // synchronous mode
	})
	if err != nil {
		return false, err
	}

	deleted, err := r.ReadBool()
	if err != nil {
		return false, ErrProtocolViolation("delete response missing flag", nil, err)
	}

	if deleted {
		db.sess.client.logger.Debug("record deleted", RIDField("rid", rid))
	}
	return deleted, nil
}

// ReloadSchema fetches the global property catalog and swaps the schema
// cache. Concurrent calls collapse into one fetch.
func (db *Database) ReloadSchema() error {
	changed, err := db.schema.Refresh(db.fetchGlobalProperties)
	if err != nil {
		return err
	}
	if changed {
		db.sess.client.logger.Debug("schema catalog replaced",
			String("database", db.name),
			Int("properties", db.schema.Catalog().Len()))
	}
	return nil
}

// fetchGlobalProperties runs the catalog query and converts the rows.
// Catalog records are always name-encoded, so they decode with a bare
// serializer outside the retry path.
func (db *Database) fetchGlobalProperties() ([]schema.Property, error) {
	hookCtx := &HookContext{Command: schemaQuery, CommandType: "query"}
	r, err := db.sess.requestWith(protocol.OpCommand, hookCtx, func(w *protocol.Writer) {
		writeCommandPayload(w, commandSpec{
			class: protocol.CommandClassQuery,
			text:  schemaQuery,
			limit: -1,
		})
	})
	if err != nil {
		return nil, err
	}

	res, err := decodeCommandPayload(&record.Serializer{}, remainingBytes(r))
	if err != nil {
		return nil, err
	}

	props := make([]schema.Property, 0, res.Len())
	for _, doc := range res.Records {
		id, err := doc.FieldAsInt("id")
		if err != nil {
			return nil, ErrProtocolViolation("malformed schema catalog row", map[string]interface{}{
				"row": doc.String(),
			}, err)
		}
		name := doc.FieldAsString("name")
		if name == "" {
			return nil, ErrProtocolViolation("schema catalog row missing name", map[string]interface{}{
				"propertyId": id,
			}, nil)
		}
		props = append(props, schema.Property{
			ID:   int32(id),
			Name: name,
			Type: doc.FieldAsString("type"),
		})
	}
	return props, nil
}

// FetchSchema queries class and index metadata and assembles the class
// schema the server holds, with indexes bound to their classes.
func (db *Database) FetchSchema() (*schema.SchemaDefinition, error) {
	classes, err := db.Query(classesQuery, nil)
	if err != nil {
		return nil, err
	}
	def, err := schema.ParseServerSchema(classes.Records)
	if err != nil {
		return nil, err
	}

	indexes, err := db.Query(indexesQuery, nil)
	if err != nil {
		return nil, err
	}
	parsed, err := schema.ParseServerIndexes(indexes.Records)
	if err != nil {
		return nil, err
	}
	schema.AttachIndexes(def, parsed)
	return def, nil
}

// withSchemaRetry runs decode, and on an unresolved property id reloads
// the schema and retries exactly once. A second miss is terminal.
func (db *Database) withSchemaRetry(decode func() error) error {
	err := decode()
	var unresolved *record.UnresolvedPropertyError
	if !errors.As(err, &unresolved) {
		return err
	}

	db.sess.client.logger.Debug("schema miss, reloading catalog",
		String("database", db.name),
		Int32("property_id", unresolved.PropertyID))

	if rerr := db.ReloadSchema(); rerr != nil {
		return rerr
	}

	err = decode()
	if errors.As(err, &unresolved) {
		return ErrSchemaResolution(unresolved.PropertyID, err)
	}
	return err
}

// Close tells the server the session is ending (best effort, the protocol
// defines no response) and releases the transport. Idempotent.
func (db *Database) Close() error {
	db.sess.sendNoReply(protocol.OpDBClose)
	return db.sess.Close()
}
