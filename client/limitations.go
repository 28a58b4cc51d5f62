package client

// Binary Protocol Limitations
//
// This document tracks the parts of the OrientDB binary protocol this driver
// does not implement yet, and server-side limits that shape the client API.
// Protocol reference: https://orientdb.org/docs/3.2.x/internals/Network-Binary-Protocol.html
//
// Last Updated: August 2026

// Command and Query Limitations

// TODO: Async command mode ('a') not implemented. Commands always run in
// synchronous mode ('s'), so the full result set is decoded before Query
// returns. Streaming a multi-GB result incrementally needs the async frame
// loop (one record per status byte) in session.roundTrip.

// TODO: Live queries (class com.orientechnologies.orient.core.sql.query.OLiveQuery)
// not supported. The session assumes strict request/response framing and has
// no reader goroutine for unsolicited push frames (status byte 3).

// TODO: The 3.x paged query protocol (REQUEST_QUERY/REQUEST_QUERY_NEXT_PAGE)
// is not implemented. All statements go through REQUEST_COMMAND (41), which
// servers keep for backward compatibility. Cursor-style paging needs the new
// opcodes plus server-side result set lifecycle management.

// Named parameters are the only supported placeholder style (:name). The
// positional ? style exists in OrientDB SQL but binds by ordinal into the
// same parameters document with numeric keys; use named placeholders.

// Transaction Limitations

// Transactions are client-buffered SQL batches executed as one script
// (BEGIN; ...; COMMIT [RETRY n]). Statements inside the batch can chain
// through LET variables, but the client cannot read uncommitted rows between
// Exec calls: nothing reaches the server until Commit.

// TODO: The binary optimistic transaction op (REQUEST_TX_COMMIT, 60) is not
// implemented. It ships record-level create/update/delete entries with
// per-record versions and returns rid remapping tables. The SQL batch path
// covers the common cases; the binary path would add typed conflict handling
// per record instead of one OConcurrentModificationException for the batch.

// Nested transactions are not supported by the server. BEGIN inside an
// active server-side transaction raises an error; the client-side Tx keeps
// one batch per Tx value and never nests.

// Isolation is the server default (READ COMMITTED between scripts). There is
// no SET TRANSACTION ISOLATION LEVEL statement in OrientDB SQL.

// Record and Type Limitations

// TODO: Link collections (LINKLIST 14, LINKSET 15, LINKMAP 16) and ridbags
// (LINKBAG 22) are not decoded. Graph edges on vertices created through the
// graph API arrive as ridbag fields and currently fail to decode. Embedded
// ridbags are a length-prefixed rid array; tree-based ridbags additionally
// need the sbtree collection pointer ops (REQUEST_RIDBAG_GET_SIZE, 31 ff).
// Query-level workaround: project out_('E').@rid to flatten edges to LINKs.

// TODO: Custom type (20) is not decoded. Serialized OSerializableStream
// payloads surface as a decode error naming the type tag.

// Only ORecordSerializerBinary (v0) is implemented. Servers still accepting
// ORecordDocument2csv sessions negotiate the csv name in DB_OPEN; this
// driver always sends the binary serializer name and rejects nothing, since
// the server honors whatever the client names.

// Cluster and Admin Limitations

// TODO: Data cluster ops (DATACLUSTER_ADD 10, DATACLUSTER_DROP 11,
// DATACLUSTER_COUNT 12, DATACLUSTER_DATARANGE 13) are not implemented.
// Cluster management falls back to SQL (CREATE CLUSTER, ALTER CLUSTER).
// Cluster ids and names still arrive through the DB_OPEN payload and stay
// queryable via Database.Clusters.

// TODO: REQUEST_RECORD_METADATA (29) not implemented. Loading just the
// rid/version pair currently costs a full RECORD_LOAD.

// Session and Connection Limitations

// Token renewal is passive. When a token-based session expires the server
// errors the next request; the client reconnects rather than refreshing the
// token in place (the protocol carries renewed tokens piggybacked on
// responses, which the session reads but does not proactively refresh).

// One request per session at a time. The protocol multiplexes sessions over
// one socket by session id, but this driver pairs each session with its own
// connection. Concurrency comes from the session pool, not pipelining.

// No distributed awareness. The driver connects to exactly one address and
// ignores cluster topology pushes (REQUEST_PUSH_DISTRIB_CONFIG, 80).
// Failover to replicas means dialing a different address yourself.

// Protocol messages are never compressed. Versions 26 through 38 have no
// frame compression; large result sets cost their full wire size.

// Feature Availability Matrix
//
// | Feature                          | Protocol Op        | Client Support |
// |----------------------------------|--------------------|----------------|
// | Server connect / admin session   | CONNECT (2)        | Implemented    |
// | Database open                    | DB_OPEN (3)        | Implemented    |
// | Database create/drop/exists/list | 4, 7, 6, 74        | Implemented    |
// | Database size / count records    | 8, 9               | Implemented    |
// | Cluster reload                   | DB_RELOAD (73)     | Implemented    |
// | Record load (+version guard)     | 30, 44             | Implemented    |
// | Record create/update/delete      | 31, 32, 33         | Implemented    |
// | SQL command/query/script         | COMMAND (41)       | Implemented    |
// | Async streaming results          | COMMAND mode 'a'   | TODO           |
// | Live queries                     | push frames        | TODO           |
// | Binary transactions              | TX_COMMIT (60)     | TODO           |
// | Cluster management ops           | 10, 11, 12, 13     | SQL fallback   |
// | Ridbag / link collections        | types 14, 15, 16, 22 | TODO         |
// | Paged queries (3.x)              | REQUEST_QUERY      | TODO           |
//
// Supported protocol window: 26 through 38 (OrientDB 2.0 through 3.2).
