// Package orientdb is a Go driver for the OrientDB binary network
// protocol. It speaks the server's native TCP protocol directly: no
// HTTP, no intermediate gateway.
//
// The root package re-exports the entry points most programs need;
// the full API lives in the subpackages:
//
//   - client: connection lifecycle, sessions, pooling, commands
//   - record: documents, record ids, the binary record serializer
//   - schema: class definitions, diffing, server schema fetch
//   - migration: versioned schema migrations
//   - codegen: Go struct / JSON Schema / GraphQL generation
//
// A minimal session:
//
//	c, err := orientdb.Dial("orientdb://localhost:2424", orientdb.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	db, err := c.Open("mydb", "graph", "admin", "admin")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	res, err := db.Query("select from Person where age > 30", nil)
package orientdb

import (
	"github.com/dan-strohschein/orientdb-driver/client"
	"github.com/dan-strohschein/orientdb-driver/record"
)

// Aliases for the types a typical caller touches, so importing the
// root package alone is enough for everyday use.
type (
	Client         = client.Client
	Options        = client.Options
	Admin          = client.Admin
	Database       = client.Database
	Result         = client.Result
	LoadOptions    = client.LoadOptions
	CommandOptions = client.CommandOptions
	Document       = record.Document
	RID            = record.RID
	ResultSet      = record.ResultSet
)

// Dial connects to a server. The address accepts a bare host:port or an
// orientdb:// URL carrying TLS parameters.
func Dial(addr string, opts Options) (*Client, error) {
	return client.Dial(addr, opts)
}

// DefaultOptions returns the client defaults: single-session pool, 10s
// operation timeout, reconnect with exponential backoff.
func DefaultOptions() Options {
	return client.DefaultOptions()
}

// NewDocument creates an empty document of the given class.
func NewDocument(class string) *Document {
	return record.NewDocument(class)
}
