// Command orientdb is a command line client for OrientDB servers: database
// lifecycle, record CRUD, SQL queries, schema migrations and code
// generation over the binary protocol.
package main

func main() {
	Execute()
}
