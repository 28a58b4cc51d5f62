package client

// Version is set by build flags during compilation.
// Example: go build -ldflags "-X github.com/dan-strohschein/orientdb-driver/client.Version=$(git describe --tags --always --dirty)"
var Version = "dev"

// DriverName identifies this driver to the server during the handshake.
const DriverName = "orientdb-go-driver"

// SerializationImpl names the record format negotiated at handshake time.
const SerializationImpl = "ORecordSerializerBinary"
