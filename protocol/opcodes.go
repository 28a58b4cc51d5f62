// Package protocol provides encoding/decoding for the OrientDB binary wire protocol.
package protocol

// OpCode identifies a request operation on the wire.
type OpCode byte

const (
	// Server-level operations
	OpConnect OpCode = 2
	OpDBOpen  OpCode = 3

	// Database lifecycle operations
	OpDBCreate       OpCode = 4
	OpDBClose        OpCode = 5
	OpDBExists       OpCode = 6
	OpDBDrop         OpCode = 7
	OpDBSize         OpCode = 8
	OpDBCountRecords OpCode = 9

	// Record operations
	OpRecordLoad                   OpCode = 30
	OpRecordCreate                 OpCode = 31
	OpRecordUpdate                 OpCode = 32
	OpRecordDelete                 OpCode = 33
	OpRecordLoadIfVersionNotLatest OpCode = 44

	// Command execution
	OpCommand OpCode = 41

	// Cluster configuration
	OpDBReload OpCode = 73
	OpDBList   OpCode = 74
)

// String returns the protocol name of the operation for logging.
func (op OpCode) String() string {
	switch op {
	case OpConnect:
		return "CONNECT"
	case OpDBOpen:
		return "DB_OPEN"
	case OpDBCreate:
		return "DB_CREATE"
	case OpDBClose:
		return "DB_CLOSE"
	case OpDBExists:
		return "DB_EXISTS"
	case OpDBDrop:
		return "DB_DROP"
	case OpDBSize:
		return "DB_SIZE"
	case OpDBCountRecords:
		return "DB_COUNTRECORDS"
	case OpRecordLoad:
		return "RECORD_LOAD"
	case OpRecordCreate:
		return "RECORD_CREATE"
	case OpRecordUpdate:
		return "RECORD_UPDATE"
	case OpRecordDelete:
		return "RECORD_DELETE"
	case OpRecordLoadIfVersionNotLatest:
		return "RECORD_LOAD_IF_VERSION_NOT_LATEST"
	case OpCommand:
		return "COMMAND"
	case OpDBReload:
		return "DB_RELOAD"
	case OpDBList:
		return "DB_LIST"
	default:
		return "UNKNOWN"
	}
}

const (
	// MinProtocolVersion is the oldest server protocol revision this driver speaks.
	MinProtocolVersion int16 = 26

	// MaxProtocolVersion is the newest server protocol revision this driver speaks.
	MaxProtocolVersion int16 = 38

	// SessionNone is the session id sent before the server has assigned one.
	SessionNone int32 = -1
)

// Response status bytes, first byte of every response body.
const (
	StatusOK    byte = 0
	StatusError byte = 1
)

// Payload status bytes delimiting record items in load and command responses.
const (
	PayloadEnd        byte = 0
	PayloadRecord     byte = 1
	PayloadPrefetched byte = 2
)

// Record type bytes carried alongside record content.
const (
	RecordTypeDocument byte = 'd'
)

// Command execution modes. Only synchronous execution is supported.
const (
	CommandModeSync byte = 's'
)

// Command payload classes selecting the server-side command implementation.
const (
	CommandClassQuery   = "q"
	CommandClassCommand = "c"
	CommandClassScript  = "s"
)

// Command result type bytes, first byte of a successful command response.
const (
	ResultNone       byte = 'n'
	ResultRecord     byte = 'r'
	ResultCollection byte = 'l'
	ResultSet        byte = 's'
	ResultScalar     byte = 'a'
)
