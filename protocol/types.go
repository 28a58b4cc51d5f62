package protocol

// FieldType tags a serialized value inside record content.
type FieldType byte

const (
	TypeBoolean      FieldType = 0
	TypeInteger      FieldType = 1
	TypeShort        FieldType = 2
	TypeLong         FieldType = 3
	TypeFloat        FieldType = 4
	TypeDouble       FieldType = 5
	TypeDatetime     FieldType = 6
	TypeString       FieldType = 7
	TypeBinary       FieldType = 8
	TypeEmbedded     FieldType = 9
	TypeEmbeddedList FieldType = 10
	TypeEmbeddedSet  FieldType = 11
	TypeEmbeddedMap  FieldType = 12
	TypeLink         FieldType = 13
	TypeByte         FieldType = 17
	TypeDate         FieldType = 19
	TypeDecimal      FieldType = 21

	// TypeAny tags a null value; no value bytes follow.
	TypeAny FieldType = 23
)

// String returns the schema name of the type for diagnostics.
func (t FieldType) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInteger:
		return "INTEGER"
	case TypeShort:
		return "SHORT"
	case TypeLong:
		return "LONG"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeDatetime:
		return "DATETIME"
	case TypeString:
		return "STRING"
	case TypeBinary:
		return "BINARY"
	case TypeEmbedded:
		return "EMBEDDED"
	case TypeEmbeddedList:
		return "EMBEDDEDLIST"
	case TypeEmbeddedSet:
		return "EMBEDDEDSET"
	case TypeEmbeddedMap:
		return "EMBEDDEDMAP"
	case TypeLink:
		return "LINK"
	case TypeByte:
		return "BYTE"
	case TypeDate:
		return "DATE"
	case TypeDecimal:
		return "DECIMAL"
	case TypeAny:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}
