package record

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dan-strohschein/orientdb-driver/protocol"
)

// SerializerVersion is the record content format revision this driver writes.
const SerializerVersion byte = 0

// maxNestingDepth bounds recursion on embedded structures so corrupt or
// adversarial content cannot blow the stack.
const maxNestingDepth = 128

// PropertyResolver resolves compact property ids to names during decode.
type PropertyResolver interface {
	PropertyName(id int32) (string, bool)
}

// PropertyIndex provides name to id lookups for compact field encoding.
type PropertyIndex interface {
	PropertyID(name string) (int32, bool)
}

// UnresolvedPropertyError reports an id-referenced field whose id the
// resolver does not know. The session layer reloads the schema and retries
// the decode exactly once on this error.
type UnresolvedPropertyError struct {
	PropertyID int32
}

func (e *UnresolvedPropertyError) Error() string {
	return fmt.Sprintf("unresolved property id %d", e.PropertyID)
}

// ErrUnsupportedVersion reports record content written by a serializer
// revision this driver does not understand.
var ErrUnsupportedVersion = errors.New("unsupported record serializer version")

// Serializer converts documents to record content bytes and back.
//
// Content layout: a leading format version byte, the class name as a
// varint-prefixed string (empty for schemaless), then a field stream. Each
// field starts with a zigzag varint marker: positive markers carry the byte
// length of an inline field name, negative markers reference property id
// -marker-1 from the schema, zero ends the stream. The marker is followed by
// a one-byte type tag and the value bytes. Embedded documents repeat the
// class-plus-fields layout without the version byte.
//
// Encoding writes fields by name unless Index supplies a property id for the
// name. Decoding resolves id references through Resolver; a nil Resolver or
// an unknown id fails with UnresolvedPropertyError. time.Time values encode
// as DATETIME with millisecond precision; DATE content decodes to midnight
// UTC. Slices encode as EMBEDDEDLIST, sets decode to plain slices.
type Serializer struct {
	Resolver PropertyResolver
	Index    PropertyIndex
}

// Serialize encodes a document to record content bytes
func (s *Serializer) Serialize(doc *Document) ([]byte, error) {
	w := protocol.NewWriter()
	w.WriteByte(SerializerVersion)
	if err := s.writeDocument(w, doc, 0); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WriteValue encodes one tagged value at the writer's position, the shape
// scalar command results use: `[type tag][value bytes]`.
func (s *Serializer) WriteValue(w *protocol.Writer, value interface{}) error {
	return s.writeValue(w, value, 0)
}

// ReadValue decodes one tagged value at the reader's position.
func (s *Serializer) ReadValue(r *protocol.Reader) (interface{}, error) {
	return s.readValue(r, 0)
}

// Deserialize decodes record content bytes into a document. The caller sets
// RID and Version from the surrounding response fields.
func (s *Serializer) Deserialize(data []byte) (*Document, error) {
	r := protocol.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != SerializerVersion {
		return nil, fmt.Errorf("%w %d", ErrUnsupportedVersion, version)
	}
	doc, err := s.readDocument(r, 0)
	if err != nil {
		return nil, err
	}
	if r.Remaining() > 0 {
		return nil, fmt.Errorf("%d trailing bytes after record end", r.Remaining())
	}
	return doc, nil
}

func (s *Serializer) writeDocument(w *protocol.Writer, doc *Document, depth int) error {
	if depth > maxNestingDepth {
		return fmt.Errorf("document nesting exceeds %d levels", maxNestingDepth)
	}
	w.WriteVString(doc.Class)
	for _, name := range doc.order {
		if name == "" {
			return errors.New("empty field name")
		}
		if s.Index != nil {
			if id, ok := s.Index.PropertyID(name); ok {
				w.WriteVarint(int64(-(id + 1)))
				if err := s.writeValue(w, doc.fields[name], depth); err != nil {
					return fmt.Errorf("field %s: %w", name, err)
				}
				continue
			}
		}
		w.WriteVarint(int64(len(name)))
		w.WriteRawString(name)
		if err := s.writeValue(w, doc.fields[name], depth); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	w.WriteVarint(0)
	return nil
}

func (s *Serializer) writeValue(w *protocol.Writer, value interface{}, depth int) error {
	switch v := value.(type) {
	case nil:
		w.WriteByte(byte(protocol.TypeAny))
	case bool:
		w.WriteByte(byte(protocol.TypeBoolean))
		w.WriteBool(v)
	case byte:
		w.WriteByte(byte(protocol.TypeByte))
		w.WriteByte(v)
	case int16:
		w.WriteByte(byte(protocol.TypeShort))
		w.WriteVarint(int64(v))
	case int32:
		w.WriteByte(byte(protocol.TypeInteger))
		w.WriteVarint(int64(v))
	case int64:
		w.WriteByte(byte(protocol.TypeLong))
		w.WriteVarint(v)
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			w.WriteByte(byte(protocol.TypeInteger))
		} else {
			w.WriteByte(byte(protocol.TypeLong))
		}
		w.WriteVarint(int64(v))
	case float32:
		w.WriteByte(byte(protocol.TypeFloat))
		w.WriteFloat32(v)
	case float64:
		w.WriteByte(byte(protocol.TypeDouble))
		w.WriteFloat64(v)
	case string:
		w.WriteByte(byte(protocol.TypeString))
		w.WriteVString(v)
	case []byte:
		if v == nil {
			w.WriteByte(byte(protocol.TypeAny))
			return nil
		}
		w.WriteByte(byte(protocol.TypeBinary))
		w.WriteVBytes(v)
	case time.Time:
		w.WriteByte(byte(protocol.TypeDatetime))
		w.WriteVarint(v.UnixMilli())
	case RID:
		w.WriteByte(byte(protocol.TypeLink))
		w.WriteVarint(int64(v.ClusterID))
		w.WriteVarint(v.Position)
	case *Document:
		if v == nil {
			w.WriteByte(byte(protocol.TypeAny))
			return nil
		}
		w.WriteByte(byte(protocol.TypeEmbedded))
		return s.writeDocument(w, v, depth+1)
	case []interface{}:
		if v == nil {
			w.WriteByte(byte(protocol.TypeAny))
			return nil
		}
		w.WriteByte(byte(protocol.TypeEmbeddedList))
		w.WriteUVarint(uint64(len(v)))
		for i, item := range v {
			if err := s.writeValue(w, item, depth+1); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	case map[string]interface{}:
		if v == nil {
			w.WriteByte(byte(protocol.TypeAny))
			return nil
		}
		w.WriteByte(byte(protocol.TypeEmbeddedMap))
		w.WriteUVarint(uint64(len(v)))
		// Sorted keys keep the encoding deterministic
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.WriteVString(k)
			if err := s.writeValue(w, v[k], depth+1); err != nil {
				return fmt.Errorf("key %s: %w", k, err)
			}
		}
	case decimal.Decimal:
		w.WriteByte(byte(protocol.TypeDecimal))
		writeDecimal(w, v)
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
	return nil
}

func (s *Serializer) readDocument(r *protocol.Reader, depth int) (*Document, error) {
	if depth > maxNestingDepth {
		return nil, fmt.Errorf("document nesting exceeds %d levels", maxNestingDepth)
	}
	class, err := r.ReadVString()
	if err != nil {
		return nil, err
	}
	doc := NewDocument(class)
	for {
		marker, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		if marker == 0 {
			break
		}
		var name string
		if marker > 0 {
			nameBytes, err := r.ReadRaw(int(marker))
			if err != nil {
				return nil, err
			}
			name = string(nameBytes)
		} else {
			id := int32(-marker - 1)
			if s.Resolver == nil {
				return nil, &UnresolvedPropertyError{PropertyID: id}
			}
			resolved, ok := s.Resolver.PropertyName(id)
			if !ok {
				return nil, &UnresolvedPropertyError{PropertyID: id}
			}
			name = resolved
		}
		value, err := s.readValue(r, depth)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		doc.Set(name, value)
	}
	return doc, nil
}

func (s *Serializer) readValue(r *protocol.Reader, depth int) (interface{}, error) {
	if depth > maxNestingDepth {
		return nil, fmt.Errorf("value nesting exceeds %d levels", maxNestingDepth)
	}
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch protocol.FieldType(tag) {
	case protocol.TypeAny:
		return nil, nil
	case protocol.TypeBoolean:
		v, err := r.ReadBool()
		return v, err
	case protocol.TypeByte:
		v, err := r.ReadByte()
		return v, err
	case protocol.TypeShort:
		v, err := r.ReadVarint()
		return int16(v), err
	case protocol.TypeInteger:
		v, err := r.ReadVarint()
		return int32(v), err
	case protocol.TypeLong:
		v, err := r.ReadVarint()
		return v, err
	case protocol.TypeFloat:
		v, err := r.ReadFloat32()
		return v, err
	case protocol.TypeDouble:
		v, err := r.ReadFloat64()
		return v, err
	case protocol.TypeDatetime:
		ms, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case protocol.TypeDate:
		days, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		return time.Unix(days*86400, 0).UTC(), nil
	case protocol.TypeString:
		v, err := r.ReadVString()
		return v, err
	case protocol.TypeBinary:
		v, err := r.ReadVBytes()
		return v, err
	case protocol.TypeEmbedded:
		return s.readDocument(r, depth+1)
	case protocol.TypeEmbeddedList, protocol.TypeEmbeddedSet:
		n, err := r.ReadUVarint()
		if err != nil {
			return nil, err
		}
		// Every item takes at least a tag byte, so the count cannot
		// exceed the remaining payload
		if n > uint64(r.Remaining()) {
			return nil, protocol.ShortPayloadError("collection", r.Offset(), int(n), r.Remaining())
		}
		items := make([]interface{}, 0, n)
		for i := uint64(0); i < n; i++ {
			item, err := s.readValue(r, depth+1)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return items, nil
	case protocol.TypeEmbeddedMap:
		n, err := r.ReadUVarint()
		if err != nil {
			return nil, err
		}
		if n > uint64(r.Remaining()) {
			return nil, protocol.ShortPayloadError("map", r.Offset(), int(n), r.Remaining())
		}
		m := make(map[string]interface{}, n)
		for i := uint64(0); i < n; i++ {
			key, err := r.ReadVString()
			if err != nil {
				return nil, err
			}
			value, err := s.readValue(r, depth+1)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			m[key] = value
		}
		return m, nil
	case protocol.TypeLink:
		cluster, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		position, err := r.ReadVarint()
		if err != nil {
			return nil, err
		}
		return RID{ClusterID: int16(cluster), Position: position}, nil
	case protocol.TypeDecimal:
		return readDecimal(r)
	default:
		return nil, protocol.UnknownTypeTagError(tag, r.Offset())
	}
}

func writeDecimal(w *protocol.Writer, d decimal.Decimal) {
	w.WriteInt32(-d.Exponent())
	b := bigIntToBytes(d.Coefficient())
	w.WriteInt32(int32(len(b)))
	w.WriteRaw(b)
}

func readDecimal(r *protocol.Reader) (interface{}, error) {
	scale, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("decimal value missing mantissa")
	}
	return decimal.NewFromBigInt(bytesToBigInt(b), -scale), nil
}

// bigIntToBytes renders v as minimal big-endian two's complement, the form
// java.math.BigInteger#toByteArray produces.
func bigIntToBytes(v *big.Int) []byte {
	bits := v.BitLen()
	if v.Sign() < 0 {
		mag := new(big.Int).Neg(v)
		bits = mag.Sub(mag, big.NewInt(1)).BitLen()
	}
	n := bits/8 + 1
	twos := new(big.Int).Set(v)
	if v.Sign() < 0 {
		twos.Add(twos, new(big.Int).Lsh(big.NewInt(1), uint(n*8)))
	}
	out := make([]byte, n)
	twos.FillBytes(out)
	return out
}

// bytesToBigInt reads big-endian two's complement
func bytesToBigInt(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return v
}
