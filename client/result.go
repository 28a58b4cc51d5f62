package client

import (
	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/record"
)

// ResultKind identifies the shape of a command outcome.
type ResultKind int

const (
	// KindNone is a command with no result (e.g. DDL).
	KindNone ResultKind = iota
	// KindRecord is a single record.
	KindRecord
	// KindCollection is zero or more records.
	KindCollection
	// KindScalar is a single value (count, string, null, ...).
	KindScalar
)

// String returns the result kind name for logging.
func (k ResultKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRecord:
		return "record"
	case KindCollection:
		return "collection"
	case KindScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// Result is the polymorphic outcome of a command: nothing, one record, a
// collection of records, or a scalar value. Records the fetch plan resolved
// ahead of time land in Prefetch keyed by record id.
type Result struct {
	Kind     ResultKind
	Records  []*record.Document
	Scalar   interface{}
	Prefetch map[record.RID]*record.Document
}

// First returns the first record, or nil when the result holds none.
func (r *Result) First() *record.Document {
	if len(r.Records) == 0 {
		return nil
	}
	return r.Records[0]
}

// Len returns the number of primary records.
func (r *Result) Len() int {
	return len(r.Records)
}

func (r *Result) addPrefetched(doc *record.Document) {
	if r.Prefetch == nil {
		r.Prefetch = make(map[record.RID]*record.Document)
	}
	r.Prefetch[doc.RID] = doc
}

// remainingBytes drains the response reader so the payload decoders can run
// more than once over the same bytes.
func remainingBytes(r *protocol.Reader) []byte {
	b, err := r.ReadRaw(r.Remaining())
	if err != nil {
		return nil
	}
	return b
}

// decodePrimaryRecordItem reads `[record type][version][content]`. The
// record's identity is the one the caller asked for, so it travels outside
// the item.
func decodePrimaryRecordItem(r *protocol.Reader, ser *record.Serializer, rid record.RID) (*record.Document, error) {
	recType, err := r.ReadByte()
	if err != nil {
		return nil, ErrProtocolViolation("truncated record item", nil, err)
	}
	if recType != protocol.RecordTypeDocument {
		return nil, ErrProtocolViolation("unsupported record type", map[string]interface{}{
			"recordType": recType,
		}, nil)
	}

	version, err := r.ReadInt32()
	if err != nil {
		return nil, ErrProtocolViolation("truncated record version", nil, err)
	}
	content, err := r.ReadBytes()
	if err != nil {
		return nil, ErrProtocolViolation("truncated record content", nil, err)
	}

	doc, err := ser.Deserialize(content)
	if err != nil {
		return nil, err
	}
	doc.RID = rid
	doc.Version = version
	return doc, nil
}

// decodeFullRecordItem reads `[record type][cluster][position][version]
// [content]`, the item shape used where the record must carry its own
// identity: command results and prefetched records.
func decodeFullRecordItem(r *protocol.Reader, ser *record.Serializer) (*record.Document, error) {
	recType, err := r.ReadByte()
	if err != nil {
		return nil, ErrProtocolViolation("truncated record item", nil, err)
	}
	if recType != protocol.RecordTypeDocument {
		return nil, ErrProtocolViolation("unsupported record type", map[string]interface{}{
			"recordType": recType,
		}, nil)
	}

	cluster, err := r.ReadInt16()
	if err != nil {
		return nil, ErrProtocolViolation("truncated record id", nil, err)
	}
	if cluster < 0 {
		return nil, ErrProtocolViolation("negative cluster id in record item", map[string]interface{}{
			"clusterId": cluster,
		}, nil)
	}
	position, err := r.ReadInt64()
	if err != nil {
		return nil, ErrProtocolViolation("truncated record id", nil, err)
	}
	version, err := r.ReadInt32()
	if err != nil {
		return nil, ErrProtocolViolation("truncated record version", nil, err)
	}
	content, err := r.ReadBytes()
	if err != nil {
		return nil, ErrProtocolViolation("truncated record content", nil, err)
	}

	doc, err := ser.Deserialize(content)
	if err != nil {
		return nil, err
	}
	doc.RID = record.RID{ClusterID: cluster, Position: position}
	doc.Version = version
	return doc, nil
}

// decodeLoadPayload decodes a RECORD_LOAD item stream: status 1 items are
// primary records identified by the requested rid, status 2 items carry
// their own identity, status 0 ends the stream.
//
// Pure over payload so the schema-retry wrapper can decode twice.
func decodeLoadPayload(ser *record.Serializer, rid record.RID, payload []byte) (*record.ResultSet, error) {
	r := protocol.NewReader(payload)
	rs := record.NewResultSet()

	for {
		status, err := r.ReadByte()
		if err != nil {
			return nil, ErrProtocolViolation("truncated item stream", nil, err)
		}

		switch status {
		case protocol.PayloadEnd:
			if r.Remaining() > 0 {
				return nil, ErrProtocolViolation("trailing bytes after item stream", map[string]interface{}{
					"remaining": r.Remaining(),
				}, nil)
			}
			return rs, nil
		case protocol.PayloadRecord:
			doc, err := decodePrimaryRecordItem(r, ser, rid)
			if err != nil {
				return nil, err
			}
			rs.Add(doc)
		case protocol.PayloadPrefetched:
			doc, err := decodeFullRecordItem(r, ser)
			if err != nil {
				return nil, err
			}
			rs.AddPrefetched(doc)
		default:
			return nil, ErrProtocolViolation("unknown payload status", map[string]interface{}{
				"status": status,
			}, nil)
		}
	}
}

// decodeCommandPayload decodes a COMMAND response: the leading result-type
// byte picks the shape, then the prefetch stream follows.
//
// Pure over payload so the schema-retry wrapper can decode twice.
func decodeCommandPayload(ser *record.Serializer, payload []byte) (*Result, error) {
	r := protocol.NewReader(payload)

	resultType, err := r.ReadByte()
	if err != nil {
		return nil, ErrProtocolViolation("missing result type", nil, err)
	}

	res := &Result{}
	switch resultType {
	case protocol.ResultNone:
		res.Kind = KindNone

	case protocol.ResultRecord:
		doc, err := decodeFullRecordItem(r, ser)
		if err != nil {
			return nil, err
		}
		res.Kind = KindRecord
		res.Records = []*record.Document{doc}

	case protocol.ResultCollection, protocol.ResultSet:
		count, err := r.ReadInt32()
		if err != nil {
			return nil, ErrProtocolViolation("missing collection count", nil, err)
		}
		if count < 0 {
			return nil, ErrProtocolViolation("negative collection count", map[string]interface{}{
				"count": count,
			}, nil)
		}
		res.Kind = KindCollection
		res.Records = make([]*record.Document, 0, count)
		for i := int32(0); i < count; i++ {
			doc, err := decodeFullRecordItem(r, ser)
			if err != nil {
				return nil, err
			}
			res.Records = append(res.Records, doc)
		}

	case protocol.ResultScalar:
		value, err := ser.ReadValue(r)
		if err != nil {
			return nil, err
		}
		res.Kind = KindScalar
		res.Scalar = value

	default:
		return nil, ErrProtocolViolation("unknown result type", map[string]interface{}{
			"resultType": resultType,
		}, nil)
	}

	for {
		status, err := r.ReadByte()
		if err != nil {
			return nil, ErrProtocolViolation("truncated prefetch stream", nil, err)
		}
		if status == protocol.PayloadEnd {
			break
		}
		if status != protocol.PayloadPrefetched {
			return nil, ErrProtocolViolation("unknown prefetch status", map[string]interface{}{
				"status": status,
			}, nil)
		}
		doc, err := decodeFullRecordItem(r, ser)
		if err != nil {
			return nil, err
		}
		res.addPrefetched(doc)
	}

	if r.Remaining() > 0 {
		return nil, ErrProtocolViolation("trailing bytes after command response", map[string]interface{}{
			"remaining": r.Remaining(),
		}, nil)
	}

	return res, nil
}
