package testutil

import (
	"github.com/dan-strohschein/orientdb-driver/protocol"
	"github.com/dan-strohschein/orientdb-driver/record"
)

// Command responses are scripted per test, so the builders below encode
// the result shapes the driver decodes: none, single record, collection
// and scalar, each followed by the prefetch stream terminator.

// resultCluster holds synthetic identities for documents scripted
// without one.
const resultCluster int16 = 99

// writeFullItem encodes one record carrying its own identity. Documents
// still holding the null record id get a synthetic one so the item is
// well formed on the wire.
func writeFullItem(w *protocol.Writer, ser *record.Serializer, doc *record.Document, seq int64) error {
	rid := doc.RID
	if rid == record.NullRID {
		rid = record.RID{ClusterID: resultCluster, Position: seq}
	}
	version := doc.Version
	if version == 0 {
		version = 1
	}

	content, err := ser.Serialize(doc)
	if err != nil {
		return err
	}

	w.WriteByte(protocol.RecordTypeDocument)
	w.WriteInt16(rid.ClusterID)
	w.WriteInt64(rid.Position)
	w.WriteInt32(version)
	w.WriteBytes(content)
	return nil
}

// NoneResponse encodes a command outcome with no result.
func NoneResponse() []byte {
	w := protocol.NewWriter()
	w.WriteByte(protocol.ResultNone)
	w.WriteByte(protocol.PayloadEnd)
	return w.Bytes()
}

// RecordResponse encodes a single-record command outcome.
func RecordResponse(doc *record.Document) ([]byte, error) {
	w := protocol.NewWriter()
	w.WriteByte(protocol.ResultRecord)
	if err := writeFullItem(w, &record.Serializer{}, doc, 1); err != nil {
		return nil, err
	}
	w.WriteByte(protocol.PayloadEnd)
	return w.Bytes(), nil
}

// CollectionResponse encodes a multi-record command outcome.
func CollectionResponse(docs ...*record.Document) ([]byte, error) {
	ser := &record.Serializer{}
	w := protocol.NewWriter()
	w.WriteByte(protocol.ResultCollection)
	w.WriteInt32(int32(len(docs)))
	for i, doc := range docs {
		if err := writeFullItem(w, ser, doc, int64(i)+1); err != nil {
			return nil, err
		}
	}
	w.WriteByte(protocol.PayloadEnd)
	return w.Bytes(), nil
}

// ScalarResponse encodes a single-value command outcome.
func ScalarResponse(value interface{}) ([]byte, error) {
	w := protocol.NewWriter()
	w.WriteByte(protocol.ResultScalar)
	if err := (&record.Serializer{}).WriteValue(w, value); err != nil {
		return nil, err
	}
	w.WriteByte(protocol.PayloadEnd)
	return w.Bytes(), nil
}

// CommandRequest is a decoded COMMAND request payload.
type CommandRequest struct {
	Class     string
	Language  string
	Text      string
	Limit     int32
	FetchPlan string

	// Params holds the named bindings, nil when the request carried none.
	Params map[string]interface{}
}

// ParseCommand decodes a COMMAND request body so a scripted handler can
// branch on the statement and its bindings. The body reader is consumed.
func ParseCommand(req *Request) (*CommandRequest, error) {
	if _, err := req.Body.ReadByte(); err != nil { // execution mode
		return nil, err
	}
	inner, err := req.Body.ReadBytes()
	if err != nil {
		return nil, err
	}

	r := protocol.NewReader(inner)
	cmd := &CommandRequest{}
	if cmd.Class, err = r.ReadString(); err != nil {
		return nil, err
	}
	if cmd.Class == protocol.CommandClassScript {
		if cmd.Language, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if cmd.Text, err = r.ReadString(); err != nil {
		return nil, err
	}
	if cmd.Class == protocol.CommandClassQuery {
		if cmd.Limit, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if cmd.FetchPlan, err = r.ReadString(); err != nil {
			return nil, err
		}
	}

	paramBytes, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	if paramBytes == nil {
		return cmd, nil
	}

	doc, err := (&record.Serializer{}).Deserialize(paramBytes)
	if err != nil {
		return nil, err
	}
	if m, ok := doc.Field("parameters").(map[string]interface{}); ok {
		cmd.Params = m
	}
	return cmd, nil
}

// CommandText extracts just the statement text from a COMMAND request.
func CommandText(req *Request) (string, error) {
	cmd, err := ParseCommand(req)
	if err != nil {
		return "", err
	}
	return cmd.Text, nil
}
