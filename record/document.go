package record

import (
	"fmt"
	"strings"
)

// Document is an in-memory record: an optional class name, an ordered field
// mapping, and the optimistic-lock version assigned by the server. Field
// values hold the closed value union of the wire format: nil, bool, byte,
// int16, int32, int64, float32, float64, string, []byte, time.Time, RID,
// *Document, []interface{}, map[string]interface{} and decimal.Decimal.
type Document struct {
	RID     RID
	Class   string
	Version int32

	fields map[string]interface{}
	order  []string
}

// NewDocument creates an empty document. An empty class name makes the
// document schemaless.
func NewDocument(class string) *Document {
	return &Document{
		Class:  class,
		RID:    NullRID,
		fields: make(map[string]interface{}),
	}
}

// Set stores a field value, keeping first-set ordering. Returns the
// document for chaining.
func (d *Document) Set(name string, value interface{}) *Document {
	if _, exists := d.fields[name]; !exists {
		d.order = append(d.order, name)
	}
	d.fields[name] = value
	return d
}

// Get returns a field value and whether the field is present
func (d *Document) Get(name string) (interface{}, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// Field returns a field value, or nil when absent
func (d *Document) Field(name string) interface{} {
	return d.fields[name]
}

// Has reports whether the field is present
func (d *Document) Has(name string) bool {
	_, ok := d.fields[name]
	return ok
}

// FieldNames returns the field names in insertion order
func (d *Document) FieldNames() []string {
	names := make([]string, len(d.order))
	copy(names, d.order)
	return names
}

// Len returns the number of fields
func (d *Document) Len() int {
	return len(d.fields)
}

// String formats the document as Class{name:value, ...} for logs and the CLI
func (d *Document) String() string {
	var sb strings.Builder
	if d.Class != "" {
		sb.WriteString(d.Class)
	}
	sb.WriteByte('{')
	for i, name := range d.order {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s:%v", name, d.fields[name])
	}
	sb.WriteByte('}')
	return sb.String()
}
