package protocol

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
)

// Writer builds a protocol payload in memory. Numeric values are fixed-width
// big-endian; strings and byte slices carry an int32 length prefix with -1
// denoting null. Writes never fail, the buffer grows as needed.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates an empty payload writer
func NewWriter() *Writer {
	return &Writer{}
}

// Buffer pool for request encoding
var writerPool = sync.Pool{
	New: func() interface{} {
		return new(Writer)
	},
}

// AcquireWriter returns a pooled writer, reset and ready for a new payload
func AcquireWriter() *Writer {
	w := writerPool.Get().(*Writer)
	w.buf.Reset()
	return w
}

// ReleaseWriter returns a writer to the pool. The slice returned by Bytes
// must not be used after release.
func ReleaseWriter(w *Writer) {
	writerPool.Put(w)
}

// WriteByte appends a single raw byte
func (w *Writer) WriteByte(c byte) error {
	return w.buf.WriteByte(c)
}

// WriteBool appends a boolean as one byte
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// WriteInt16 appends a big-endian int16
func (w *Writer) WriteInt16(v int16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
}

// WriteInt32 appends a big-endian int32
func (w *Writer) WriteInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

// WriteInt64 appends a big-endian int64
func (w *Writer) WriteInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

// WriteFloat32 appends a big-endian IEEE 754 single
func (w *Writer) WriteFloat32(v float32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
	w.buf.Write(b[:])
}

// WriteFloat64 appends a big-endian IEEE 754 double
func (w *Writer) WriteFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf.Write(b[:])
}

// WriteString appends an int32 length prefix followed by the string bytes
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.buf.WriteString(s)
}

// WriteNullString appends the null string marker (-1 length, no bytes)
func (w *Writer) WriteNullString() {
	w.WriteInt32(-1)
}

// WriteBytes appends an int32 length prefix followed by the slice bytes.
// A nil slice is written as null (-1 length).
func (w *Writer) WriteBytes(b []byte) {
	if b == nil {
		w.WriteInt32(-1)
		return
	}
	w.WriteInt32(int32(len(b)))
	w.buf.Write(b)
}

// WriteRaw appends bytes with no length prefix
func (w *Writer) WriteRaw(b []byte) {
	w.buf.Write(b)
}

// WriteRawString appends string bytes with no length prefix
func (w *Writer) WriteRawString(s string) {
	w.buf.WriteString(s)
}

// Bytes returns the accumulated payload. The slice is only valid until the
// next Reset or release back to the pool.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the payload size so far
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Reset discards the accumulated payload
func (w *Writer) Reset() {
	w.buf.Reset()
}

// Reader consumes a protocol payload with an explicit cursor. Every read
// checks the remaining length and fails with a ShortPayload wire error
// instead of panicking on corrupt input.
type Reader struct {
	data []byte
	off  int
}

// NewReader creates a reader over a received payload
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// take consumes n bytes, validating the remaining payload first
func (r *Reader) take(what string, n int) ([]byte, error) {
	if n < 0 {
		return nil, NegativeLengthError(what, n)
	}
	if n > len(r.data)-r.off {
		return nil, ShortPayloadError(what, r.off, n, len(r.data)-r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadByte consumes a single raw byte
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.take("byte", 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool consumes a one-byte boolean; any non-zero value is true
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take("bool", 1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadInt16 consumes a big-endian int16
func (r *Reader) ReadInt16() (int16, error) {
	b, err := r.take("int16", 2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// ReadInt32 consumes a big-endian int32
func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.take("int32", 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadInt64 consumes a big-endian int64
func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.take("int64", 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadFloat32 consumes a big-endian IEEE 754 single
func (r *Reader) ReadFloat32() (float32, error) {
	b, err := r.take("float32", 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// ReadFloat64 consumes a big-endian IEEE 754 double
func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.take("float64", 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadString consumes an int32-prefixed string. The null marker (-1)
// decodes as the empty string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	if n == -1 {
		return "", nil
	}
	b, err := r.take("string", int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes consumes an int32-prefixed byte slice. The null marker (-1)
// decodes as nil. The returned slice is a copy and safe to retain.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	b, err := r.take("bytes", int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadRaw consumes exactly n bytes with no length prefix. The returned
// slice aliases the payload and is only valid until the payload is reused.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	return r.take("raw", n)
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Offset returns the cursor position from the start of the payload
func (r *Reader) Offset() int {
	return r.off
}
