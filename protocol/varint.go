package protocol

import "encoding/binary"

// Varint encodings used inside record content. Unsigned values are LEB128,
// signed values are zigzag LEB128 as in encoding/binary.

// WriteUVarint appends an unsigned LEB128 varint
func (w *Writer) WriteUVarint(v uint64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	w.buf.Write(b[:n])
}

// WriteVarint appends a zigzag-encoded signed varint
func (w *Writer) WriteVarint(v int64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutVarint(b[:], v)
	w.buf.Write(b[:n])
}

// WriteVString appends a varint length prefix followed by the string bytes
func (w *Writer) WriteVString(s string) {
	w.WriteUVarint(uint64(len(s)))
	w.buf.WriteString(s)
}

// WriteVBytes appends a varint length prefix followed by the slice bytes
func (w *Writer) WriteVBytes(b []byte) {
	w.WriteUVarint(uint64(len(b)))
	w.buf.Write(b)
}

// ReadUVarint consumes an unsigned LEB128 varint
func (r *Reader) ReadUVarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	if n == 0 {
		return 0, ShortPayloadError("varint", r.off, 1, 0)
	}
	if n < 0 {
		return 0, MalformedVarintError(r.off)
	}
	r.off += n
	return v, nil
}

// ReadVarint consumes a zigzag-encoded signed varint
func (r *Reader) ReadVarint() (int64, error) {
	v, n := binary.Varint(r.data[r.off:])
	if n == 0 {
		return 0, ShortPayloadError("varint", r.off, 1, 0)
	}
	if n < 0 {
		return 0, MalformedVarintError(r.off)
	}
	r.off += n
	return v, nil
}

// ReadVString consumes a varint-prefixed string
func (r *Reader) ReadVString() (string, error) {
	n, err := r.ReadUVarint()
	if err != nil {
		return "", err
	}
	b, err := r.take("vstring", int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadVBytes consumes a varint-prefixed byte slice as a retainable copy
func (r *Reader) ReadVBytes() ([]byte, error) {
	n, err := r.ReadUVarint()
	if err != nil {
		return nil, err
	}
	b, err := r.take("vbytes", int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
