package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxFrameSize caps a single frame body. Frames claiming more are treated
// as corrupt rather than allocated.
const MaxFrameSize = 64 << 20 // 64MB

// WriteFrame writes a length-prefixed frame: a 4-byte big-endian body length
// followed by the body. The frame goes out in a single Write call.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return FrameTooLargeError(len(body))
	}
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	copy(frame[4:], body)
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame and returns its body. A clean
// close on the frame boundary returns io.EOF; a close mid-frame returns a
// TruncatedFrame wire error. Other read failures pass through unchanged so
// callers can detect timeouts.
func ReadFrame(r io.Reader) ([]byte, error) {
	var head [4]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, TruncatedFrameError("header", len(head), n)
		}
		return nil, err
	}

	length := int32(binary.BigEndian.Uint32(head[:]))
	if length < 0 {
		return nil, NegativeLengthError("frame", int(length))
	}
	if length > MaxFrameSize {
		return nil, FrameTooLargeError(int(length))
	}

	body := make([]byte, length)
	n, err = io.ReadFull(r, body)
	if err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, TruncatedFrameError("body", int(length), n)
		}
		return nil, err
	}
	return body, nil
}
