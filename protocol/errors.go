// Package protocol provides error codes and types for OrientDB wire failures.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents standardized error codes for wire-level failures
type ErrorCode int

const (
	// Framing errors (1000-1099)
	ErrorCodeTruncatedFrame ErrorCode = 1001
	ErrorCodeFrameTooLarge  ErrorCode = 1002
	ErrorCodeShortPayload   ErrorCode = 1003

	// Handshake errors (1100-1199)
	ErrorCodeVersionMismatch ErrorCode = 1101

	// Encoding errors (2000-2099)
	ErrorCodeMalformedVarint ErrorCode = 2001
	ErrorCodeUnknownTypeTag  ErrorCode = 2002
	ErrorCodeNegativeLength  ErrorCode = 2003
)

// WireError represents a wire-level protocol failure with a structured code
type WireError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *WireError) Error() string {
	if len(e.Details) > 0 {
		detailsJSON, _ := json.Marshal(e.Details)
		return fmt.Sprintf("[%d] %s (details: %s)", e.Code, e.Message, string(detailsJSON))
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// NewWireError creates a new wire error
func NewWireError(code ErrorCode, message string, details map[string]interface{}) *WireError {
	return &WireError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// TruncatedFrameError reports a frame cut short by the peer closing mid-read
func TruncatedFrameError(section string, want, got int) *WireError {
	return NewWireError(ErrorCodeTruncatedFrame, "frame truncated", map[string]interface{}{
		"section": section,
		"want":    want,
		"got":     got,
	})
}

// FrameTooLargeError reports a frame length beyond the sanity cap
func FrameTooLargeError(length int) *WireError {
	return NewWireError(ErrorCodeFrameTooLarge, "frame length exceeds limit", map[string]interface{}{
		"length": length,
		"limit":  MaxFrameSize,
	})
}

// ShortPayloadError reports a payload read past the end of the frame body
func ShortPayloadError(what string, offset, need, have int) *WireError {
	return NewWireError(ErrorCodeShortPayload, fmt.Sprintf("payload too short reading %s", what), map[string]interface{}{
		"offset": offset,
		"need":   need,
		"have":   have,
	})
}

// VersionMismatchError reports a server protocol revision outside the supported range
func VersionMismatchError(server int16) *WireError {
	return NewWireError(ErrorCodeVersionMismatch, "unsupported server protocol version", map[string]interface{}{
		"server": server,
		"min":    MinProtocolVersion,
		"max":    MaxProtocolVersion,
	})
}

// MalformedVarintError reports a varint that overflows or never terminates
func MalformedVarintError(offset int) *WireError {
	return NewWireError(ErrorCodeMalformedVarint, "malformed varint", map[string]interface{}{
		"offset": offset,
	})
}

// UnknownTypeTagError reports a field type tag this driver does not understand
func UnknownTypeTagError(tag byte, offset int) *WireError {
	return NewWireError(ErrorCodeUnknownTypeTag, "unknown field type tag", map[string]interface{}{
		"tag":    tag,
		"offset": offset,
	})
}

// NegativeLengthError reports a negative length prefix where null is not allowed
func NegativeLengthError(what string, length int) *WireError {
	return NewWireError(ErrorCodeNegativeLength, fmt.Sprintf("negative length for %s", what), map[string]interface{}{
		"length": length,
	})
}

// IsWireError reports whether err is or wraps a WireError with the given code
func IsWireError(err error, code ErrorCode) bool {
	var we *WireError
	return errors.As(err, &we) && we.Code == code
}
