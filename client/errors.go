package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ConnectionError represents connection-related failures.
type ConnectionError struct {
	Code        string                 `json:"code"`
	Type        string                 `json:"type"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details"`
	Cause       error                  `json:"cause,omitempty"`
	StackTrace  []string               `json:"stack_trace,omitempty"`
	Timestamp   time.Time              `json:"timestamp,omitempty"`
	GoroutineID int                    `json:"goroutine_id,omitempty"`
}

// Error implements the error interface.
// Returns JSON format for backward compatibility.
// Use FormatError() for flexible formatting based on debug mode.
func (e *ConnectionError) Error() string {
	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{
			"message": e.Cause.Error(),
		}
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode setting.
// When debugMode=false: returns simple "CODE: message" format.
// When debugMode=true: returns full JSON with stack trace, timestamp, goroutine ID.
func (e *ConnectionError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	if e.GoroutineID > 0 {
		errorData["goroutine_id"] = e.GoroutineID
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error for errors.Is and errors.As compatibility.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a client-side deadline expiring before the
// server's response arrived. The session is closed when this happens:
// the server may still apply the in-flight request, so callers reconnect
// rather than blindly retry.
type TimeoutError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Operation  string                 `json:"operation"`
	Elapsed    time.Duration          `json:"elapsed_ns"`
	Details    map[string]interface{} `json:"details"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	errorData := map[string]interface{}{
		"code":      e.Code,
		"type":      e.Type,
		"message":   e.Message,
		"operation": e.Operation,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode.
func (e *TimeoutError) FormatError(debugMode bool) string {
	if !debugMode {
		return fmt.Sprintf("%s: %s after %s", e.Code, e.Message, e.Elapsed)
	}

	errorData := map[string]interface{}{
		"code":       e.Code,
		"type":       e.Type,
		"message":    e.Message,
		"operation":  e.Operation,
		"elapsed_ms": float64(e.Elapsed) / float64(time.Millisecond),
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// AuthenticationError represents a handshake rejected by the server.
type AuthenticationError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	User       string                 `json:"user,omitempty"`
	Details    map[string]interface{} `json:"details"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if e.User != "" {
		errorData["user"] = e.User
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode.
func (e *AuthenticationError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.User != "" {
			return fmt.Sprintf("%s: %s (user: %s)", e.Code, e.Message, e.User)
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if e.User != "" {
		errorData["user"] = e.User
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// ProtocolError represents protocol-level errors (version mismatch,
// truncated frames, malformed payloads).
type ProtocolError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
// Returns JSON format for backward compatibility.
func (e *ProtocolError) Error() string {
	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{
			"message": e.Cause.Error(),
		}
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode.
func (e *ProtocolError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// StateError represents invalid state for an operation.
type StateError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	StackTrace []string               `json:"stack_trace,omitempty"`
}

// Error implements the error interface.
// Returns JSON format for backward compatibility.
func (e *StateError) Error() string {
	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode.
func (e *StateError) FormatError(debugMode bool) string {
	if !debugMode {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
		"details": e.Details,
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// ServerException is one entry of a server-side exception chain.
type ServerException struct {
	Class   string `json:"class"`
	Message string `json:"message"`
}

// ServerError represents a failure reported by the server as an exception
// chain. Exceptions keep server order: the outermost exception first, its
// causes after it.
type ServerError struct {
	Code        string                 `json:"code"`
	Type        string                 `json:"type"`
	Message     string                 `json:"message"`
	Exceptions  []ServerException      `json:"exceptions"`
	Details     map[string]interface{} `json:"details,omitempty"`
	ServerTrace []byte                 `json:"-"`
	StackTrace  []string               `json:"stack_trace,omitempty"`
	Timestamp   time.Time              `json:"timestamp,omitempty"`
}

// NewServerError builds a ServerError from a decoded exception chain. The
// trace blob is the server's serialized stack trace, preserved unparsed.
func NewServerError(exceptions []ServerException, trace []byte) *ServerError {
	message := "server reported an error"
	if len(exceptions) > 0 {
		message = exceptions[0].Message
	}

	return &ServerError{
		Code:        "SERVER_ERROR",
		Type:        "SERVER_ERROR",
		Message:     message,
		Exceptions:  exceptions,
		ServerTrace: trace,
		StackTrace:  captureStackTrace(),
		Timestamp:   time.Now(),
	}
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Exceptions) > 0 {
		chain := make([]map[string]string, len(e.Exceptions))
		for i, ex := range e.Exceptions {
			chain[i] = map[string]string{"class": ex.Class, "message": ex.Message}
		}
		errorData["exceptions"] = chain
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode.
func (e *ServerError) FormatError(debugMode bool) string {
	if !debugMode {
		if len(e.Exceptions) > 0 {
			return fmt.Sprintf("%s: %s: %s", e.Code, e.Exceptions[0].Class, e.Exceptions[0].Message)
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Exceptions) > 0 {
		chain := make([]map[string]string, len(e.Exceptions))
		for i, ex := range e.Exceptions {
			chain[i] = map[string]string{"class": ex.Class, "message": ex.Message}
		}
		errorData["exceptions"] = chain
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if len(e.ServerTrace) > 0 {
		errorData["server_trace_bytes"] = len(e.ServerTrace)
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// HasExceptionClass reports whether any exception in the chain carries a
// class name containing the given fragment.
func (e *ServerError) HasExceptionClass(fragment string) bool {
	for _, ex := range e.Exceptions {
		if strings.Contains(ex.Class, fragment) {
			return true
		}
	}
	return false
}

// containsMessage reports whether any exception message contains the
// given fragment.
func (e *ServerError) containsMessage(fragment string) bool {
	for _, ex := range e.Exceptions {
		if strings.Contains(ex.Message, fragment) {
			return true
		}
	}
	return false
}

// SchemaResolutionError reports a property id that stayed unresolved after
// the permitted schema reload.
type SchemaResolutionError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	PropertyID int32                  `json:"property_id"`
	Details    map[string]interface{} `json:"details"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *SchemaResolutionError) Error() string {
	errorData := map[string]interface{}{
		"code":        e.Code,
		"type":        e.Type,
		"message":     e.Message,
		"property_id": e.PropertyID,
	}

	b, _ := json.Marshal(errorData)
	return string(b)
}

// FormatError formats the error based on debug mode.
func (e *SchemaResolutionError) FormatError(debugMode bool) string {
	if !debugMode {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":        e.Code,
		"type":        e.Type,
		"message":     e.Message,
		"property_id": e.PropertyID,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error.
func (e *SchemaResolutionError) Unwrap() error {
	return e.Cause
}

// Error constructors

// ErrConnectionFailed creates a ConnectionError for a failed dial or a
// connection lost mid-operation.
func ErrConnectionFailed(address string, cause error) *ConnectionError {
	return &ConnectionError{
		Code:    "CONNECTION_FAILED",
		Type:    "CONNECTION_ERROR",
		Message: fmt.Sprintf("connection to %s failed", address),
		Details: map[string]interface{}{
			"address": address,
		},
		Cause:       cause,
		StackTrace:  captureStackTrace(),
		Timestamp:   time.Now(),
		GoroutineID: getGoroutineID(),
	}
}

// ErrConnectionClosed creates a ConnectionError for operations attempted
// on a closed session.
func ErrConnectionClosed(operation string) *ConnectionError {
	return &ConnectionError{
		Code:    "CONNECTION_CLOSED",
		Type:    "CONNECTION_ERROR",
		Message: fmt.Sprintf("%s on closed session", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrTimeout creates a TimeoutError for an expired client-side deadline.
func ErrTimeout(operation string, elapsed time.Duration, cause error) *TimeoutError {
	return &TimeoutError{
		Code:      "REQUEST_TIMEOUT",
		Type:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("%s did not complete in time", operation),
		Operation: operation,
		Elapsed:   elapsed,
		Details: map[string]interface{}{
			"elapsed": elapsed.String(),
		},
		Cause:      cause,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrAuthenticationFailed creates an AuthenticationError for a rejected
// handshake.
func ErrAuthenticationFailed(user string, cause error) *AuthenticationError {
	return &AuthenticationError{
		Code:       "AUTH_FAILED",
		Type:       "AUTH_ERROR",
		Message:    "authentication rejected by server",
		User:       user,
		Cause:      cause,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrProtocolViolation creates a ProtocolError for malformed wire data.
func ErrProtocolViolation(message string, details map[string]interface{}, cause error) *ProtocolError {
	return &ProtocolError{
		Code:       "PROTOCOL_VIOLATION",
		Type:       "PROTOCOL_ERROR",
		Message:    message,
		Details:    details,
		Cause:      cause,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrProtocolVersion creates a ProtocolError for a server speaking a
// protocol older than the supported range.
func ErrProtocolVersion(serverVersion, minSupported, maxSupported int16) *ProtocolError {
	return &ProtocolError{
		Code:    "PROTOCOL_VERSION_MISMATCH",
		Type:    "PROTOCOL_ERROR",
		Message: fmt.Sprintf("server protocol version %d below supported minimum %d", serverVersion, minSupported),
		Details: map[string]interface{}{
			"serverVersion": serverVersion,
			"minSupported":  minSupported,
			"maxSupported":  maxSupported,
		},
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrSchemaResolution creates a SchemaResolutionError for a property id
// still unknown after the schema reload.
func ErrSchemaResolution(propertyID int32, cause error) *SchemaResolutionError {
	return &SchemaResolutionError{
		Code:       "SCHEMA_UNRESOLVED_PROPERTY",
		Type:       "SCHEMA_ERROR",
		Message:    fmt.Sprintf("property id %d not in schema after reload", propertyID),
		PropertyID: propertyID,
		Details: map[string]interface{}{
			"propertyId": propertyID,
		},
		Cause:      cause,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrInvalidState creates a StateError for operations attempted in wrong state.
func ErrInvalidState(operation string, required, actual ConnectionState) error {
	return &StateError{
		Code:    "INVALID_STATE",
		Type:    "STATE_ERROR",
		Message: fmt.Sprintf("%s requires %s state, currently %s", operation, required, actual),
		Details: map[string]interface{}{
			"operation":     operation,
			"requiredState": required.String(),
			"currentState":  actual.String(),
		},
		StackTrace: captureStackTrace(),
	}
}

// Server error predicates

// IsDatabaseAlreadyExists reports whether err is the server rejecting a
// create for a database that already exists.
func IsDatabaseAlreadyExists(err error) bool {
	var se *ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasExceptionClass("ODatabaseException") && se.containsMessage("already exists")
}

// IsDatabaseNotFound reports whether err is the server rejecting an
// operation on a database that does not exist.
func IsDatabaseNotFound(err error) bool {
	var se *ServerError
	if !errors.As(err, &se) {
		return false
	}
	if !se.containsMessage("does not exist") {
		return false
	}
	return se.HasExceptionClass("OStorageException") || se.HasExceptionClass("ODatabaseException")
}

// IsConcurrentModification reports whether err is the server rejecting a
// versioned write because the stored version moved on.
func IsConcurrentModification(err error) bool {
	var se *ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasExceptionClass("OConcurrentModificationException")
}

// IsValidationError reports whether err is the server rejecting a record
// that violates a schema constraint.
func IsValidationError(err error) bool {
	var se *ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasExceptionClass("OValidationException")
}

// isSecurityException reports whether err carries a security exception,
// the server's shape for bad credentials.
func isSecurityException(err error) bool {
	var se *ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasExceptionClass("OSecurityAccessException")
}

// Helper functions

// captureStackTrace captures the current stack trace for error reporting.
func captureStackTrace() []string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs) // Skip captureStackTrace, the error constructor, and runtime.Callers

	frames := make([]string, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := callersFrames.Next()

		// Format: function (file:line)
		frames = append(frames, fmt.Sprintf("%s (%s:%d)",
			frame.Function,
			frame.File,
			frame.Line,
		))

		if !more {
			break
		}
	}

	return frames
}

// getGoroutineID extracts the goroutine ID for debugging.
// Note: This uses runtime stack parsing and is intended for debug purposes only.
func getGoroutineID() int {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Stack trace format: "goroutine <id> [<status>]:"
	// Extract the ID
	var id int
	fmt.Sscanf(string(buf[:n]), "goroutine %d ", &id)
	return id
}

// FormatError is a helper to format any error with debug mode support.
func FormatError(err error, debugMode bool) string {
	if err == nil {
		return ""
	}

	// Check if error implements our custom format interface
	type debugFormatter interface {
		FormatError(bool) string
	}

	if formatter, ok := err.(debugFormatter); ok {
		return formatter.FormatError(debugMode)
	}

	// Fallback to standard error string
	return err.Error()
}
