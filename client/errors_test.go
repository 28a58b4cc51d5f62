package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestConnectionError(t *testing.T) {
	err := &ConnectionError{
		Code:    "CONNECTION_FAILED",
		Type:    "CONNECTION_ERROR",
		Message: "failed to connect",
		Details: map[string]interface{}{
			"address": "localhost:2424",
		},
	}

	errStr := err.Error()

	// Should be valid JSON
	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(errStr), &parsed); jsonErr != nil {
		t.Fatalf("error should be valid JSON: %v", jsonErr)
	}

	if parsed["code"] != "CONNECTION_FAILED" {
		t.Errorf("expected code=CONNECTION_FAILED, got %v", parsed["code"])
	}

	if parsed["type"] != "CONNECTION_ERROR" {
		t.Errorf("expected type=CONNECTION_ERROR, got %v", parsed["type"])
	}

	if parsed["message"] != "failed to connect" {
		t.Errorf("expected message='failed to connect', got %v", parsed["message"])
	}
}

func TestConnectionErrorWithCause(t *testing.T) {
	cause := &ConnectionError{
		Code:    "NETWORK_ERROR",
		Type:    "CONNECTION_ERROR",
		Message: "connection refused",
		Details: map[string]interface{}{},
	}

	err := &ConnectionError{
		Code:    "CONNECTION_FAILED",
		Type:    "CONNECTION_ERROR",
		Message: "failed to connect",
		Details: map[string]interface{}{},
		Cause:   cause,
	}

	errStr := err.Error()

	// Should contain cause
	if !strings.Contains(errStr, "cause") {
		t.Errorf("error should contain cause, got: %s", errStr)
	}

	var parsed map[string]interface{}
	json.Unmarshal([]byte(errStr), &parsed)

	if parsed["cause"] == nil {
		t.Error("expected cause field in JSON")
	}
}

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := &ConnectionError{
		Code:    "NETWORK_ERROR",
		Type:    "CONNECTION_ERROR",
		Message: "connection refused",
		Details: map[string]interface{}{},
	}

	err := &ConnectionError{
		Code:    "CONNECTION_FAILED",
		Type:    "CONNECTION_ERROR",
		Message: "failed to connect",
		Details: map[string]interface{}{},
		Cause:   cause,
	}

	unwrapped := err.Unwrap()

	if unwrapped != cause {
		t.Errorf("expected unwrapped to be cause, got %v", unwrapped)
	}
}

func TestErrConnectionFailed(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ErrConnectionFailed("localhost:2424", cause)

	if err.Code != "CONNECTION_FAILED" {
		t.Errorf("expected code=CONNECTION_FAILED, got %s", err.Code)
	}

	if err.Details["address"] != "localhost:2424" {
		t.Errorf("expected address in details, got %v", err.Details["address"])
	}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}

	if len(err.StackTrace) == 0 {
		t.Error("expected captured stack trace")
	}

	if err.GoroutineID <= 0 {
		t.Errorf("expected positive goroutine id, got %d", err.GoroutineID)
	}
}

func TestErrTimeout(t *testing.T) {
	err := ErrTimeout("REQUEST_DB_SIZE", 150*time.Millisecond, fmt.Errorf("context deadline exceeded"))

	if err.Code != "REQUEST_TIMEOUT" {
		t.Errorf("expected code=REQUEST_TIMEOUT, got %s", err.Code)
	}

	if err.Operation != "REQUEST_DB_SIZE" {
		t.Errorf("expected operation=REQUEST_DB_SIZE, got %s", err.Operation)
	}

	if err.Elapsed != 150*time.Millisecond {
		t.Errorf("expected elapsed=150ms, got %v", err.Elapsed)
	}
}

func TestErrAuthenticationFailed(t *testing.T) {
	err := ErrAuthenticationFailed("admin", nil)

	if err.Code != "AUTH_FAILED" {
		t.Errorf("expected code=AUTH_FAILED, got %s", err.Code)
	}

	if err.User != "admin" {
		t.Errorf("expected user=admin, got %s", err.User)
	}
}

func TestErrProtocolVersion(t *testing.T) {
	err := ErrProtocolVersion(25, 26, 38)

	if err.Code != "PROTOCOL_VERSION_MISMATCH" {
		t.Errorf("expected code=PROTOCOL_VERSION_MISMATCH, got %s", err.Code)
	}

	if err.Details["serverVersion"] != int16(25) {
		t.Errorf("expected serverVersion=25, got %v", err.Details["serverVersion"])
	}
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{
		Code:    "PROTOCOL_VIOLATION",
		Type:    "PROTOCOL_ERROR",
		Message: "malformed response",
		Details: map[string]interface{}{
			"status": 7,
		},
	}

	errStr := err.Error()

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(errStr), &parsed); jsonErr != nil {
		t.Fatalf("error should be valid JSON: %v", jsonErr)
	}

	if parsed["code"] != "PROTOCOL_VIOLATION" {
		t.Errorf("expected code=PROTOCOL_VIOLATION, got %v", parsed["code"])
	}
}

func TestStateError(t *testing.T) {
	err := &StateError{
		Code:    "INVALID_STATE",
		Type:    "STATE_ERROR",
		Message: "invalid state",
		Details: map[string]interface{}{
			"operation":     "Query",
			"requiredState": "CONNECTED",
			"currentState":  "DISCONNECTED",
		},
	}

	errStr := err.Error()

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(errStr), &parsed); jsonErr != nil {
		t.Fatalf("error should be valid JSON: %v", jsonErr)
	}

	details := parsed["details"].(map[string]interface{})
	if details["operation"] != "Query" {
		t.Errorf("expected operation=Query, got %v", details["operation"])
	}
}

func TestErrInvalidState(t *testing.T) {
	err := ErrInvalidState("Query", CONNECTED, DISCONNECTED)

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	stateErr, ok := err.(*StateError)
	if !ok {
		t.Fatalf("expected *StateError, got %T", err)
	}

	if stateErr.Code != "INVALID_STATE" {
		t.Errorf("expected code=INVALID_STATE, got %s", stateErr.Code)
	}

	details := stateErr.Details
	if details["operation"] != "Query" {
		t.Errorf("expected operation=Query, got %v", details["operation"])
	}

	if details["requiredState"] != "CONNECTED" {
		t.Errorf("expected requiredState=CONNECTED, got %v", details["requiredState"])
	}

	if details["currentState"] != "DISCONNECTED" {
		t.Errorf("expected currentState=DISCONNECTED, got %v", details["currentState"])
	}
}

func TestNewServerError(t *testing.T) {
	exceptions := []ServerException{
		{Class: "com.orientechnologies.orient.core.exception.OCommandExecutionException", Message: "cannot execute"},
		{Class: "java.lang.IllegalArgumentException", Message: "bad argument"},
	}

	err := NewServerError(exceptions, []byte("trace blob"))

	if err.Code != "SERVER_ERROR" {
		t.Errorf("expected code=SERVER_ERROR, got %s", err.Code)
	}

	// Message comes from the outermost exception
	if err.Message != "cannot execute" {
		t.Errorf("expected message from first exception, got %q", err.Message)
	}

	if len(err.Exceptions) != 2 {
		t.Fatalf("expected 2 exceptions, got %d", len(err.Exceptions))
	}

	if err.Exceptions[0].Class != exceptions[0].Class {
		t.Errorf("expected server order preserved, got %s first", err.Exceptions[0].Class)
	}

	if string(err.ServerTrace) != "trace blob" {
		t.Errorf("expected trace blob preserved, got %q", err.ServerTrace)
	}
}

func TestNewServerErrorEmptyChain(t *testing.T) {
	err := NewServerError(nil, nil)

	if err.Message != "server reported an error" {
		t.Errorf("expected fallback message, got %q", err.Message)
	}
}

func TestServerErrorHasExceptionClass(t *testing.T) {
	err := NewServerError([]ServerException{
		{Class: "com.orientechnologies.orient.core.exception.ODatabaseException", Message: "x"},
	}, nil)

	if !err.HasExceptionClass("ODatabaseException") {
		t.Error("expected fragment match on class name")
	}

	if err.HasExceptionClass("OSecurityAccessException") {
		t.Error("expected no match for absent class")
	}
}

func TestServerErrorJSONOmitsTrace(t *testing.T) {
	err := NewServerError([]ServerException{
		{Class: "OException", Message: "boom"},
	}, []byte{0x01, 0x02})

	errStr := err.Error()

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(errStr), &parsed); jsonErr != nil {
		t.Fatalf("error should be valid JSON: %v", jsonErr)
	}

	// The binary trace blob must not leak into the JSON form
	if _, ok := parsed["server_trace"]; ok {
		t.Error("expected no server_trace field in JSON")
	}

	chain, ok := parsed["exceptions"].([]interface{})
	if !ok || len(chain) != 1 {
		t.Fatalf("expected exceptions array with 1 entry, got %v", parsed["exceptions"])
	}
}

func TestServerErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
		expected  bool
	}{
		{
			name: "database already exists",
			err: NewServerError([]ServerException{
				{Class: "com.orientechnologies.orient.core.exception.ODatabaseException", Message: "Database named 'demo' already exists"},
			}, nil),
			predicate: IsDatabaseAlreadyExists,
			expected:  true,
		},
		{
			name: "database not found via storage exception",
			err: NewServerError([]ServerException{
				{Class: "com.orientechnologies.orient.core.exception.OStorageException", Message: "Database with name 'ghost' does not exist"},
			}, nil),
			predicate: IsDatabaseNotFound,
			expected:  true,
		},
		{
			name: "not found message without matching class",
			err: NewServerError([]ServerException{
				{Class: "java.lang.IllegalStateException", Message: "does not exist"},
			}, nil),
			predicate: IsDatabaseNotFound,
			expected:  false,
		},
		{
			name: "concurrent modification",
			err: NewServerError([]ServerException{
				{Class: "com.orientechnologies.orient.core.exception.OConcurrentModificationException", Message: "version mismatch on #10:3"},
			}, nil),
			predicate: IsConcurrentModification,
			expected:  true,
		},
		{
			name: "validation failure",
			err: NewServerError([]ServerException{
				{Class: "com.orientechnologies.orient.core.exception.OValidationException", Message: "field 'name' is mandatory"},
			}, nil),
			predicate: IsValidationError,
			expected:  true,
		},
		{
			name: "security exception",
			err: NewServerError([]ServerException{
				{Class: "com.orientechnologies.orient.core.exception.OSecurityAccessException", Message: "user or password not valid"},
			}, nil),
			predicate: isSecurityException,
			expected:  true,
		},
		{
			name:      "non-server error",
			err:       fmt.Errorf("plain error"),
			predicate: IsConcurrentModification,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.predicate(tt.err); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestServerErrorPredicateThroughWrapping(t *testing.T) {
	inner := NewServerError([]ServerException{
		{Class: "com.orientechnologies.orient.core.exception.OSecurityAccessException", Message: "bad credentials"},
	}, nil)
	wrapped := ErrAuthenticationFailed("admin", inner)

	if !isSecurityException(wrapped) {
		t.Error("expected predicate to see through the wrapper")
	}
}

func TestErrSchemaResolution(t *testing.T) {
	cause := fmt.Errorf("unresolved property id 42")
	err := ErrSchemaResolution(42, cause)

	if err.Code != "SCHEMA_UNRESOLVED_PROPERTY" {
		t.Errorf("expected code=SCHEMA_UNRESOLVED_PROPERTY, got %s", err.Code)
	}

	if err.PropertyID != 42 {
		t.Errorf("expected property id 42, got %d", err.PropertyID)
	}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestFormatErrorSimpleMode(t *testing.T) {
	err := ErrConnectionFailed("localhost:2424", fmt.Errorf("refused"))

	formatted := FormatError(err, false)

	// Simple mode is a one-liner, no JSON
	if strings.Contains(formatted, "{") {
		t.Errorf("expected plain text in simple mode, got %s", formatted)
	}

	if !strings.Contains(formatted, "CONNECTION_FAILED") {
		t.Errorf("expected error code present, got %s", formatted)
	}
}

func TestFormatErrorDebugMode(t *testing.T) {
	err := ErrConnectionFailed("localhost:2424", fmt.Errorf("refused"))

	formatted := FormatError(err, true)

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(formatted), &parsed); jsonErr != nil {
		t.Fatalf("debug format should be valid JSON: %v", jsonErr)
	}

	if parsed["stack_trace"] == nil {
		t.Error("expected stack trace in debug mode")
	}
}

func TestFormatErrorPlainError(t *testing.T) {
	err := fmt.Errorf("plain error")

	if got := FormatError(err, false); got != "plain error" {
		t.Errorf("expected plain error passthrough, got %s", got)
	}
}

func TestCaptureStackTrace(t *testing.T) {
	trace := captureStackTrace()

	if len(trace) == 0 {
		t.Fatal("expected non-empty stack trace")
	}

	// Frames carry function plus file:line
	if !strings.Contains(trace[0], ".go:") {
		t.Errorf("expected file:line in frame, got %s", trace[0])
	}
}
