package errors

import (
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// DynamicToolsError is the base interface for all errors raised by this module.
type DynamicToolsError interface {
	error
	IsDynamicToolsError() bool
}

// Compile-time verification that all error types implement DynamicToolsError.
var (
	_ DynamicToolsError = (*ValidationFailure)(nil)
	_ DynamicToolsError = (*InvocationFailure)(nil)
	_ DynamicToolsError = (*ProtocolFailure)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrToolsDirNotFound indicates the configured tools directory does not exist.
	ErrToolsDirNotFound = errors.New("tools directory not found")

	// ErrSessionClosed indicates the protocol session has terminated.
	ErrSessionClosed = errors.New("session closed")

	// ErrTransportClosed indicates the transport can no longer send or receive.
	ErrTransportClosed = errors.New("transport closed")

	// ErrInvalidToolName indicates a tool name that clients cannot address.
	ErrInvalidToolName = errors.New("invalid tool name")

	// ErrToolExists indicates a built-in tool already owns the requested name.
	ErrToolExists = errors.New("tool already exists")
)

// Kind classifies a failure. The string value is what clients and
// diagnostics see.
type Kind string

// Discovery-time kinds.
const (
	KindSyntaxError    Kind = "SyntaxError"
	KindSignatureError Kind = "SignatureError"
	KindNameCollision  Kind = "NameCollision"
)

// Call-time kinds.
const (
	KindUnknownTool  Kind = "UnknownTool"
	KindLoadError    Kind = "LoadError"
	KindRuntimeError Kind = "RuntimeError"
)

// Session-level kinds.
const (
	KindMalformedRequest Kind = "MalformedRequest"
	KindInvalidRequest   Kind = "InvalidRequest"
	KindUnknownMethod    Kind = "UnknownMethod"
	KindInvalidParams    Kind = "InvalidParams"
	KindNotInitialized   Kind = "NotInitialized"
	KindInternal         Kind = "InternalError"
)

// ValidationFailure reports a file that could not become a tool during a scan.
// It is collected as a catalog diagnostic and never aborts the scan.
type ValidationFailure struct {
	Kind    Kind   `json:"kind"`
	Tool    string `json:"tool,omitempty"`
	Path    string `json:"path"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ValidationFailure) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s at line %d: %s", e.Path, e.Kind, e.Line, e.Message)
	}

	return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Message)
}

func (e *ValidationFailure) Unwrap() error {
	return e.Err
}

// IsDynamicToolsError implements DynamicToolsError.
func (e *ValidationFailure) IsDynamicToolsError() bool { return true }

// InvocationFailure is the failure side of an invocation result. It is
// returned as a value to the protocol layer, never raised.
type InvocationFailure struct {
	Kind    Kind   `json:"kind"`
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

func (e *InvocationFailure) Error() string {
	return fmt.Sprintf("%s in %s: %s", e.Kind, e.Tool, e.Message)
}

func (e *InvocationFailure) Unwrap() error {
	return e.Err
}

// IsDynamicToolsError implements DynamicToolsError.
func (e *InvocationFailure) IsDynamicToolsError() bool { return true }

// ProtocolFailure is a session-level error answered with a JSON-RPC error
// response. It never closes the session.
type ProtocolFailure struct {
	Kind    Kind
	Method  string
	Message string
	Err     error
}

func (e *ProtocolFailure) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Method, e.Message)
}

func (e *ProtocolFailure) Unwrap() error {
	return e.Err
}

// IsDynamicToolsError implements DynamicToolsError.
func (e *ProtocolFailure) IsDynamicToolsError() bool { return true }

// Code maps the failure kind to a JSON-RPC error code.
func (e *ProtocolFailure) Code() int64 {
	switch e.Kind {
	case KindMalformedRequest:
		return jsonrpc.CodeParseError
	case KindUnknownMethod:
		return jsonrpc.CodeMethodNotFound
	case KindInvalidParams:
		return jsonrpc.CodeInvalidParams
	case KindInvalidRequest, KindNotInitialized:
		return jsonrpc.CodeInvalidRequest
	default:
		return jsonrpc.CodeInternalError
	}
}

// WireError converts the failure into the error carried by a JSON-RPC response.
func (e *ProtocolFailure) WireError() *jsonrpc.Error {
	return &jsonrpc.Error{
		Code:    e.Code(),
		Message: e.Message,
	}
}
