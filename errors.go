package dyntools

import "github.com/wagiedev/mcp-dynamic-tools/internal/errors"

// Re-export error types from internal package

// DynamicToolsError is the base interface for all errors of this module.
type DynamicToolsError = errors.DynamicToolsError

// ValidationFailure reports a tool file rejected during a scan.
type ValidationFailure = errors.ValidationFailure

// InvocationFailure is the failure side of an invocation result.
type InvocationFailure = errors.InvocationFailure

// ProtocolFailure is a session-level error answered with a JSON-RPC error.
type ProtocolFailure = errors.ProtocolFailure

// FailureKind classifies a failure.
type FailureKind = errors.Kind

// Failure kinds.
const (
	KindSyntaxError      = errors.KindSyntaxError
	KindSignatureError   = errors.KindSignatureError
	KindNameCollision    = errors.KindNameCollision
	KindUnknownTool      = errors.KindUnknownTool
	KindLoadError        = errors.KindLoadError
	KindRuntimeError     = errors.KindRuntimeError
	KindMalformedRequest = errors.KindMalformedRequest
	KindInvalidRequest   = errors.KindInvalidRequest
	KindUnknownMethod    = errors.KindUnknownMethod
	KindInvalidParams    = errors.KindInvalidParams
	KindNotInitialized   = errors.KindNotInitialized
)

// Re-export sentinel errors from internal package.
var (
	// ErrToolsDirNotFound indicates the configured tools directory does not exist.
	ErrToolsDirNotFound = errors.ErrToolsDirNotFound

	// ErrSessionClosed indicates the protocol session has terminated.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrTransportClosed indicates the transport can no longer send or receive.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrInvalidToolName indicates a tool name that clients cannot address.
	ErrInvalidToolName = errors.ErrInvalidToolName

	// ErrToolExists indicates a built-in tool already owns the requested name.
	ErrToolExists = errors.ErrToolExists
)
