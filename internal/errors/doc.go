// Package errors defines the failure taxonomy for dynamic tools.
//
// Failures are grouped by the phase that produces them: ValidationFailure
// during directory scans, InvocationFailure during tool calls, and
// ProtocolFailure inside a protocol session. All types support error
// unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
