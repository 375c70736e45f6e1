package errors

import (
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/require"
)

func TestValidationFailure_WithLine(t *testing.T) {
	err := &ValidationFailure{
		Kind:    KindSyntaxError,
		Tool:    "broken",
		Path:    "/tools/broken.star",
		Line:    3,
		Message: "got newline, want ':'",
	}

	require.Equal(t, "/tools/broken.star: SyntaxError at line 3: got newline, want ':'", err.Error())
	require.True(t, err.IsDynamicToolsError())
}

func TestValidationFailure_WithoutLine(t *testing.T) {
	root := errors.New("no invoke")
	err := &ValidationFailure{
		Kind:    KindSignatureError,
		Path:    "/tools/empty.star",
		Message: "missing invoke function",
		Err:     root,
	}

	require.Equal(t, "/tools/empty.star: SignatureError: missing invoke function", err.Error())
	require.ErrorIs(t, err, root)
}

func TestInvocationFailure(t *testing.T) {
	root := errors.New("division by zero")
	err := &InvocationFailure{
		Kind:    KindRuntimeError,
		Tool:    "divide",
		Message: "floored division by zero",
		Detail:  "Traceback ...",
		Err:     root,
	}

	require.Equal(t, "RuntimeError in divide: floored division by zero", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsDynamicToolsError())

	matched, ok := errors.AsType[*InvocationFailure](error(err))
	require.True(t, ok)
	require.Equal(t, KindRuntimeError, matched.Kind)
}

func TestProtocolFailure_Codes(t *testing.T) {
	tests := []struct {
		kind Kind
		code int64
	}{
		{kind: KindMalformedRequest, code: jsonrpc.CodeParseError},
		{kind: KindInvalidRequest, code: jsonrpc.CodeInvalidRequest},
		{kind: KindUnknownMethod, code: jsonrpc.CodeMethodNotFound},
		{kind: KindInvalidParams, code: jsonrpc.CodeInvalidParams},
		{kind: KindNotInitialized, code: jsonrpc.CodeInvalidRequest},
		{kind: KindInternal, code: jsonrpc.CodeInternalError},
		{kind: KindRuntimeError, code: jsonrpc.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &ProtocolFailure{Kind: tt.kind, Method: "tools/call", Message: "bad"}

			require.Equal(t, tt.code, err.Code())

			wire := err.WireError()
			require.Equal(t, tt.code, wire.Code)
			require.Equal(t, "bad", wire.Message)
		})
	}
}

func TestProtocolFailure_Error(t *testing.T) {
	require.Equal(t, "UnknownMethod (resources/list): method not found",
		(&ProtocolFailure{Kind: KindUnknownMethod, Method: "resources/list", Message: "method not found"}).Error())
	require.Equal(t, "MalformedRequest: unexpected end of JSON input",
		(&ProtocolFailure{Kind: KindMalformedRequest, Message: "unexpected end of JSON input"}).Error())
}
