package dyntools

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidationFailure_Reexport tests the re-exported validation failure.
func TestValidationFailure_Reexport(t *testing.T) {
	err := &ValidationFailure{
		Kind:    KindSyntaxError,
		Path:    "/tools/broken.star",
		Line:    2,
		Message: "got newline, want ':'",
	}

	require.Error(t, err)
	require.Contains(t, err.Error(), "SyntaxError at line 2")

	var base DynamicToolsError
	require.ErrorAs(t, err, &base)
}

// TestInvocationFailure_Reexport tests unwrapping through the re-exported type.
func TestInvocationFailure_Reexport(t *testing.T) {
	root := fmt.Errorf("boom")
	err := fmt.Errorf("call: %w", &InvocationFailure{
		Kind:    KindRuntimeError,
		Tool:    "divide",
		Message: "floored division by zero",
		Err:     root,
	})

	failure, ok := errors.AsType[*InvocationFailure](err)
	require.True(t, ok)
	require.Equal(t, KindRuntimeError, failure.Kind)
	require.ErrorIs(t, err, root)
}

// TestSentinelErrors tests the re-exported sentinels stay comparable.
func TestSentinelErrors(t *testing.T) {
	wrapped := fmt.Errorf("open tools: %w", ErrToolsDirNotFound)

	require.ErrorIs(t, wrapped, ErrToolsDirNotFound)
	require.NotErrorIs(t, wrapped, ErrSessionClosed)
}
