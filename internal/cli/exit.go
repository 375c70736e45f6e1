package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	exitSuccess    = 0
	exitRuntime    = 1
	exitValidation = 2
	exitConfig     = 3
)

// ExitError is an error that carries a specific process exit code.
// RunE returns it so main can exit with Code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}

	if exitErr, ok := errors.AsType[*ExitError](err); ok {
		return exitErr.Code
	}

	return exitRuntime
}
