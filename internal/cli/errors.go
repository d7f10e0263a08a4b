package cli

import (
	"errors"
)

// Exit codes
const (
	ExitFailure   = 1
	ExitCancelled = 130
)

// ExitError carries the process exit code of a command. Reported errors have
// already been shown to the user.
type ExitError struct {
	Code     int
	Err      error
	Reported bool
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func reported(code int, err error) error {
	return &ExitError{Code: code, Err: err, Reported: true}
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsReported reports whether err was already displayed
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}
