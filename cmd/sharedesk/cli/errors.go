// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have already written its
// own output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this interface on
// returned errors.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// UsageError is an error caused by the invocation rather than by the
// session: unknown commands, bad flags, missing arguments. It exits
// with code 2.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode returns 2, the conventional code for usage errors.
func (e *UsageError) ExitCode() int { return 2 }

// Validation creates a usage error: the caller provided bad input.
func Validation(format string, args ...any) *UsageError {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}
