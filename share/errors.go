// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/sharedesk/lib/cryptobox"
)

var (
	// ErrTransportTimeout is returned when the storage permit could not
	// be acquired within the configured wait. Loops retry with backoff.
	ErrTransportTimeout = errors.New("timed out waiting for shared storage")

	// ErrCrypto marks a frame or command that could not be decrypted or
	// decoded. The payload is discarded and the loop continues.
	ErrCrypto = cryptobox.ErrCrypto

	// ErrTargetGone is returned when the captured window no longer
	// exists. It ends the session immediately.
	ErrTargetGone = errors.New("capture target is gone")

	// ErrConsecutiveErrors is returned when a loop reaches its error
	// threshold. It ends the session.
	ErrConsecutiveErrors = errors.New("too many consecutive errors")

	// ErrStartupConfig rejects a session before any loop starts.
	ErrStartupConfig = errors.New("invalid session configuration")

	// ErrNotOperator is returned by Enqueue on a client session.
	ErrNotOperator = errors.New("only an operator session sends commands")

	// ErrNotRunning is returned by Enqueue when the session is stopped.
	ErrNotRunning = errors.New("session is not running")

	// ErrQueueFull is returned by Enqueue when the dispatch loop has
	// fallen behind.
	ErrQueueFull = errors.New("command queue is full")

	// ErrAlreadyRunning is returned by Run on a session that is running.
	ErrAlreadyRunning = errors.New("session is already running")
)

// FatalError reports the loop that ended a session and why.
type FatalError struct {
	Loop string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s loop stopped the session: %v", e.Loop, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err ends a session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTargetGone) || errors.Is(err, ErrConsecutiveErrors)
}
