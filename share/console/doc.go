// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package console is the operator's terminal front end. It shows a
// status line (session, frames, latency, queue depth) and forwards
// keystrokes to the client as KeyPress commands.
//
// ctrl+q quits and ctrl+t pauses forwarding; every other key goes to
// the client. Keys the terminal reports as bare modifiers are never
// forwarded. Warnings and errors logged while the console is up are
// shown in the status area through [LogHandler]. When the session
// ends on a fatal error the console shows the error and waits for a
// key before exiting.
package console
