// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package share implements a remote desktop session whose only
// transport is a folder both peers can reach (a network share, a synced
// directory, a removable disk).
//
// The folder behaves like a lossy half-duplex link:
//
//	<shared>/encryption.key   32 raw bytes, generated once
//	<shared>/screen.enc       IV || AES-CBC(frame envelope), overwritten
//	<shared>/cmd_<id>.enc     IV || AES-CBC(command), one file per command
//
// A session runs in one of two roles. The client captures its screen
// (or one window) into screen.enc and, when remote control is enabled,
// executes the commands it finds in the mailbox. The operator watches
// screen.enc for new frames and sends its input as commands.
//
// Every loop is a [Loop]: a tick function run at a fixed interval under
// an [ErrorPolicy]. Transient failures back off and retry; a run of
// consecutive failures, or a target window that disappears, ends the
// whole session with a [*FatalError].
//
// All file access within one process goes through [Storage], which
// serializes it behind a single permit with a bounded wait. The permit
// does not coordinate with the remote peer: a torn read of screen.enc
// fails to decrypt or decode and is dropped, and the next tick reads
// the file again.
package share
