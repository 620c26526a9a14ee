// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps key material out of the Go heap.
//
// A [Buffer] is an anonymous mmap region locked into RAM with mlock so
// it never reaches swap, and marked MADV_DONTDUMP so it never appears
// in a core dump. The garbage collector does not manage the region, so
// it cannot leave stale copies of a key behind when it moves objects.
// Close zeroes the bytes, then unlocks and unmaps them.
//
// Constructors:
//
//   - [New] -- a zero-filled buffer of a given size
//   - [NewFromBytes] -- copies into protected memory and zeroes the source
//
// [Buffer.Bytes] returns a slice into the mapped region that must not
// outlive the buffer. [Buffer.Equal] compares in constant time. Any
// access after Close panics; Close itself is idempotent.
//
// The session's AES key lives in a Buffer from the moment it is read
// from encryption.key until the session ends. lib/sealed uses Buffers
// for age identities and for key material opened from a sealed export.
//
// Depends on golang.org/x/sys/unix. No sharedesk-internal dependencies.
package secret
