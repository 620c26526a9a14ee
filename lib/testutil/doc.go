// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides channel helpers for sharedesk tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so a broken loop fails the test instead of hanging it.
// They are the only place tests wait on the wall clock; everything else
// drives time through lib/clock.Fake.
package testutil
