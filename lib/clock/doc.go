// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the sharedesk
// polling loops.
//
// Every loop (capture, watch, dispatch, receive) and the shared storage
// permit wait on a [Clock] instead of calling time.After or time.Now
// directly. Production code passes [Real]; tests pass [Fake] and drive
// ticks deterministically:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop.Run(ctx)
//	c.WaitForTimers(1)             // the loop is parked on its tick delay
//	c.Advance(50 * time.Millisecond) // release exactly one tick
//
// WaitForTimers closes the race between a goroutine registering its
// wait and the test advancing time, so no test needs a wall-clock
// sleep to observe loop behavior.
package clock
