// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/sharedesk/lib/clock"
)

// DefaultErrorThreshold is the number of consecutive failures that ends
// a session.
const DefaultErrorThreshold = 5

// Backoff returns the delay after a failed tick given the loop's base
// interval.
type Backoff func(interval time.Duration) time.Duration

// DoublingBackoff waits twice the base interval.
func DoublingBackoff(interval time.Duration) time.Duration { return 2 * interval }

// FixedBackoff waits delay regardless of the interval.
func FixedBackoff(delay time.Duration) Backoff {
	return func(time.Duration) time.Duration { return delay }
}

// ErrorPolicy decides how a loop reacts to failed ticks.
type ErrorPolicy struct {
	// Threshold is the number of consecutive failures that ends the
	// session. A success resets the count.
	Threshold int

	// Backoff computes the delay after a failure. Nil waits the normal
	// interval.
	Backoff Backoff
}

// DefaultErrorPolicy returns a threshold of 5 with doubling backoff.
func DefaultErrorPolicy() ErrorPolicy {
	return ErrorPolicy{Threshold: DefaultErrorThreshold, Backoff: DoublingBackoff}
}

// WithBackoff returns a copy of p using backoff.
func (p ErrorPolicy) WithBackoff(backoff Backoff) ErrorPolicy {
	p.Backoff = backoff
	return p
}

func (p ErrorPolicy) delay(interval time.Duration) time.Duration {
	if p.Backoff == nil {
		return interval
	}
	return p.Backoff(interval)
}

// Loop runs Tick every Interval until the context ends or the error
// policy gives up.
type Loop struct {
	Name     string
	Interval time.Duration
	Tick     func(ctx context.Context) error
	Policy   ErrorPolicy
	Clock    clock.Clock
	Logger   *slog.Logger

	ticks       atomic.Uint64
	failures    atomic.Uint64
	consecutive atomic.Int64
}

// LoopStatus is a snapshot of a loop's counters.
type LoopStatus struct {
	Name        string `json:"name"`
	Ticks       uint64 `json:"ticks"`
	Failures    uint64 `json:"failures"`
	Consecutive int64  `json:"consecutive_failures"`
}

// Status returns the loop's counters.
func (l *Loop) Status() LoopStatus {
	return LoopStatus{
		Name:        l.Name,
		Ticks:       l.ticks.Load(),
		Failures:    l.failures.Load(),
		Consecutive: l.consecutive.Load(),
	}
}

// Run ticks until ctx is done, returning ctx.Err(), or until a fatal
// condition, returning a *FatalError. ErrTargetGone is fatal on first
// sight; any other error counts toward the policy threshold.
func (l *Loop) Run(ctx context.Context) error {
	c := l.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	threshold := l.Policy.Threshold
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}

	consecutive := 0
	for {
		err := l.Tick(ctx)
		l.ticks.Add(1)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := l.Interval
		if err != nil {
			l.failures.Add(1)
			if errors.Is(err, ErrTargetGone) {
				return &FatalError{Loop: l.Name, Err: err}
			}
			consecutive++
			l.consecutive.Store(int64(consecutive))
			if consecutive >= threshold {
				return &FatalError{
					Loop: l.Name,
					Err:  fmt.Errorf("%w (%d in a row): %w", ErrConsecutiveErrors, consecutive, err),
				}
			}
			delay = l.Policy.delay(l.Interval)
			logger.Debug("tick failed",
				"loop", l.Name,
				"consecutive", consecutive,
				"retry_in", delay,
				"error", err,
			)
		} else if consecutive > 0 {
			consecutive = 0
			l.consecutive.Store(0)
		}

		if err := clock.Wait(ctx, c, delay); err != nil {
			return err
		}
	}
}
