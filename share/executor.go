// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/bureau-foundation/sharedesk/lib/clock"
	"github.com/bureau-foundation/sharedesk/lib/desktop"
)

// DefaultFocusSettle is the pause after focusing the target window.
const DefaultFocusSettle = 50 * time.Millisecond

// Executor applies received commands to the client desktop.
type Executor struct {
	target      desktop.Target
	source      FrameSource
	input       InputSink
	focusSettle time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

// NewExecutor returns an Executor for target. source re-validates the
// target before every command and supplies its origin.
func NewExecutor(target desktop.Target, source FrameSource, input InputSink, focusSettle time.Duration, c clock.Clock, logger *slog.Logger) *Executor {
	return &Executor{
		target:      target,
		source:      source,
		input:       input,
		focusSettle: focusSettle,
		clock:       c,
		logger:      logger,
	}
}

// Execute applies one command. It returns an error only when the
// session must end (ErrTargetGone) or ctx is done; input failures are
// logged and dropped so one bad command does not halt remote control.
func (e *Executor) Execute(ctx context.Context, id uint64, command Command) error {
	origin, err := e.source.Locate(ctx, e.target)
	if err != nil {
		if errors.Is(err, desktop.ErrWindowGone) {
			return fmt.Errorf("%w: %w", ErrTargetGone, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("dropping command: cannot locate target",
			"id", id, "target", e.target.String(), "error", err)
		return nil
	}

	if err := e.apply(ctx, origin, command); err != nil {
		if errors.Is(err, desktop.ErrWindowGone) {
			return fmt.Errorf("%w: %w", ErrTargetGone, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("command failed", "id", id, "command", command.String(), "error", err)
		return nil
	}

	if !command.IssuedAt.IsZero() {
		e.logger.Debug("command executed", "id", id, "command", command.String(),
			"latency", e.clock.Now().Sub(command.IssuedAt))
	}
	return nil
}

func (e *Executor) apply(ctx context.Context, origin image.Point, command Command) error {
	if e.target.Kind == desktop.TargetWindow {
		if err := e.input.Focus(ctx, e.target.Window); err != nil {
			return fmt.Errorf("focusing window %s: %w", e.target.Window, err)
		}
		if err := clock.Wait(ctx, e.clock, e.focusSettle); err != nil {
			return err
		}
	}

	switch command.Type {
	case MouseClick:
		point := origin.Add(image.Pt(command.X, command.Y))
		if err := e.input.MoveCursor(ctx, point); err != nil {
			return fmt.Errorf("moving cursor to %v: %w", point, err)
		}
		return e.input.Click(ctx, command.Button, command.DoubleClick)
	case KeyPress:
		if key, ok := desktop.ParseKeyToken(command.KeyChar); ok {
			return e.input.SendSpecial(ctx, key, command.Modifiers)
		}
		for _, char := range command.KeyChar {
			if err := e.input.SendChar(ctx, char, command.Modifiers); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown command type %d", int(command.Type))
	}
}
