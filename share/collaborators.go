// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"image"

	"github.com/bureau-foundation/sharedesk/lib/desktop"
)

// FrameSource captures the shared target. Implementations report a
// closed window as desktop.ErrWindowGone.
type FrameSource interface {
	// Capture grabs one frame of target.
	Capture(ctx context.Context, target desktop.Target) (image.Image, error)

	// Locate returns the target's origin in absolute coordinates and
	// confirms it still exists.
	Locate(ctx context.Context, target desktop.Target) (image.Point, error)
}

// InputSink injects input on the client.
type InputSink interface {
	Focus(ctx context.Context, window string) error
	MoveCursor(ctx context.Context, point image.Point) error
	Click(ctx context.Context, button desktop.Button, double bool) error
	SendChar(ctx context.Context, char rune, modifiers desktop.Modifiers) error
	SendSpecial(ctx context.Context, key desktop.Key, modifiers desktop.Modifiers) error
}

// Display shows frames on the operator.
type Display interface {
	Show(ctx context.Context, img image.Image) error
}

// MultiDisplay shows each frame on every display in order, stopping at
// the first error.
type MultiDisplay []Display

func (m MultiDisplay) Show(ctx context.Context, img image.Image) error {
	for _, display := range m {
		if err := display.Show(ctx, img); err != nil {
			return err
		}
	}
	return nil
}
