// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/sharedesk/lib/desktop"
	"github.com/bureau-foundation/sharedesk/lib/framecodec"
)

// captureLoop publishes the client's target into the frame slot.
type captureLoop struct {
	env        *SessionContext
	target     desktop.Target
	source     FrameSource
	compressor *framecodec.Compressor
	frames     FrameChannel
	latency    *LatencyStats
}

// tick captures, compresses, encrypts, and publishes one frame.
func (c *captureLoop) tick(ctx context.Context) error {
	capturedAt := c.env.Clock.Now()

	img, err := c.source.Capture(ctx, c.target)
	if err != nil {
		if errors.Is(err, desktop.ErrWindowGone) {
			return fmt.Errorf("%w: %w", ErrTargetGone, err)
		}
		return fmt.Errorf("capturing %s: %w", c.target, err)
	}

	frame, err := c.compressor.Compress(img, capturedAt)
	if err != nil {
		return fmt.Errorf("compressing frame: %w", err)
	}
	payload, err := frame.Marshal()
	if err != nil {
		return err
	}
	blob, err := c.env.Key.Encrypt(payload)
	if err != nil {
		return err
	}
	if err := c.frames.Publish(ctx, blob); err != nil {
		return fmt.Errorf("publishing frame: %w", err)
	}

	c.latency.Record(c.env.Clock.Now().Sub(capturedAt))
	return nil
}
