// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bureau-foundation/sharedesk/lib/framecodec"
)

// watchLoop shows new frames from the frame slot on the operator.
type watchLoop struct {
	env       *SessionContext
	frames    FrameChannel
	detector  *ChangeDetector
	display   Display
	latency   *LatencyStats
	displayed atomic.Uint64
}

// tick reads the slot and displays the frame if its image differs from
// the last one shown. Frames that fail to decrypt or decode (torn
// reads, foreign writers) are discarded without counting as failures.
func (w *watchLoop) tick(ctx context.Context) error {
	blob, found, err := w.frames.TryRead(ctx)
	if err != nil {
		return fmt.Errorf("reading frame: %w", err)
	}
	if !found {
		return nil
	}

	payload, err := w.env.Key.Decrypt(blob)
	if err != nil {
		w.env.Logger.Debug("discarding frame", "error", err)
		return nil
	}
	frame, err := framecodec.ParseFrame(payload)
	if err != nil {
		w.env.Logger.Debug("discarding frame", "error", fmt.Errorf("%w: %w", ErrCrypto, err))
		return nil
	}

	// The digest covers the image bytes only: the capture timestamp
	// changes every tick even when the screen does not.
	digest, changed := w.detector.Changed(frame.Data)
	if !changed {
		return nil
	}

	img, err := framecodec.Decode(frame)
	if err != nil {
		w.env.Logger.Debug("discarding frame", "error", fmt.Errorf("%w: %w", ErrCrypto, err))
		return nil
	}
	if err := w.display.Show(ctx, img); err != nil {
		return fmt.Errorf("displaying frame: %w", err)
	}
	w.detector.Commit(digest)
	w.displayed.Add(1)

	if !frame.CapturedAt.IsZero() {
		w.latency.Record(w.env.Clock.Now().Sub(frame.CapturedAt))
	}
	return nil
}
