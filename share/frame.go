// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"sync"

	"github.com/zeebo/blake3"
)

// FrameFileName is the single frame slot in the shared folder.
const FrameFileName = "screen.enc"

// FrameChannel is the latest-wins frame slot. There is no sequence
// number: each publish replaces the previous frame.
type FrameChannel struct {
	storage *Storage
}

// NewFrameChannel returns the frame slot of storage.
func NewFrameChannel(storage *Storage) FrameChannel {
	return FrameChannel{storage: storage}
}

// Publish atomically replaces the frame.
func (c FrameChannel) Publish(ctx context.Context, blob []byte) error {
	return c.storage.WriteFile(ctx, FrameFileName, blob)
}

// TryRead returns the current frame. found is false when no frame has
// been published yet.
func (c FrameChannel) TryRead(ctx context.Context) (blob []byte, found bool, err error) {
	return c.storage.ReadFile(ctx, FrameFileName)
}

// Digest identifies frame content.
type Digest [32]byte

// ChangeDetector remembers the digest of the last displayed frame so
// identical frames are decoded and drawn once.
type ChangeDetector struct {
	mu        sync.Mutex
	committed Digest
	has       bool
}

// Changed hashes payload and reports whether it differs from the last
// committed digest. It does not record anything.
func (d *ChangeDetector) Changed(payload []byte) (Digest, bool) {
	digest := Digest(blake3.Sum256(payload))
	d.mu.Lock()
	defer d.mu.Unlock()
	return digest, !d.has || digest != d.committed
}

// Commit records digest as displayed.
func (d *ChangeDetector) Commit(digest Digest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.committed = digest
	d.has = true
}

// Reset forgets the last displayed frame.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.has = false
}
