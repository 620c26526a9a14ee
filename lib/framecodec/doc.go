// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package framecodec turns captured bitmaps into the bytes published to
// the frame slot and back.
//
// A [Frame] is the envelope that gets encrypted into screen.enc: the
// capture timestamp (so the viewer can measure end-to-end latency),
// dimensions, the codec, and the compressed image. Envelopes are CBOR
// via lib/codec.
//
// [Compressor] implements the size budget. The default codec is JPEG
// driven by an adaptive-quality loop: encode at StartQuality, and while
// the output exceeds Budget step the quality down by QualityStep until
// it fits or FloorQuality is reached. Output at the floor may still
// exceed the budget; that frame is published anyway.
//
// The lossless codecs (zstd, lz4) compress raw pixel rows and suit
// text-heavy windows where JPEG ringing hurts legibility. When a
// lossless frame does not fit the budget (or does not compress at all)
// the compressor falls back to the JPEG loop for that frame.
package framecodec
