// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framecodec

import (
	"fmt"
	"time"

	"github.com/bureau-foundation/sharedesk/lib/codec"
)

// Codec identifies how Frame.Data is compressed. Values are part of the
// shared-folder format.
type Codec uint8

const (
	CodecJPEG Codec = 1
	CodecZstd Codec = 2
	CodecLZ4  Codec = 3
)

func (c Codec) String() string {
	switch c {
	case CodecJPEG:
		return "jpeg"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses the configuration name of a codec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "jpeg", "jpg", "":
		return CodecJPEG, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("unknown frame codec %q (want jpeg, zstd or lz4)", name)
	}
}

// PixelFormat describes raw pixel rows carried by the lossless codecs.
type PixelFormat uint8

const (
	PixelGray PixelFormat = 1
	PixelRGBA PixelFormat = 2
)

func (f PixelFormat) bytesPerPixel() int {
	switch f {
	case PixelGray:
		return 1
	case PixelRGBA:
		return 4
	default:
		return 0
	}
}

// maxDimension bounds width and height accepted from the wire.
const maxDimension = 16384

// Frame is the plaintext of screen.enc.
type Frame struct {
	CapturedAt time.Time   `cbor:"captured_at"`
	Codec      Codec       `cbor:"codec"`
	Format     PixelFormat `cbor:"format,omitempty"`
	Width      int         `cbor:"width"`
	Height     int         `cbor:"height"`
	Quality    int         `cbor:"quality,omitempty"`
	Data       []byte      `cbor:"data"`
}

// Marshal encodes the envelope.
func (f Frame) Marshal() ([]byte, error) {
	data, err := codec.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return data, nil
}

// ParseFrame decodes and sanity-checks an envelope. Torn or foreign
// payloads that happen to decrypt fail here.
func ParseFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := codec.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	if frame.Width <= 0 || frame.Height <= 0 || frame.Width > maxDimension || frame.Height > maxDimension {
		return Frame{}, fmt.Errorf("frame dimensions %dx%d out of range", frame.Width, frame.Height)
	}
	if len(frame.Data) == 0 {
		return Frame{}, fmt.Errorf("frame has no image data")
	}
	return frame, nil
}
