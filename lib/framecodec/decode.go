// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Decode decompresses a Frame into a bitmap.
func Decode(frame Frame) (image.Image, error) {
	switch frame.Codec {
	case CodecJPEG:
		img, err := jpeg.Decode(bytes.NewReader(frame.Data))
		if err != nil {
			return nil, fmt.Errorf("jpeg decode: %w", err)
		}
		return img, nil
	case CodecZstd, CodecLZ4:
		return decompressRaw(frame)
	default:
		return nil, fmt.Errorf("unsupported frame codec %s", frame.Codec)
	}
}
