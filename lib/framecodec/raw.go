// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framecodec

import (
	"errors"
	"fmt"
	"image"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/image/draw"
)

// errIncompressible is returned when a lossless codec cannot shrink the
// pixel rows; the compressor falls back to JPEG.
var errIncompressible = errors.New("pixels are incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	// SpeedFastest: a frame is produced every capture tick, ratio
	// matters less than staying inside the interval.
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic("framecodec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDimension*maxDimension*4))
	if err != nil {
		panic("framecodec: zstd decoder initialization failed: " + err.Error())
	}
}

// rawPixels returns tightly packed pixel rows for img.
func rawPixels(img image.Image) (PixelFormat, []byte) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if gray, ok := img.(*image.Gray); ok {
		return PixelGray, packRows(gray.Pix, gray.Stride, width, height)
	}
	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) {
		return PixelRGBA, packRows(rgba.Pix, rgba.Stride, width*4, height)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return PixelRGBA, rgba.Pix
}

func packRows(pix []byte, stride, rowBytes, height int) []byte {
	if stride == rowBytes {
		return pix[:rowBytes*height]
	}
	packed := make([]byte, 0, rowBytes*height)
	for row := 0; row < height; row++ {
		packed = append(packed, pix[row*stride:row*stride+rowBytes]...)
	}
	return packed
}

func compressRaw(codec Codec, pixels []byte) ([]byte, error) {
	switch codec {
	case CodecZstd:
		compressed := zstdEncoder.EncodeAll(pixels, nil)
		if len(compressed) >= len(pixels) {
			return nil, errIncompressible
		}
		return compressed, nil
	case CodecLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(pixels)))
		written, err := lz4.CompressBlock(pixels, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 || written >= len(pixels) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	default:
		return nil, fmt.Errorf("codec %s is not lossless", codec)
	}
}

func decompressRaw(frame Frame) (image.Image, error) {
	bpp := frame.Format.bytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("unknown pixel format %d", frame.Format)
	}
	size := frame.Width * frame.Height * bpp

	var pixels []byte
	switch frame.Codec {
	case CodecZstd:
		decoded, err := zstdDecoder.DecodeAll(frame.Data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		pixels = decoded
	case CodecLZ4:
		pixels = make([]byte, size)
		read, err := lz4.UncompressBlock(frame.Data, pixels)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		pixels = pixels[:read]
	}
	if len(pixels) != size {
		return nil, fmt.Errorf("%s frame decoded to %d bytes, want %d", frame.Codec, len(pixels), size)
	}

	rect := image.Rect(0, 0, frame.Width, frame.Height)
	if frame.Format == PixelGray {
		return &image.Gray{Pix: pixels, Stride: frame.Width, Rect: rect}, nil
	}
	return &image.RGBA{Pix: pixels, Stride: frame.Width * 4, Rect: rect}, nil
}
