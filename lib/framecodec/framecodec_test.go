// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framecodec

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"
	"time"
)

var capturedAt = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

// noiseImage is incompressible for the lossless codecs and expensive
// for JPEG, which makes quality steps visible in the output size.
func noiseImage(width, height int) *image.RGBA {
	source := rand.New(rand.NewPCG(1, 2))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for index := range img.Pix {
		img.Pix[index] = byte(source.UintN(256))
	}
	return img
}

// desktopImage resembles a window: flat panels and a few text-like rows.
func desktopImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			shade := color.RGBA{R: 0xee, G: 0xee, B: 0xf0, A: 0xff}
			if y < 24 {
				shade = color.RGBA{R: 0x30, G: 0x50, B: 0x90, A: 0xff}
			} else if y%16 == 8 && x%7 < 4 {
				shade = color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff}
			}
			img.SetRGBA(x, y, shade)
		}
	}
	return img
}

func TestJPEGSizeDecreasesWithQuality(t *testing.T) {
	img := noiseImage(256, 256)
	options := DefaultOptions()

	previous := -1
	for quality := options.StartQuality; quality >= options.FloorQuality; quality -= options.QualityStep {
		data, err := EncodeJPEG(img, quality)
		if err != nil {
			t.Fatalf("EncodeJPEG(%d): %v", quality, err)
		}
		if previous >= 0 && len(data) > previous {
			t.Errorf("quality %d produced %d bytes, more than %d at the previous step", quality, len(data), previous)
		}
		previous = len(data)
	}
}

func TestCompressMeetsBudget(t *testing.T) {
	img := noiseImage(256, 256)
	atStart, err := EncodeJPEG(img, 75)
	if err != nil {
		t.Fatal(err)
	}
	atForty, err := EncodeJPEG(img, 40)
	if err != nil {
		t.Fatal(err)
	}

	options := DefaultOptions()
	options.Budget = len(atForty) + (len(atStart)-len(atForty))/4
	compressor, err := NewCompressor(options)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	frame, err := compressor.Compress(img, capturedAt)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(frame.Data) > options.Budget {
		t.Errorf("frame is %d bytes, budget %d", len(frame.Data), options.Budget)
	}
	if frame.Quality >= options.StartQuality || frame.Quality < 40 {
		t.Errorf("quality = %d, want a step between 40 and %d", frame.Quality, options.StartQuality)
	}
	if frame.Codec != CodecJPEG || frame.Width != 256 || frame.Height != 256 || !frame.CapturedAt.Equal(capturedAt) {
		t.Errorf("unexpected envelope: %+v", frame)
	}
}

func TestCompressStopsAtQualityFloor(t *testing.T) {
	options := DefaultOptions()
	options.Budget = 16
	compressor, err := NewCompressor(options)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	frame, err := compressor.Compress(noiseImage(64, 64), capturedAt)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if frame.Quality != options.FloorQuality {
		t.Errorf("quality = %d, want floor %d", frame.Quality, options.FloorQuality)
	}
	// Over budget at the floor is accepted: the frame is still published.
	if len(frame.Data) <= options.Budget {
		t.Errorf("a 64x64 noise JPEG fit in %d bytes; test image is not exercising the floor", options.Budget)
	}
}

func TestLosslessRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecZstd, CodecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			options := DefaultOptions()
			options.Codec = codec
			compressor, err := NewCompressor(options)
			if err != nil {
				t.Fatalf("NewCompressor: %v", err)
			}

			source := desktopImage(200, 120)
			frame, err := compressor.Compress(source, capturedAt)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if frame.Codec != codec || frame.Format != PixelRGBA {
				t.Fatalf("frame codec/format = %s/%d, want %s/RGBA", frame.Codec, frame.Format, codec)
			}

			encoded, err := frame.Marshal()
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			parsed, err := ParseFrame(encoded)
			if err != nil {
				t.Fatalf("ParseFrame: %v", err)
			}
			decoded, err := Decode(parsed)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			rgba, ok := decoded.(*image.RGBA)
			if !ok {
				t.Fatalf("decoded %T, want *image.RGBA", decoded)
			}
			if string(rgba.Pix) != string(source.Pix) {
				t.Error("lossless round trip changed pixels")
			}
		})
	}
}

func TestLosslessFallsBackToJPEG(t *testing.T) {
	options := DefaultOptions()
	options.Codec = CodecLZ4
	compressor, err := NewCompressor(options)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	frame, err := compressor.Compress(noiseImage(128, 128), capturedAt)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if frame.Codec != CodecJPEG {
		t.Errorf("incompressible frame used %s, want jpeg fallback", frame.Codec)
	}
	if _, err := Decode(frame); err != nil {
		t.Errorf("Decode fallback frame: %v", err)
	}
}

func TestPrepareScalesAndGrays(t *testing.T) {
	options := DefaultOptions()
	options.MaxDimension = 100
	options.Grayscale = true
	options.Codec = CodecZstd
	compressor, err := NewCompressor(options)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}

	frame, err := compressor.Compress(desktopImage(400, 200), capturedAt)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if frame.Width != 100 || frame.Height != 50 {
		t.Errorf("scaled to %dx%d, want 100x50", frame.Width, frame.Height)
	}
	if frame.Format != PixelGray {
		t.Errorf("format = %d, want gray", frame.Format)
	}
	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := decoded.(*image.Gray); !ok {
		t.Errorf("decoded %T, want *image.Gray", decoded)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	if _, err := ParseFrame([]byte("definitely not cbor")); err == nil {
		t.Error("ParseFrame accepted garbage")
	}

	empty, err := Frame{Codec: CodecJPEG, Width: 10, Height: 10}.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFrame(empty); err == nil {
		t.Error("ParseFrame accepted a frame without data")
	}

	huge, err := Frame{Codec: CodecZstd, Width: 1 << 20, Height: 1, Data: []byte{1}}.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFrame(huge); err == nil {
		t.Error("ParseFrame accepted out-of-range dimensions")
	}
}

func TestOptionsValidate(t *testing.T) {
	bad := DefaultOptions()
	bad.FloorQuality = 90
	if _, err := NewCompressor(bad); err == nil {
		t.Error("floor above start accepted")
	}
	bad = DefaultOptions()
	bad.QualityStep = 0
	if _, err := NewCompressor(bad); err == nil {
		t.Error("zero quality step accepted")
	}
	bad = DefaultOptions()
	bad.Codec = Codec(9)
	if _, err := NewCompressor(bad); err == nil {
		t.Error("unknown codec accepted")
	}
}
