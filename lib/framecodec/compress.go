// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"
)

// Options configures a Compressor.
type Options struct {
	// Budget is the target size of Frame.Data in bytes.
	Budget int

	// StartQuality, QualityStep, and FloorQuality drive the JPEG
	// quality loop.
	StartQuality int
	QualityStep  int
	FloorQuality int

	// MaxDimension downscales frames whose longer side exceeds it.
	// Zero disables scaling.
	MaxDimension int

	// Grayscale converts frames to 8-bit luminance before encoding.
	Grayscale bool

	// Codec is the preferred codec. Lossless codecs fall back to JPEG
	// when a frame does not fit the budget.
	Codec Codec
}

// DefaultOptions returns a 1 MiB budget with quality 75 stepping down
// by 5 to a floor of 10.
func DefaultOptions() Options {
	return Options{
		Budget:       1 << 20,
		StartQuality: 75,
		QualityStep:  5,
		FloorQuality: 10,
		Codec:        CodecJPEG,
	}
}

// Validate reports configuration errors.
func (o Options) Validate() error {
	var errs []error
	if o.Budget <= 0 {
		errs = append(errs, fmt.Errorf("budget must be positive, got %d", o.Budget))
	}
	if o.FloorQuality < 1 || o.StartQuality > 100 || o.FloorQuality > o.StartQuality {
		errs = append(errs, fmt.Errorf("quality range %d..%d must satisfy 1 <= floor <= start <= 100", o.FloorQuality, o.StartQuality))
	}
	if o.QualityStep <= 0 {
		errs = append(errs, fmt.Errorf("quality step must be positive, got %d", o.QualityStep))
	}
	if o.MaxDimension < 0 {
		errs = append(errs, fmt.Errorf("max dimension must not be negative"))
	}
	if _, err := ParseCodec(o.Codec.String()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Compressor encodes captured bitmaps into Frames. Safe for concurrent
// use.
type Compressor struct {
	options Options
}

// NewCompressor validates options and returns a Compressor.
func NewCompressor(options Options) (*Compressor, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("frame options: %w", err)
	}
	return &Compressor{options: options}, nil
}

// Compress prepares img (scale, grayscale) and encodes it with the
// configured codec under the size budget.
func (c *Compressor) Compress(img image.Image, capturedAt time.Time) (Frame, error) {
	if img == nil || img.Bounds().Empty() {
		return Frame{}, fmt.Errorf("captured image is empty")
	}
	prepared := c.prepare(img)
	bounds := prepared.Bounds()

	frame := Frame{
		CapturedAt: capturedAt,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
	}

	if c.options.Codec == CodecZstd || c.options.Codec == CodecLZ4 {
		format, pixels := rawPixels(prepared)
		data, err := compressRaw(c.options.Codec, pixels)
		if err == nil && len(data) <= c.options.Budget {
			frame.Codec = c.options.Codec
			frame.Format = format
			frame.Data = data
			return frame, nil
		}
		if err != nil && !errors.Is(err, errIncompressible) {
			return Frame{}, err
		}
	}

	data, quality, err := c.compressJPEG(prepared)
	if err != nil {
		return Frame{}, err
	}
	frame.Codec = CodecJPEG
	frame.Quality = quality
	frame.Data = data
	return frame, nil
}

// compressJPEG runs the adaptive quality loop. Returns the encoded
// bytes and the quality that produced them.
func (c *Compressor) compressJPEG(img image.Image) ([]byte, int, error) {
	quality := c.options.StartQuality
	data, err := EncodeJPEG(img, quality)
	if err != nil {
		return nil, 0, err
	}
	for len(data) > c.options.Budget && quality > c.options.FloorQuality {
		quality = max(quality-c.options.QualityStep, c.options.FloorQuality)
		data, err = EncodeJPEG(img, quality)
		if err != nil {
			return nil, 0, err
		}
	}
	return data, quality, nil
}

// EncodeJPEG encodes img at a fixed quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buffer bytes.Buffer
	if err := jpeg.Encode(&buffer, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode at quality %d: %w", quality, err)
	}
	return buffer.Bytes(), nil
}

// prepare applies downscaling and grayscale conversion.
func (c *Compressor) prepare(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if limit := c.options.MaxDimension; limit > 0 && (width > limit || height > limit) {
		if width >= height {
			height = max(1, height*limit/width)
			width = limit
		} else {
			width = max(1, width*limit/height)
			height = limit
		}
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		// Bilinear keeps the capture tick inside its interval on large
		// screens; CatmullRom is visibly sharper but several times slower.
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)
		img = scaled
		bounds = scaled.Bounds()
	}

	if c.options.Grayscale {
		if _, ok := img.(*image.Gray); !ok {
			gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
			draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
			img = gray
		}
	}
	return img
}
