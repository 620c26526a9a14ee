// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
)

// LogSink records input requests at Info level without touching the
// desktop. It is the input driver for clients that want to audit what
// an operator would do.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Focus(ctx context.Context, window string) error {
	s.Logger.Info("input: focus", "window", window)
	return nil
}

func (s LogSink) MoveCursor(ctx context.Context, point image.Point) error {
	s.Logger.Info("input: move cursor", "x", point.X, "y", point.Y)
	return nil
}

func (s LogSink) Click(ctx context.Context, button Button, double bool) error {
	s.Logger.Info("input: click", "button", button.String(), "double", double)
	return nil
}

func (s LogSink) SendChar(ctx context.Context, char rune, modifiers Modifiers) error {
	s.Logger.Info("input: char", "char", string(char), "modifiers", modifiers.String())
	return nil
}

func (s LogSink) SendSpecial(ctx context.Context, key Key, modifiers Modifiers) error {
	s.Logger.Info("input: special key", "key", key.Token(), "modifiers", modifiers.String())
	return nil
}

// PNGDisplay writes each shown frame to a PNG file. Readers never
// observe a partially written file.
type PNGDisplay struct {
	Path string
}

// Show encodes img and atomically replaces the output file.
func (d PNGDisplay) Show(ctx context.Context, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	directory := filepath.Dir(d.Path)
	temporary, err := os.CreateTemp(directory, ".frame-*.png")
	if err != nil {
		return fmt.Errorf("creating temporary frame in %s: %w", directory, err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(temporary, img); err != nil {
		temporary.Close()
		return fmt.Errorf("encoding frame png: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing temporary frame: %w", err)
	}
	if err := os.Rename(temporaryPath, d.Path); err != nil {
		return fmt.Errorf("replacing %s: %w", d.Path, err)
	}
	return nil
}
