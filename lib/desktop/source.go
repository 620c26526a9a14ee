// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"strings"
)

// Default capture commands (ImageMagick).
const (
	DefaultScreenCommand = "import -silent -window root png:-"
	DefaultWindowCommand = "import -silent -window {window} png:-"
)

// Locator finds the origin of a target and checks that it still exists.
type Locator interface {
	Locate(ctx context.Context, target Target) (image.Point, error)
}

// CommandSource captures frames by running an external command that
// writes an encoded image to stdout. The token {window} in the command
// is replaced with the target window id.
type CommandSource struct {
	screenCommand []string
	windowCommand []string
	locator       Locator
	run           Runner
}

// NewCommandSource returns a CommandSource. An empty command selects
// the ImageMagick defaults. locator validates window targets before
// each capture and supplies origins; runner may be nil.
func NewCommandSource(command string, locator Locator, runner Runner) (*CommandSource, error) {
	if locator == nil {
		return nil, fmt.Errorf("command source requires a locator")
	}
	if runner == nil {
		runner = ExecRunner
	}
	screenCommand, windowCommand := DefaultScreenCommand, DefaultWindowCommand
	if command != "" {
		screenCommand, windowCommand = command, command
	}
	source := &CommandSource{
		screenCommand: strings.Fields(screenCommand),
		windowCommand: strings.Fields(windowCommand),
		locator:       locator,
		run:           runner,
	}
	if len(source.screenCommand) == 0 {
		return nil, fmt.Errorf("capture command is blank")
	}
	return source, nil
}

// Capture grabs one frame of target.
func (s *CommandSource) Capture(ctx context.Context, target Target) (image.Image, error) {
	argv := s.screenCommand
	if target.Kind == TargetWindow {
		// A closed window must surface as ErrWindowGone, not as a
		// generic capture failure.
		if _, err := s.locator.Locate(ctx, target); err != nil {
			return nil, err
		}
		argv = make([]string, len(s.windowCommand))
		for index, arg := range s.windowCommand {
			argv[index] = strings.ReplaceAll(arg, "{window}", target.Window)
		}
	}

	output, err := s.run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return nil, fmt.Errorf("capturing %s: %w", target, err)
	}
	img, _, err := image.Decode(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("decoding capture of %s: %w", target, err)
	}
	return img, nil
}

// Locate delegates to the configured Locator.
func (s *CommandSource) Locate(ctx context.Context, target Target) (image.Point, error) {
	return s.locator.Locate(ctx, target)
}

// FileSource reads frames from an image file that another program
// keeps rewriting. The target is ignored and its origin is (0,0).
type FileSource struct {
	Path string
}

// Capture decodes the current contents of the file.
func (s FileSource) Capture(ctx context.Context, target Target) (image.Image, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && target.Kind == TargetWindow {
			return nil, fmt.Errorf("%w: %s", ErrWindowGone, s.Path)
		}
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.Path, err)
	}
	return img, nil
}

// Locate always reports the root origin.
func (s FileSource) Locate(ctx context.Context, target Target) (image.Point, error) {
	return image.Point{}, nil
}
