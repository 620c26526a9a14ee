// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/bureau-foundation/sharedesk/lib/clock"
)

// Runner executes an external program and returns its standard output.
// A non-nil error must include the program's stderr.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs programs with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, fmt.Errorf("%s %s: %w (%s)",
				name, strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return output, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return output, nil
}

// XDoToolOptions configures an XDoTool.
type XDoToolOptions struct {
	// Binary is the xdotool executable. Default "xdotool".
	Binary string

	// ClickSettle is the pause between pointer transitions.
	ClickSettle time.Duration

	// Runner overrides process execution. Default ExecRunner.
	Runner Runner

	// Clock drives settle pauses. Default clock.Real().
	Clock clock.Clock
}

// XDoTool injects input into the X session and locates windows. All
// coordinates are absolute root-window coordinates.
type XDoTool struct {
	binary      string
	clickSettle time.Duration
	run         Runner
	clock       clock.Clock
}

// NewXDoTool returns an XDoTool with defaults applied.
func NewXDoTool(options XDoToolOptions) *XDoTool {
	if options.Binary == "" {
		options.Binary = "xdotool"
	}
	if options.Runner == nil {
		options.Runner = ExecRunner
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	return &XDoTool{
		binary:      options.Binary,
		clickSettle: options.ClickSettle,
		run:         options.Runner,
		clock:       options.Clock,
	}
}

func (x *XDoTool) xdotool(ctx context.Context, args ...string) ([]byte, error) {
	return x.run(ctx, x.binary, args...)
}

// Locate returns the origin of target in root coordinates. The screen
// origin is always (0,0). For a window it queries the live geometry,
// which doubles as the validity check: a closed window yields
// ErrWindowGone.
func (x *XDoTool) Locate(ctx context.Context, target Target) (image.Point, error) {
	if target.Kind == TargetScreen {
		return image.Point{}, nil
	}
	output, err := x.xdotool(ctx, "getwindowgeometry", "--shell", target.Window)
	if err != nil {
		if ctx.Err() != nil {
			return image.Point{}, ctx.Err()
		}
		if isBadWindow(err) {
			return image.Point{}, fmt.Errorf("%w: %s", ErrWindowGone, target.Window)
		}
		return image.Point{}, err
	}
	return parseGeometry(output)
}

// isBadWindow recognizes xdotool's reports for ids that do not name a
// live window.
func isBadWindow(err error) bool {
	message := err.Error()
	return strings.Contains(message, "BadWindow") ||
		strings.Contains(message, "failed request") ||
		strings.Contains(message, "window does not exist")
}

// parseGeometry reads the X and Y lines of getwindowgeometry --shell.
func parseGeometry(output []byte) (image.Point, error) {
	var origin image.Point
	found := 0
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		name, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || (name != "X" && name != "Y") {
			continue
		}
		number, err := strconv.Atoi(value)
		if err != nil {
			return image.Point{}, fmt.Errorf("window geometry %s=%q: %w", name, value, err)
		}
		if name == "X" {
			origin.X = number
		} else {
			origin.Y = number
		}
		found++
	}
	if found != 2 {
		return image.Point{}, fmt.Errorf("window geometry output missing X/Y: %q", output)
	}
	return origin, nil
}

// Focus raises and focuses a window and waits until the window manager
// reports it active.
func (x *XDoTool) Focus(ctx context.Context, window string) error {
	_, err := x.xdotool(ctx, "windowactivate", "--sync", window)
	if err != nil && isBadWindow(err) {
		return fmt.Errorf("%w: %s", ErrWindowGone, window)
	}
	return err
}

// MoveCursor warps the pointer to absolute root coordinates.
func (x *XDoTool) MoveCursor(ctx context.Context, point image.Point) error {
	_, err := x.xdotool(ctx, "mousemove", "--sync", strconv.Itoa(point.X), strconv.Itoa(point.Y))
	return err
}

// Click presses and releases button at the current pointer position,
// twice when double is set, pausing ClickSettle between transitions.
func (x *XDoTool) Click(ctx context.Context, button Button, double bool) error {
	number, err := xButton(button)
	if err != nil {
		return err
	}
	presses := 1
	if double {
		presses = 2
	}
	for press := 0; press < presses; press++ {
		if press > 0 {
			if err := clock.Wait(ctx, x.clock, x.clickSettle); err != nil {
				return err
			}
		}
		if _, err := x.xdotool(ctx, "mousedown", number); err != nil {
			return err
		}
		if err := clock.Wait(ctx, x.clock, x.clickSettle); err != nil {
			return err
		}
		if _, err := x.xdotool(ctx, "mouseup", number); err != nil {
			return err
		}
	}
	return nil
}

func xButton(button Button) (string, error) {
	switch button {
	case ButtonLeft:
		return "1", nil
	case ButtonMiddle:
		return "2", nil
	case ButtonRight:
		return "3", nil
	default:
		return "", fmt.Errorf("unknown mouse button %d", int(button))
	}
}

// SendChar types one character. With modifiers held the character is
// sent as a key chord instead (ctrl+c rather than typing "c").
func (x *XDoTool) SendChar(ctx context.Context, char rune, modifiers Modifiers) error {
	if modifiers == 0 {
		_, err := x.xdotool(ctx, "type", "--delay", "0", "--", string(char))
		return err
	}
	_, err := x.xdotool(ctx, "key", "--clearmodifiers", chord(runeKeysym(char), modifiers))
	return err
}

// SendSpecial presses a named key, wrapped in modifiers if any.
func (x *XDoTool) SendSpecial(ctx context.Context, key Key, modifiers Modifiers) error {
	keysym, ok := key.Keysym()
	if !ok {
		return fmt.Errorf("unknown special key %q", key)
	}
	_, err := x.xdotool(ctx, "key", "--clearmodifiers", chord(keysym, modifiers))
	return err
}

func chord(keysym string, modifiers Modifiers) string {
	return strings.Join(append(modifiers.Names(), keysym), "+")
}

// runeKeysym names a character for xdotool key. ASCII letters and
// digits are their own keysym; everything else uses the Unicode form.
func runeKeysym(char rune) string {
	if char < unicode.MaxASCII && (unicode.IsLetter(char) || unicode.IsDigit(char)) {
		return string(char)
	}
	return fmt.Sprintf("U%04X", char)
}
