// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWindowGone reports that a target window has been closed or its id
// no longer refers to a live window.
var ErrWindowGone = errors.New("target window is gone")

// TargetKind selects what the client shares.
type TargetKind int

const (
	TargetScreen TargetKind = iota
	TargetWindow
)

// Target is the capture and input target of a client session.
type Target struct {
	Kind TargetKind

	// Window is the window id (as understood by xdotool) when Kind is
	// TargetWindow.
	Window string
}

// Screen returns the whole-screen target.
func Screen() Target { return Target{Kind: TargetScreen} }

// Window returns the target for a single window.
func Window(id string) Target { return Target{Kind: TargetWindow, Window: id} }

// ParseTarget parses "screen" or "window:<id>".
func ParseTarget(text string) (Target, error) {
	text = strings.TrimSpace(text)
	if text == "screen" {
		return Screen(), nil
	}
	if id, ok := strings.CutPrefix(text, "window:"); ok {
		id = strings.TrimSpace(id)
		if id == "" {
			return Target{}, fmt.Errorf("target %q names no window", text)
		}
		return Window(id), nil
	}
	return Target{}, fmt.Errorf("target must be \"screen\" or \"window:<id>\", got %q", text)
}

func (t Target) String() string {
	if t.Kind == TargetWindow {
		return "window:" + t.Window
	}
	return "screen"
}
