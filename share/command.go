// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bureau-foundation/sharedesk/lib/desktop"
)

// CommandType distinguishes pointer and keyboard commands.
type CommandType int

const (
	MouseClick CommandType = 0
	KeyPress   CommandType = 1
)

func (t CommandType) String() string {
	switch t {
	case MouseClick:
		return "mouse_click"
	case KeyPress:
		return "key_press"
	default:
		return fmt.Sprintf("command_type(%d)", int(t))
	}
}

// MarshalText encodes the type by name for JSON.
func (t CommandType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the type name or its number.
func (t *CommandType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "mouse_click", "0":
		*t = MouseClick
	case "key_press", "1":
		*t = KeyPress
	default:
		return fmt.Errorf("unknown command type %q", text)
	}
	return nil
}

// Command is one operator input event. Coordinates are relative to the
// shared target's origin. Serialized as CBOR in the mailbox and as JSON
// on the status API; both use the json field names.
type Command struct {
	Type        CommandType       `json:"type"`
	X           int               `json:"x,omitempty"`
	Y           int               `json:"y,omitempty"`
	Button      desktop.Button    `json:"button,omitempty"`
	DoubleClick bool              `json:"double_click,omitempty"`
	KeyChar     string            `json:"key_char,omitempty"`
	Modifiers   desktop.Modifiers `json:"modifiers,omitempty"`
	IssuedAt    time.Time         `json:"issued_at"`
}

// Click returns a MouseClick command.
func Click(x, y int, button desktop.Button, double bool) Command {
	return Command{Type: MouseClick, X: x, Y: y, Button: button, DoubleClick: double}
}

// Keys returns a KeyPress command. keys is literal text or a single
// special-key token such as "{LEFT}".
func Keys(keys string, modifiers desktop.Modifiers) Command {
	return Command{Type: KeyPress, KeyChar: keys, Modifiers: modifiers}
}

// Validate rejects commands the client cannot execute.
func (c Command) Validate() error {
	switch c.Type {
	case MouseClick:
		if !c.Button.Valid() {
			return fmt.Errorf("mouse click with unknown button %d", int(c.Button))
		}
	case KeyPress:
		if c.KeyChar == "" {
			return fmt.Errorf("key press without keys")
		}
	default:
		return fmt.Errorf("unknown command type %d", int(c.Type))
	}
	return nil
}

func (c Command) String() string {
	switch c.Type {
	case MouseClick:
		kind := "click"
		if c.DoubleClick {
			kind = "double-click"
		}
		return fmt.Sprintf("%s %s at (%d,%d)", c.Button, kind, c.X, c.Y)
	case KeyPress:
		if c.Modifiers != 0 {
			return fmt.Sprintf("keys %q with %s", c.KeyChar, c.Modifiers)
		}
		return fmt.Sprintf("keys %q", c.KeyChar)
	default:
		return c.Type.String()
	}
}

// ParseCommandJSON decodes and validates a JSON command.
func ParseCommandJSON(data []byte) (Command, error) {
	var command Command
	if err := json.Unmarshal(data, &command); err != nil {
		return Command{}, fmt.Errorf("decoding command: %w", err)
	}
	if err := command.Validate(); err != nil {
		return Command{}, err
	}
	return command, nil
}
