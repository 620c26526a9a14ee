// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/sharedesk/lib/desktop"
	"github.com/bureau-foundation/sharedesk/share"
)

// KeyMap holds the keys the console keeps for itself.
type KeyMap struct {
	Quit          key.Binding
	ToggleForward key.Binding
}

// DefaultKeyMap uses chords that are rarely needed on the remote side.
var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+q"),
		key.WithHelp("ctrl+q", "quit"),
	),
	ToggleForward: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "pause/resume forwarding"),
	),
}

// namedKeys maps bubbletea key names to special-key tokens.
var namedKeys = map[string]desktop.Key{
	"enter":     desktop.KeyEnter,
	"tab":       desktop.KeyTab,
	"esc":       desktop.KeyEscape,
	"backspace": desktop.KeyBackspace,
	"delete":    desktop.KeyDelete,
	"insert":    desktop.KeyInsert,
	"up":        desktop.KeyUp,
	"down":      desktop.KeyDown,
	"left":      desktop.KeyLeft,
	"right":     desktop.KeyRight,
	"home":      desktop.KeyHome,
	"end":       desktop.KeyEnd,
	"pgup":      desktop.KeyPageUp,
	"pgdown":    desktop.KeyPageDown,
}

// keyCommand translates a terminal key event into a KeyPress command.
// ok is false for events with nothing to send.
func keyCommand(msg tea.KeyMsg) (share.Command, bool) {
	var modifiers desktop.Modifiers
	if msg.Alt {
		modifiers |= desktop.ModAlt
	}

	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) == 0 {
			return share.Command{}, false
		}
		return share.Keys(string(msg.Runes), modifiers), true
	case tea.KeySpace:
		return share.Keys(" ", modifiers), true
	}

	name := msg.String()
	if msg.Alt {
		name = strings.TrimPrefix(name, "alt+")
	}
	for {
		prefix, rest, found := strings.Cut(name, "+")
		if !found || rest == "" {
			break
		}
		switch prefix {
		case "ctrl":
			modifiers |= desktop.ModCtrl
		case "shift":
			modifiers |= desktop.ModShift
		default:
			return share.Command{}, false
		}
		name = rest
	}

	if special, ok := namedKeys[name]; ok {
		return share.Keys(special.Token(), modifiers), true
	}
	if len(name) >= 2 && name[0] == 'f' {
		if special, ok := desktop.ParseKeyToken("{" + name + "}"); ok {
			return share.Keys(special.Token(), modifiers), true
		}
	}
	// ctrl+letter chords arrive as their own key types.
	if modifiers&desktop.ModCtrl != 0 && len(name) == 1 && name[0] >= 'a' && name[0] <= 'z' {
		return share.Keys(name, modifiers), true
	}
	return share.Command{}, false
}
