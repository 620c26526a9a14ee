// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package desktop

import (
	"fmt"
	"strings"
)

// Button is a mouse button. Values are part of the command wire format.
type Button int

const (
	ButtonLeft   Button = 0
	ButtonRight  Button = 1
	ButtonMiddle Button = 2
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// Valid reports whether b is a known button.
func (b Button) Valid() bool {
	return b >= ButtonLeft && b <= ButtonMiddle
}

// Modifiers is a set of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

var modifierNames = []struct {
	flag Modifiers
	name string
}{
	{ModCtrl, "ctrl"},
	{ModAlt, "alt"},
	{ModShift, "shift"},
	{ModSuper, "super"},
}

// Names returns the held modifiers in ctrl, alt, shift, super order.
func (m Modifiers) Names() []string {
	var names []string
	for _, modifier := range modifierNames {
		if m&modifier.flag != 0 {
			names = append(names, modifier.name)
		}
	}
	return names
}

func (m Modifiers) String() string {
	if m == 0 {
		return "none"
	}
	return strings.Join(m.Names(), "+")
}

// Key is a named non-character key.
type Key string

const (
	KeyLeft      Key = "LEFT"
	KeyRight     Key = "RIGHT"
	KeyUp        Key = "UP"
	KeyDown      Key = "DOWN"
	KeyHome      Key = "HOME"
	KeyEnd       Key = "END"
	KeyPageUp    Key = "PGUP"
	KeyPageDown  Key = "PGDN"
	KeyInsert    Key = "INS"
	KeyDelete    Key = "DELETE"
	KeyBackspace Key = "BACKSPACE"
	KeyEnter     Key = "ENTER"
	KeyTab       Key = "TAB"
	KeyEscape    Key = "ESC"
)

// keysyms maps named keys to X keysym names.
var keysyms = map[Key]string{
	KeyLeft:      "Left",
	KeyRight:     "Right",
	KeyUp:        "Up",
	KeyDown:      "Down",
	KeyHome:      "Home",
	KeyEnd:       "End",
	KeyPageUp:    "Prior",
	KeyPageDown:  "Next",
	KeyInsert:    "Insert",
	KeyDelete:    "Delete",
	KeyBackspace: "BackSpace",
	KeyEnter:     "Return",
	KeyTab:       "Tab",
	KeyEscape:    "Escape",
}

func init() {
	for number := 1; number <= 12; number++ {
		name := fmt.Sprintf("F%d", number)
		keysyms[Key(name)] = name
	}
}

// Keysym returns the X keysym name of k.
func (k Key) Keysym() (string, bool) {
	keysym, ok := keysyms[k]
	return keysym, ok
}

// Token returns the bracketed form of k, e.g. "{LEFT}".
func (k Key) Token() string { return "{" + string(k) + "}" }

// ParseKeyToken recognizes a bracketed special-key token such as
// "{LEFT}" or "{f5}". Anything else is not a token and should be typed
// as characters.
func ParseKeyToken(text string) (Key, bool) {
	inner, ok := strings.CutPrefix(text, "{")
	if !ok {
		return "", false
	}
	inner, ok = strings.CutSuffix(inner, "}")
	if !ok || inner == "" {
		return "", false
	}
	key := Key(strings.ToUpper(inner))
	if _, known := keysyms[key]; !known {
		return "", false
	}
	return key, true
}
