// Package input performs synthetic keyboard input against the target
// application, used as the last-resort strategy when no attribute or
// sub-control accepts a direct write.
package input

import (
	"strings"
	"time"
)

// Key identifies a non-printing key understood by PressKey.
type Key string

// Keys used by the confirm and cancel paths.
const (
	KeyReturn Key = "return"
	KeyEscape Key = "escape"
	KeyTab    Key = "tab"
	KeyDelete Key = "delete"
)

// KeyByName maps a protocol key name onto a key code. Names are
// case-insensitive and common aliases are accepted.
func KeyByName(name string) (Key, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "return", "enter":
		return KeyReturn, true
	case "escape", "esc":
		return KeyEscape, true
	case "tab":
		return KeyTab, true
	case "delete", "backspace":
		return KeyDelete, true
	default:
		return "", false
	}
}

// Synthesizer issues low-level keyboard events into the frontmost
// application. Implemented by the OS bridge and by recording fakes.
type Synthesizer interface {
	// TypeCharacter injects a single character keystroke.
	TypeCharacter(ch rune) error

	// PressKey injects a non-printing key press.
	PressKey(key Key) error
}

// Timing holds the settle delays inserted between input steps. The target
// application redraws asynchronously, so each phase waits for it to catch
// up. These are scheduling waits, never busy loops.
type Timing struct {
	// ActivateSettle runs after the target control is activated, before
	// the first keystroke.
	ActivateSettle time.Duration

	// PerCharacter runs between injected characters.
	PerCharacter time.Duration

	// PreConfirm runs after the last character, before Return.
	PreConfirm time.Duration

	// PostConfirm runs after Return, before control returns to the
	// caller, so a follow-up read observes the committed value.
	PostConfirm time.Duration
}

// DefaultTiming returns the settle delays tuned for the target
// application's redraw latency.
func DefaultTiming() Timing {
	return Timing{
		ActivateSettle: 500 * time.Millisecond,
		PerCharacter:   10 * time.Millisecond,
		PreConfirm:     500 * time.Millisecond,
		PostConfirm:    time.Second,
	}
}
