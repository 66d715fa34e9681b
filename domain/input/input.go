package input

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
)

// Button selects a mouse button for Click.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
)

func (b Button) String() string {
	if b == ButtonRight {
		return "right"
	}
	return "left"
}

// ErrInjection reports that the OS rejected a synthetic input event.
var ErrInjection = errors.New("input: injection rejected")

// Executor simulates keyboard and mouse events. Every call completes (or
// fails) before it returns; the state machine relies on the triggering
// action having landed before it advances.
type Executor interface {
	// PressKey taps the key named by token ("1".."4", "F1".."F12",
	// letters, "space").
	PressKey(token string) error
	// PressChord taps key while holding modifier (e.g. "ctrl"+"G").
	PressChord(modifier, token string) error
	// MoveCursor places the pointer at pt in screen coordinates.
	MoveCursor(pt image.Point) error
	// Click moves to pt and presses/releases the given button.
	Click(pt image.Point, b Button) error
}

// injectionMu serializes whole input sequences process-wide. Every session
// shares the one OS cursor and keyboard state; without this, one session's
// cursor move can land between another session's move and button press and
// the click hits the wrong window.
var injectionMu sync.Mutex

type serialExecutor struct {
	inner Executor
}

// Serialize wraps exec so none of its sequences interleave with those of
// any other serialized executor in the process. Multi-session wiring must
// wrap every executor that touches the real cursor or keyboard.
func Serialize(exec Executor) Executor {
	return &serialExecutor{inner: exec}
}

func (s *serialExecutor) PressKey(token string) error {
	injectionMu.Lock()
	defer injectionMu.Unlock()
	return s.inner.PressKey(token)
}

func (s *serialExecutor) PressChord(modifier, token string) error {
	injectionMu.Lock()
	defer injectionMu.Unlock()
	return s.inner.PressChord(modifier, token)
}

func (s *serialExecutor) MoveCursor(pt image.Point) error {
	injectionMu.Lock()
	defer injectionMu.Unlock()
	return s.inner.MoveCursor(pt)
}

func (s *serialExecutor) Click(pt image.Point, b Button) error {
	injectionMu.Lock()
	defer injectionMu.Unlock()
	return s.inner.Click(pt, b)
}

// Virtual-key codes used by the key token parser. These mirror the Win32
// assignments so tokens parse identically on every platform.
const (
	vkSpace   byte = 0x20
	vkControl byte = 0x11
	vkF1      byte = 0x70
)

// ParseKey converts a user-facing key token into a virtual key code.
// Digits and letters map to their VK codes, "F1".."F12" to the function
// keys, "space" and "ctrl" to their modifiers.
func ParseKey(token string) (byte, error) {
	k := strings.ToUpper(strings.TrimSpace(token))
	switch {
	case k == "SPACE":
		return vkSpace, nil
	case k == "CTRL" || k == "CONTROL":
		return vkControl, nil
	case len(k) == 1 && (k[0] >= '0' && k[0] <= '9' || k[0] >= 'A' && k[0] <= 'Z'):
		// Digit and letter VK codes equal their ASCII values.
		return k[0], nil
	case len(k) >= 2 && len(k) <= 3 && k[0] == 'F':
		n := 0
		for _, c := range k[1:] {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("input: unknown key token %q", token)
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 12 {
			return vkF1 + byte(n-1), nil
		}
	}
	return 0, fmt.Errorf("input: unknown key token %q", token)
}
