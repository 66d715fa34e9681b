package input

import (
	"fmt"
	"image"
	"time"

	"golang.org/x/sys/windows"
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procKeybdEvent   = user32.NewProc("keybd_event")
	procMouseEvent   = user32.NewProc("mouse_event")
	procSetCursorPos = user32.NewProc("SetCursorPos")
)

const (
	keyeventfKeyup       = 0x0002
	mouseeventfLeftDown  = 0x0002
	mouseeventfLeftUp    = 0x0004
	mouseeventfRightDown = 0x0008
	mouseeventfRightUp   = 0x0010
)

// WindowsExecutor injects input through user32. When human is non-nil the
// target points are jittered and each action is preceded by a randomized
// pause; a nil humanizer gives exact, minimally delayed actions.
type WindowsExecutor struct {
	human *Humanizer
}

var _ Executor = (*WindowsExecutor)(nil)

// NewWindowsExecutor builds the production executor. human may be nil.
func NewWindowsExecutor(human *Humanizer) *WindowsExecutor {
	return &WindowsExecutor{human: human}
}

// PressKey taps the key named by token.
func (e *WindowsExecutor) PressKey(token string) error {
	vk, err := ParseKey(token)
	if err != nil {
		return err
	}
	e.human.Pause()
	keyTap(vk)
	return nil
}

// PressChord taps key while holding modifier.
func (e *WindowsExecutor) PressChord(modifier, token string) error {
	mod, err := ParseKey(modifier)
	if err != nil {
		return err
	}
	vk, err := ParseKey(token)
	if err != nil {
		return err
	}
	e.human.Pause()
	procKeybdEvent.Call(uintptr(mod), 0, 0, 0)
	time.Sleep(20 * time.Millisecond)
	keyTap(vk)
	time.Sleep(20 * time.Millisecond)
	procKeybdEvent.Call(uintptr(mod), 0, keyeventfKeyup, 0)
	return nil
}

// MoveCursor places the pointer at pt (jittered when enabled).
func (e *WindowsExecutor) MoveCursor(pt image.Point) error {
	pt = e.human.Point(pt)
	if ok, _, _ := procSetCursorPos.Call(uintptr(pt.X), uintptr(pt.Y)); ok == 0 {
		return fmt.Errorf("%w: SetCursorPos(%d,%d)", ErrInjection, pt.X, pt.Y)
	}
	return nil
}

// Click moves to pt and presses/releases b.
func (e *WindowsExecutor) Click(pt image.Point, b Button) error {
	e.human.Pause()
	if err := e.MoveCursor(pt); err != nil {
		return err
	}
	time.Sleep(15 * time.Millisecond)
	down, up := uintptr(mouseeventfLeftDown), uintptr(mouseeventfLeftUp)
	if b == ButtonRight {
		down, up = mouseeventfRightDown, mouseeventfRightUp
	}
	procMouseEvent.Call(down, 0, 0, 0, 0)
	time.Sleep(10 * time.Millisecond)
	procMouseEvent.Call(up, 0, 0, 0, 0)
	return nil
}

func keyTap(vk byte) {
	procKeybdEvent.Call(uintptr(vk), 0, 0, 0)
	// press duration approximating a human tap
	time.Sleep(30 * time.Millisecond)
	procKeybdEvent.Call(uintptr(vk), 0, keyeventfKeyup, 0)
}
