package window

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"syscall"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows         = user32.NewProc("EnumWindows")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procIsWindowVisible     = user32.NewProc("IsWindowVisible")
	procIsWindow            = user32.NewProc("IsWindow")
	procGetWindowRect       = user32.NewProc("GetWindowRect")
	procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procIsIconic            = user32.NewProc("IsIconic")
	procShowWindow          = user32.NewProc("ShowWindow")
)

const swRestore = 9

// Handle wraps a Win32 HWND together with the title seen at enumeration.
type Handle struct {
	hwnd  uintptr
	title string
}

var _ Ref = (*Handle)(nil)

// Title returns the window title captured at enumeration time.
func (h *Handle) Title() string { return h.title }

// Valid reports whether the HWND still names a live window.
func (h *Handle) Valid() bool {
	if h == nil || h.hwnd == 0 {
		return false
	}
	r, _, _ := procIsWindow.Call(h.hwnd)
	return r != 0
}

type winRect struct {
	Left, Top, Right, Bottom int32
}

// Rect re-reads the window's bounding rectangle in screen coordinates.
func (h *Handle) Rect() (image.Rectangle, error) {
	var r winRect
	ok, _, _ := procGetWindowRect.Call(h.hwnd, uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		return image.Rectangle{}, fmt.Errorf("window: GetWindowRect failed for %q", h.title)
	}
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), nil
}

// Activate restores the window if minimized and brings it to the
// foreground. Skips the foreground call when the window is already active.
func (h *Handle) Activate() error {
	if !h.Valid() {
		return fmt.Errorf("window: %q no longer exists", h.title)
	}
	if fg, _, _ := procGetForegroundWindow.Call(); fg == h.hwnd {
		return nil
	}
	if iconic, _, _ := procIsIconic.Call(h.hwnd); iconic != 0 {
		procShowWindow.Call(h.hwnd, swRestore)
		time.Sleep(50 * time.Millisecond)
	}
	if ok, _, _ := procSetForegroundWindow.Call(h.hwnd); ok == 0 {
		return fmt.Errorf("window: SetForegroundWindow refused for %q", h.title)
	}
	time.Sleep(25 * time.Millisecond)
	return nil
}

// List enumerates visible top-level windows with non-empty titles. Windows
// whose titles look like game clients (mt2/metin2 variants) are listed
// first; duplicate titles get an " (n)" suffix so the UI can tell eight
// identical clients apart.
func List() ([]*Handle, error) {
	var plain, preferred []*Handle
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		if vis, _, _ := procIsWindowVisible.Call(hwnd); vis == 0 {
			return 1
		}
		title := windowText(hwnd)
		if title == "" {
			return 1
		}
		h := &Handle{hwnd: hwnd, title: title}
		if looksLikeGameTitle(title) {
			preferred = append(preferred, h)
		} else {
			plain = append(plain, h)
		}
		return 1
	})
	if r, _, err := procEnumWindows.Call(cb, 0); r == 0 {
		if err != nil && !errors.Is(err, syscall.Errno(0)) {
			return nil, fmt.Errorf("window: EnumWindows: %w", err)
		}
		return nil, errors.New("window: EnumWindows failed")
	}
	all := append(preferred, plain...)
	dedupeTitles(all)
	return all, nil
}

// FindByTitle returns the first enumerated window whose (deduplicated)
// title matches exactly.
func FindByTitle(title string) (*Handle, error) {
	handles, err := List()
	if err != nil {
		return nil, err
	}
	for _, h := range handles {
		if h.title == title {
			return h, nil
		}
	}
	return nil, fmt.Errorf("window: no window titled %q", title)
}

func windowText(hwnd uintptr) string {
	buf := make([]uint16, 256)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return strings.TrimSpace(string(utf16.Decode(buf[:n])))
}

func looksLikeGameTitle(title string) bool {
	t := strings.ToLower(title)
	for _, pat := range []string{"mt2", "metin2", "metin 2"} {
		if strings.Contains(t, pat) {
			return true
		}
	}
	for _, word := range strings.Fields(t) {
		if strings.HasSuffix(word, "2") {
			return true
		}
	}
	return false
}

func dedupeTitles(handles []*Handle) {
	counts := map[string]int{}
	for _, h := range handles {
		counts[h.title]++
	}
	seen := map[string]int{}
	for _, h := range handles {
		if counts[h.title] < 2 {
			continue
		}
		seen[h.title]++
		h.title = fmt.Sprintf("%s (%d)", h.title, seen[h.title])
	}
}
