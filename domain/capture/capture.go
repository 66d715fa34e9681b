package capture

import (
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"
)

// Reason says why a capture failed. Sessions treat every reason as a window
// liveness problem rather than a vision problem.
type Reason int

const (
	// ReasonEmptyRect means the requested rectangle had no area, usually
	// because the target window is minimized or resized to nothing.
	ReasonEmptyRect Reason = iota
	// ReasonWindowGone means the owning window handle no longer resolves.
	ReasonWindowGone
	// ReasonOSFailure covers screen-read errors and capture timeouts.
	ReasonOSFailure
)

func (r Reason) String() string {
	switch r {
	case ReasonEmptyRect:
		return "empty rect"
	case ReasonWindowGone:
		return "window gone"
	case ReasonOSFailure:
		return "os failure"
	default:
		return "unknown"
	}
}

// Error is a typed capture failure.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("capture: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Source captures a screen rectangle on demand. Each call reflects current
// screen content; implementations must not cache frames. Returned frames
// are zero-based regardless of where the rectangle sits on screen, so
// detection coordinates are always relative to the captured region.
type Source interface {
	Capture(rect image.Rectangle) (*image.RGBA, error)
}

// ScreenSource grabs pixels from the OS screen. Capture never blocks longer
// than Timeout so a wedged display path cannot stall a session loop.
type ScreenSource struct {
	Timeout time.Duration
}

// NewScreenSource returns a source bounded by the given timeout; zero means
// 250ms.
func NewScreenSource(timeout time.Duration) *ScreenSource {
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	return &ScreenSource{Timeout: timeout}
}

// Capture grabs rect from the screen into a freshly allocated RGBA image.
func (s *ScreenSource) Capture(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, &Error{Reason: ReasonEmptyRect}
	}
	type grab struct {
		img *image.RGBA
		err error
	}
	done := make(chan grab, 1)
	go func() {
		img, err := screenshot.CaptureRect(rect)
		done <- grab{img: img, err: err}
	}()
	select {
	case g := <-done:
		if g.err != nil {
			return nil, &Error{Reason: ReasonOSFailure, Err: g.err}
		}
		// CaptureRect keeps the screen rectangle as the image bounds;
		// rebases to zero so callers get region-relative coordinates.
		g.img.Rect = image.Rect(0, 0, g.img.Rect.Dx(), g.img.Rect.Dy())
		return g.img, nil
	case <-time.After(s.Timeout):
		return nil, &Error{Reason: ReasonOSFailure, Err: fmt.Errorf("timed out after %v", s.Timeout)}
	}
}
