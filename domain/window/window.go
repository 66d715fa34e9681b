package window

import "image"

// Ref is an opaque reference to one target game window. Sessions receive a
// Ref at start and treat it as read-only; an invalidated Ref (window closed
// or moved off-screen) terminates the owning session.
type Ref interface {
	// Title returns the window title captured at enumeration time.
	Title() string
	// Rect re-reads the current bounding rectangle in screen coordinates.
	Rect() (image.Rectangle, error)
	// Valid reports whether the underlying window still exists.
	Valid() bool
	// Activate brings the window to the foreground, restoring it first if
	// it is minimized.
	Activate() error
}
