package supervisor

import (
	"sync/atomic"

	"github.com/hetzpvp/Mt2-Fishbot/domain/fishing"
)

// Control is the shared pause/stop switch every session snapshots at the
// top of each tick. All methods are safe for concurrent use.
type Control struct {
	paused   atomic.Bool
	stopping atomic.Bool
}

func NewControl() *Control { return &Control{} }

// Snapshot implements fishing.ControlSource.
func (c *Control) Snapshot() fishing.ControlSnapshot {
	return fishing.ControlSnapshot{
		Paused:   c.paused.Load(),
		Stopping: c.stopping.Load(),
	}
}

// TogglePause flips the pause flag and returns the new value.
func (c *Control) TogglePause() bool {
	for {
		old := c.paused.Load()
		if c.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// SetPaused sets the pause flag directly. Idempotent.
func (c *Control) SetPaused(v bool) { c.paused.Store(v) }

// Paused reports the pause flag.
func (c *Control) Paused() bool { return c.paused.Load() }

// RequestStop latches the stop flag. There is no way back; sessions observe
// it on their next tick and stop with StopRequested.
func (c *Control) RequestStop() { c.stopping.Store(true) }

// Stopping reports whether a stop was requested.
func (c *Control) Stopping() bool { return c.stopping.Load() }
