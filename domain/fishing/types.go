package fishing

import (
	"image"
	"time"

	"github.com/hetzpvp/Mt2-Fishbot/domain/vision"
	"github.com/hetzpvp/Mt2-Fishbot/domain/window"
)

// State enumerates the finite states of one fishing session.
type State int

const (
	StateIdle State = iota
	StateAwaitingBite
	StatePlayingMinigame
	StateHandlingCatch
	StateSkipping
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingBite:
		return "awaiting-bite"
	case StatePlayingMinigame:
		return "minigame"
	case StateHandlingCatch:
		return "handling-catch"
	case StateSkipping:
		return "skipping"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Mode selects the fishing minigame variant.
type Mode int

const (
	// ModeNew clicks the fish cue the moment it is detected.
	ModeNew Mode = iota
	// ModeClassic waits a configured delay after the cue before reeling.
	ModeClassic
)

// SkipMode selects how the post-catch wait is bypassed.
type SkipMode int

const (
	SkipOff SkipMode = iota
	// SkipHorse double-presses the mount hotkey chord.
	SkipHorse
	// SkipArmor right-clicks the configured armor slot.
	SkipArmor
)

// CatchAction disposes of a recognized catch.
type CatchAction int

const (
	// ActionKeep leaves the catch in the inventory and remembers its slot.
	ActionKeep CatchAction = iota
	// ActionOpen right-clicks the catch to open it.
	ActionOpen
	// ActionDrop picks the catch up and discards it via the drop dialog.
	ActionDrop
)

func (a CatchAction) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionDrop:
		return "drop"
	default:
		return "keep"
	}
}

// CatchRule maps a fish-type template to its disposal action.
type CatchRule struct {
	Action CatchAction
}

// StopReason says why a session reached StateStopped. BaitExhausted is
// reported distinctly so the UI can prompt the user to restock.
type StopReason int

const (
	StopNone StopReason = iota
	StopRequested
	StopWindowLost
	StopBaitExhausted
)

func (r StopReason) String() string {
	switch r {
	case StopRequested:
		return "requested"
	case StopWindowLost:
		return "window lost"
	case StopBaitExhausted:
		return "out of bait"
	default:
		return "none"
	}
}

// ControlSnapshot is the per-tick view of the process-wide control flags.
type ControlSnapshot struct {
	Paused   bool
	Stopping bool
}

// ControlSource provides the snapshot each loop reads at the top of a tick.
type ControlSource interface {
	Snapshot() ControlSnapshot
}

// Classifier is the detector contract consumed by sessions.
type Classifier interface {
	Classify(frame *image.RGBA, at time.Time, kinds ...vision.Kind) []vision.Result
}

// SessionConfig is one session's immutable configuration snapshot. Changing
// it requires stopping and restarting the session.
type SessionConfig struct {
	Window window.Ref

	BaitKeys   []string
	BaitPerKey int
	CastKey    string

	Mode         Mode
	ClassicDelay time.Duration

	Skip       SkipMode
	SkipHotkey string
	ArmorSlot  image.Point // window-relative

	Rules         map[string]CatchRule
	DropButton    image.Point // window-relative
	ConfirmButton image.Point // window-relative

	// MinigameRegion and InventoryRegion are window-relative capture
	// rectangles. A zero MinigameRegion captures the whole window; a zero
	// InventoryRegion defaults to the right-hand inventory strip.
	MinigameRegion  image.Rectangle
	InventoryRegion image.Rectangle

	BitePatience     time.Duration
	MinigamePatience time.Duration

	// CaptureRetryLimit bounds consecutive capture/action failures before
	// the window is presumed closed.
	CaptureRetryLimit int
	// DismountAfterTimeouts presses CTRL+<SkipHotkey> after this many
	// consecutive bite timeouts, in case a mounted horse is eating casts.
	DismountAfterTimeouts int
}

// Stats accumulates per-session counters for the status view.
type Stats struct {
	Rounds  int // completed minigame rounds
	Hits    int // fish-cue clicks landed during minigames
	Catches int // catches disposed of by a rule
}

// Report is the terminal summary delivered when a session stops.
type Report struct {
	Reason        StopReason
	Stats         Stats
	BaitRemaining int
}

// StateListener observes successful state transitions.
type StateListener func(prev, next State)
