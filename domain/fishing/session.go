package fishing

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/hetzpvp/Mt2-Fishbot/domain/capture"
	"github.com/hetzpvp/Mt2-Fishbot/domain/input"
	"github.com/hetzpvp/Mt2-Fishbot/domain/vision"
)

// Default inventory strip geometry relative to the game window: the right
// 200px column, skipping the top 200px of UI and the bottom 30px border.
const (
	defaultInventoryWidth = 200
	defaultInventoryTop   = 200
	defaultInventorySlack = 30
)

// ignoreRadius matches the slot spacing: a remembered dead-catch position
// suppresses matches within this many pixels on each axis.
const ignoreRadius = 10

// retryBackoffStep grows the extra per-tick delay after each consecutive
// capture/action failure; the total is capped at retryBackoffCap.
const (
	retryBackoffStep = 50 * time.Millisecond
	retryBackoffCap  = 500 * time.Millisecond
)

// Deps are the collaborators one session drives. All of them are owned by
// the caller and must outlive the session.
type Deps struct {
	Frames  capture.Source
	Detect  Classifier
	Exec    input.Executor
	Control ControlSource
	Logger  *slog.Logger
}

// Session is the per-window state machine. Tick performs at most one
// capture/classify/decide/act cycle; Run drives Tick on a fixed polling
// interval until the session reaches StateStopped. A Session is bound to a
// single goroutine for Tick/Run; Current and AddListener are safe from any
// goroutine.
type Session struct {
	cfg     SessionConfig
	frames  capture.Source
	detect  Classifier
	exec    input.Executor
	control ControlSource
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	listeners []StateListener

	resume       State
	bait         *BaitLedger
	castAt       time.Time
	biteTimeouts int

	minigameStart time.Time
	classicActAt  time.Time

	failures   int
	extraDelay time.Duration

	primed  bool          // inventory pre-scan done
	ignored []image.Point // inventory-relative dead-catch slots
	stats   Stats
	reason  StopReason
}

// NewSession validates the configuration and builds a session in StateIdle.
func NewSession(cfg SessionConfig, deps Deps) (*Session, error) {
	if cfg.Window == nil {
		return nil, errors.New("fishing: config needs a window")
	}
	if len(cfg.BaitKeys) == 0 || len(cfg.BaitKeys) > 8 {
		return nil, fmt.Errorf("fishing: need 1..8 bait keys, got %d", len(cfg.BaitKeys))
	}
	if cfg.BaitPerKey <= 0 {
		cfg.BaitPerKey = 200
	}
	if cfg.CastKey == "" {
		cfg.CastKey = "space"
	}
	if cfg.SkipHotkey == "" {
		cfg.SkipHotkey = "G"
	}
	if cfg.BitePatience <= 0 {
		cfg.BitePatience = 4 * time.Second
	}
	if cfg.MinigamePatience <= 0 {
		cfg.MinigamePatience = 15 * time.Second
	}
	if cfg.CaptureRetryLimit <= 0 {
		cfg.CaptureRetryLimit = 5
	}
	if cfg.DismountAfterTimeouts <= 0 {
		cfg.DismountAfterTimeouts = 5
	}
	if cfg.Mode == ModeClassic && cfg.ClassicDelay <= 0 {
		cfg.ClassicDelay = 3 * time.Second
	}
	if deps.Frames == nil || deps.Detect == nil || deps.Exec == nil || deps.Control == nil {
		return nil, errors.New("fishing: incomplete deps")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Session{
		cfg:     cfg,
		frames:  deps.Frames,
		detect:  deps.Detect,
		exec:    deps.Exec,
		control: deps.Control,
		logger:  deps.Logger.With("window", cfg.Window.Title()),
		state:   StateIdle,
		bait:    NewBaitLedger(cfg.BaitKeys, cfg.BaitPerKey),
	}, nil
}

// Current returns the session state.
func (s *Session) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddListener registers a transition listener. Listeners run on the ticking
// goroutine and must not block.
func (s *Session) AddListener(l StateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Bait exposes the bait ledger for status display. The ledger is internally
// synchronized, so reading it while the session runs is safe.
func (s *Session) Bait() *BaitLedger { return s.bait }

// Report summarizes the session after it stopped.
func (s *Session) Report() Report {
	return Report{Reason: s.reason, Stats: s.stats, BaitRemaining: s.bait.Remaining()}
}

// Run loops Tick at the polling interval until the session stops, then
// returns its report. Retry backoff after capture failures stretches
// individual sleeps but never exceeds interval+retryBackoffCap, which
// bounds worst-case stop latency.
func (s *Session) Run(interval time.Duration) Report {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	for s.Current() != StateStopped {
		s.Tick(time.Now())
		if s.Current() == StateStopped {
			break
		}
		time.Sleep(interval + s.takeExtraDelay())
	}
	return s.Report()
}

// Tick performs one polling cycle. The control snapshot is read first:
// stop wins over pause, pause suspends capture and action entirely and
// preserves the state held before pausing.
func (s *Session) Tick(now time.Time) {
	if s.Current() == StateStopped {
		return
	}
	ctl := s.control.Snapshot()
	if ctl.Stopping {
		s.stop(StopRequested)
		return
	}
	if ctl.Paused {
		if st := s.Current(); st != StatePaused {
			s.resume = st
			s.transition(StatePaused)
		}
		return
	}
	if s.Current() == StatePaused {
		s.transition(s.resume)
		return
	}
	if !s.cfg.Window.Valid() {
		s.logger.Warn("target window disappeared")
		s.stop(StopWindowLost)
		return
	}
	switch s.Current() {
	case StateIdle:
		s.tickIdle(now)
	case StateAwaitingBite:
		s.tickAwaitingBite(now)
	case StatePlayingMinigame:
		s.tickMinigame(now)
	case StateHandlingCatch:
		s.tickHandleCatch(now)
	case StateSkipping:
		s.tickSkip()
	}
}

// tickIdle casts the next bait: press the round-robin bait key, then the
// cast key. Exhausted bait stops the session with a distinct reason.
func (s *Session) tickIdle(now time.Time) {
	if !s.primed {
		s.primed = true
		s.primeIgnoreList(now)
	}
	key, ok := s.bait.Next()
	if !ok {
		s.logger.Info("out of bait", "rounds", s.stats.Rounds)
		s.stop(StopBaitExhausted)
		return
	}
	if err := s.exec.PressKey(key); err != nil {
		s.actionFailure(err)
		return
	}
	if err := s.exec.PressKey(s.cfg.CastKey); err != nil {
		s.actionFailure(err)
		return
	}
	s.failures = 0
	s.castAt = now
	s.logger.Info("bait cast", "key", key, "remaining", s.bait.Remaining())
	s.transition(StateAwaitingBite)
}

// tickAwaitingBite polls for the bite cue / minigame overlay. Patience
// expiry re-casts; repeated expiries try a horse dismount chord first.
func (s *Session) tickAwaitingBite(now time.Time) {
	frame, _, err := s.captureRegion(s.cfg.MinigameRegion)
	if err != nil {
		s.captureFailure(err)
		return
	}
	defer capture.RecycleFrame(frame)
	s.failures = 0

	results := s.detect.Classify(frame, now, vision.KindBite, vision.KindOverlay)
	if len(results) > 0 {
		best := results[0]
		s.logger.Info("bite detected",
			"template", best.Template, "confidence", best.Confidence)
		s.biteTimeouts = 0
		s.minigameStart = now
		if s.cfg.Mode == ModeClassic {
			s.classicActAt = now.Add(s.cfg.ClassicDelay)
		}
		s.transition(StatePlayingMinigame)
		return
	}
	if now.Sub(s.castAt) >= s.cfg.BitePatience {
		s.biteTimeouts++
		s.logger.Info("no bite within patience window", "timeouts", s.biteTimeouts)
		if s.biteTimeouts >= s.cfg.DismountAfterTimeouts {
			// A mounted horse swallows casts; dismount before retrying.
			if err := s.exec.PressChord("ctrl", s.cfg.SkipHotkey); err != nil {
				s.actionFailure(err)
				return
			}
			s.biteTimeouts = 0
		}
		s.transition(StateIdle)
	}
}

// tickMinigame plays one round. Classic mode reels once the configured
// delay elapses; new mode clicks the fish cue while the overlay is present
// and finishes the round when the overlay disappears.
func (s *Session) tickMinigame(now time.Time) {
	if s.cfg.Mode == ModeClassic {
		if now.Before(s.classicActAt) {
			return
		}
		if err := s.exec.PressKey(s.cfg.CastKey); err != nil {
			s.actionFailure(err)
			return
		}
		s.failures = 0
		s.logger.Info("reeled in (classic)")
		s.finishRound()
		return
	}

	frame, rect, err := s.captureRegion(s.cfg.MinigameRegion)
	if err != nil {
		s.captureFailure(err)
		return
	}
	defer capture.RecycleFrame(frame)
	s.failures = 0

	results := s.detect.Classify(frame, now, vision.KindOverlay, vision.KindBite)
	overlay := false
	var fish *vision.Result
	for i := range results {
		switch results[i].Kind {
		case vision.KindOverlay:
			overlay = true
		case vision.KindBite:
			if fish == nil {
				fish = &results[i]
			}
		}
	}
	if !overlay {
		s.logger.Info("minigame finished", "hits", s.stats.Hits)
		s.finishRound()
		return
	}
	if fish != nil {
		target := rect.Min.Add(fish.Center())
		if err := s.exec.Click(target, input.ButtonLeft); err != nil {
			s.actionFailure(err)
			return
		}
		s.stats.Hits++
	}
	if now.Sub(s.minigameStart) >= s.cfg.MinigamePatience {
		s.logger.Warn("minigame overlay stuck past patience window")
		s.finishRound()
	}
}

func (s *Session) finishRound() {
	s.stats.Rounds++
	if len(s.cfg.Rules) > 0 {
		s.transition(StateHandlingCatch)
		return
	}
	s.afterCatch()
}

// afterCatch decides the post-round path. Catch handling always runs before
// quick skip; skipping replaces the idle wait, never the disposal.
func (s *Session) afterCatch() {
	if s.cfg.Skip != SkipOff {
		s.transition(StateSkipping)
		return
	}
	s.transition(StateIdle)
}

// tickHandleCatch classifies the inventory strip and executes the disposal
// rule for the best fish match. Unmapped fish types are kept and logged —
// never silently dropped.
func (s *Session) tickHandleCatch(now time.Time) {
	region, err := s.inventoryRegion()
	if err != nil {
		s.captureFailure(&capture.Error{Reason: capture.ReasonWindowGone, Err: err})
		return
	}
	frame, rect, err := s.captureRegion(region)
	if err != nil {
		s.captureFailure(err)
		return
	}
	defer capture.RecycleFrame(frame)
	s.failures = 0

	match, ok := s.pickCatch(s.detect.Classify(frame, now, vision.KindFish))
	if !ok {
		// Not every round yields an item; nothing to dispose of.
		s.logger.Debug("no catch identified in inventory")
		s.afterCatch()
		return
	}
	slot := match.Center()
	screen := rect.Min.Add(slot)
	rule, mapped := s.cfg.Rules[match.Template]
	if !mapped {
		s.logger.Warn("no catch rule configured; keeping",
			"template", match.Template, "confidence", match.Confidence)
		s.ignored = append(s.ignored, slot)
		s.afterCatch()
		return
	}
	s.logger.Info("handling catch",
		"template", match.Template, "action", rule.Action.String(), "confidence", match.Confidence)
	if err := s.disposeCatch(rule.Action, screen, slot); err != nil {
		s.actionFailure(err)
		return
	}
	if rule.Action != ActionKeep {
		s.confirmRemoval(region, slot, now)
	}
	s.stats.Catches++
	s.afterCatch()
}

// inventoryRegion resolves the window-relative inventory rectangle,
// defaulting to the right-hand strip.
func (s *Session) inventoryRegion() (image.Rectangle, error) {
	if !s.cfg.InventoryRegion.Empty() {
		return s.cfg.InventoryRegion, nil
	}
	wr, err := s.cfg.Window.Rect()
	if err != nil {
		return image.Rectangle{}, err
	}
	w, h := wr.Dx(), wr.Dy()
	return image.Rect(max(0, w-defaultInventoryWidth), defaultInventoryTop,
		w, max(defaultInventoryTop, h-defaultInventorySlack)), nil
}

// primeIgnoreList records fish already sitting in the inventory when the
// session starts, so items that predate the session are never disposed of.
// Best effort: a failed scan just leaves the list empty.
func (s *Session) primeIgnoreList(now time.Time) {
	if len(s.cfg.Rules) == 0 {
		return
	}
	region, err := s.inventoryRegion()
	if err != nil {
		return
	}
	frame, _, err := s.captureRegion(region)
	if err != nil {
		return
	}
	defer capture.RecycleFrame(frame)
	for _, r := range s.detect.Classify(frame, now, vision.KindFish) {
		s.ignored = append(s.ignored, r.Center())
	}
	if n := len(s.ignored); n > 0 {
		s.logger.Info("pre-existing inventory items ignored", "count", n)
	}
}

// confirmRemoval re-checks the disposed slot. An item the action failed to
// remove (a fish that cannot be opened, a locked slot) would otherwise be
// re-detected and re-handled on every later round; its slot joins the
// ignore list instead.
func (s *Session) confirmRemoval(region image.Rectangle, slot image.Point, now time.Time) {
	frame, _, err := s.captureRegion(region)
	if err != nil {
		return
	}
	defer capture.RecycleFrame(frame)
	for _, r := range s.detect.Classify(frame, now, vision.KindFish) {
		c := r.Center()
		if abs(c.X-slot.X) < ignoreRadius && abs(c.Y-slot.Y) < ignoreRadius {
			s.logger.Warn("catch still present after disposal; ignoring slot",
				"template", r.Template, "x", slot.X, "y", slot.Y)
			s.ignored = append(s.ignored, slot)
			return
		}
	}
}

// pickCatch returns the highest-confidence fish match outside the ignored
// slots. Results arrive already ordered by the detector.
func (s *Session) pickCatch(results []vision.Result) (vision.Result, bool) {
	for _, r := range results {
		if !s.isIgnored(r.Center()) {
			return r, true
		}
	}
	return vision.Result{}, false
}

func (s *Session) isIgnored(pt image.Point) bool {
	for _, ig := range s.ignored {
		if abs(pt.X-ig.X) < ignoreRadius && abs(pt.Y-ig.Y) < ignoreRadius {
			return true
		}
	}
	return false
}

// disposeCatch executes the click sequence for one rule. screen is the
// catch slot in screen coordinates, slot the inventory-relative position
// remembered for kept catches.
//
// Sequences:
//
//	keep: no clicks; the slot joins the ignore list.
//	open: right-click the slot.
//	drop: left-click the slot (pick up), left-click the window center
//	      (release), left-click the drop button, then the confirm button
//	      when one is configured.
func (s *Session) disposeCatch(action CatchAction, screen, slot image.Point) error {
	switch action {
	case ActionKeep:
		s.ignored = append(s.ignored, slot)
		return nil
	case ActionOpen:
		return s.exec.Click(screen, input.ButtonRight)
	case ActionDrop:
		wr, err := s.cfg.Window.Rect()
		if err != nil {
			return err
		}
		center := wr.Min.Add(image.Pt(wr.Dx()/2, wr.Dy()/2))
		if err := s.exec.Click(screen, input.ButtonLeft); err != nil {
			return err
		}
		if err := s.exec.Click(center, input.ButtonLeft); err != nil {
			return err
		}
		if err := s.exec.Click(wr.Min.Add(s.cfg.DropButton), input.ButtonLeft); err != nil {
			return err
		}
		if s.cfg.ConfirmButton != (image.Point{}) {
			if err := s.exec.Click(wr.Min.Add(s.cfg.ConfirmButton), input.ButtonLeft); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// tickSkip bypasses the post-catch wait: horse mode double-presses the
// mount chord, armor mode right-clicks the armor slot to re-equip.
func (s *Session) tickSkip() {
	switch s.cfg.Skip {
	case SkipHorse:
		for i := 0; i < 2; i++ {
			if err := s.exec.PressChord("ctrl", s.cfg.SkipHotkey); err != nil {
				s.actionFailure(err)
				return
			}
		}
		s.logger.Info("quick skip executed", "mode", "horse")
	case SkipArmor:
		wr, err := s.cfg.Window.Rect()
		if err != nil {
			s.captureFailure(&capture.Error{Reason: capture.ReasonWindowGone, Err: err})
			return
		}
		if err := s.exec.Click(wr.Min.Add(s.cfg.ArmorSlot), input.ButtonRight); err != nil {
			s.actionFailure(err)
			return
		}
		s.logger.Info("quick skip executed", "mode", "armor")
	}
	s.failures = 0
	s.transition(StateIdle)
}

// captureRegion grabs the window-relative rectangle rel (the whole window
// when rel is zero) and copies it into a pooled frame. The returned
// rectangle is the captured area in screen coordinates; the frame itself is
// zero-based.
func (s *Session) captureRegion(rel image.Rectangle) (*image.RGBA, image.Rectangle, error) {
	wr, err := s.cfg.Window.Rect()
	if err != nil {
		return nil, image.Rectangle{}, &capture.Error{Reason: capture.ReasonWindowGone, Err: err}
	}
	a := wr
	if !rel.Empty() {
		a = rel.Add(wr.Min)
	}
	raw, err := s.frames.Capture(a)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	frame := capture.CopyInto(raw)
	return frame, a, nil
}

// captureFailure counts one transient fault. Below the retry limit the
// state is kept and the next tick retries with a growing backoff; at the
// limit the window is presumed closed.
func (s *Session) captureFailure(err error) {
	s.failures++
	s.logger.Warn("capture failed",
		"err", err, "attempt", s.failures, "limit", s.cfg.CaptureRetryLimit)
	if s.failures >= s.cfg.CaptureRetryLimit {
		s.stop(StopWindowLost)
		return
	}
	s.extraDelay = min(time.Duration(s.failures)*retryBackoffStep, retryBackoffCap)
}

// actionFailure treats a rejected input injection like a capture failure:
// the window has likely lost focus or vanished mid-action.
func (s *Session) actionFailure(err error) {
	s.captureFailure(err)
}

func (s *Session) takeExtraDelay() time.Duration {
	d := s.extraDelay
	s.extraDelay = 0
	return d
}

func (s *Session) stop(reason StopReason) {
	s.reason = reason
	s.transition(StateStopped)
}

func (s *Session) transition(next State) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	listeners := s.listeners
	s.mu.Unlock()
	s.logger.Info("state transition", "from", prev.String(), "to", next.String())
	for _, l := range listeners {
		l(prev, next)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
