package main

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/hetzpvp/Mt2-Fishbot/config"
	"github.com/hetzpvp/Mt2-Fishbot/domain/capture"
	"github.com/hetzpvp/Mt2-Fishbot/domain/fishing"
	"github.com/hetzpvp/Mt2-Fishbot/domain/input"
	"github.com/hetzpvp/Mt2-Fishbot/domain/vision"
	"github.com/hetzpvp/Mt2-Fishbot/domain/window"
	"github.com/hetzpvp/Mt2-Fishbot/supervisor"
)

// run wires the engine together and blocks until every session stops, the
// user interrupts, or the hook fails to install.
func run(cfg *config.Config, logger *slog.Logger) error {
	lib, err := vision.LoadLibrary(cfg.AssetsDir, vision.LoadOptions{
		Threshold: cfg.Detection.Threshold,
		KindThresholds: map[vision.Kind]float64{
			vision.KindBite:    cfg.Detection.BiteThreshold,
			vision.KindOverlay: cfg.Detection.OverlayThreshold,
			vision.KindFish:    cfg.Detection.FishThreshold,
		},
		BorderCrop: cfg.Detection.BorderCrop,
	})
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	detector := vision.NewDetector(lib,
		vision.MatchOptions{
			Threshold:      cfg.Detection.Threshold,
			Stride:         cfg.Detection.Stride,
			Refine:         cfg.Detection.Refine,
			ReturnBestEven: cfg.Detection.ReturnBestEven,
		},
		vision.ScaleOptions{
			MinScale:    cfg.Detection.MinScale,
			MaxScale:    cfg.Detection.MaxScale,
			ScaleStep:   cfg.Detection.ScaleStep,
			StopOnScore: cfg.Detection.StopOnScore,
		},
		logger)

	control := supervisor.NewControl()
	source := capture.NewScreenSource(0)

	sessions := make([]supervisor.Runner, 0, len(cfg.Sessions))
	for i := range cfg.Sessions {
		sess, err := buildSession(&cfg.Sessions[i], cfg, detector, source, control, logger)
		if err != nil {
			return fmt.Errorf("session %d (%s): %w", i, cfg.Sessions[i].WindowTitle, err)
		}
		sessions = append(sessions, sess)
	}

	sup := supervisor.New(control, cfg.PollInterval(), logger)
	if err := sup.StartAll(sessions); err != nil {
		return err
	}

	vk, err := supervisor.ParseHotkey(cfg.PauseHotkey)
	if err != nil {
		return err
	}
	hookStop := make(chan struct{})
	hookErr := make(chan error, 1)
	go func() { hookErr <- supervisor.ListenHotkey(control, vk, hookStop, logger) }()
	defer close(hookStop)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan []fishing.Report, 1)
	go func() { done <- sup.Wait() }()

	var reports []fishing.Report
	select {
	case reports = <-done:
	case <-interrupt:
		logger.Info("interrupt received, stopping sessions")
		reports = sup.StopAll()
	case err := <-hookErr:
		if err != nil {
			logger.Error("hotkey listener failed", "err", err)
		}
		reports = sup.StopAll()
	}
	for i, r := range reports {
		logger.Info("final report",
			"session", i,
			"reason", r.Reason.String(),
			"rounds", r.Stats.Rounds,
			"hits", r.Stats.Hits,
			"catches", r.Stats.Catches,
			"bait_remaining", r.BaitRemaining)
	}
	return nil
}

// buildSession resolves one configured window and assembles its session.
func buildSession(sc *config.Session, cfg *config.Config, detector *vision.Detector, source capture.Source, control *supervisor.Control, logger *slog.Logger) (*fishing.Session, error) {
	win, err := window.FindByTitle(sc.WindowTitle)
	if err != nil {
		return nil, err
	}
	if err := win.Activate(); err != nil {
		logger.Warn("could not focus window", "title", sc.WindowTitle, "err", err)
	}

	var human *input.Humanizer
	if sc.HumanClicking {
		human = input.NewHumanizer(input.JitterParams{
			MaxOffsetPx: cfg.Jitter.MaxOffsetPx,
			MinDelay:    time.Duration(cfg.Jitter.MinDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Jitter.MaxDelayMs) * time.Millisecond,
		}, time.Now().UnixNano())
	}

	rules := make(map[string]fishing.CatchRule, len(sc.CatchRules))
	for name, r := range sc.CatchRules {
		rules[name] = fishing.CatchRule{Action: parseAction(r.Action)}
	}

	fc := fishing.SessionConfig{
		Window:            win,
		BaitKeys:          sc.BaitKeys,
		BaitPerKey:        sc.BaitPerKey,
		CastKey:           sc.CastKey,
		Mode:              parseMode(sc.Mode),
		ClassicDelay:      time.Duration(sc.ClassicDelayMs) * time.Millisecond,
		Skip:              parseSkip(sc.QuickSkip),
		SkipHotkey:        sc.SkipHotkey,
		ArmorSlot:         point(sc.ArmorSlot),
		Rules:             rules,
		DropButton:        point(sc.DropButton),
		ConfirmButton:     point(sc.ConfirmButton),
		MinigameRegion:    region(sc.MinigameRegion),
		InventoryRegion:   region(sc.InventoryRegion),
		BitePatience:      time.Duration(sc.BitePatienceMs) * time.Millisecond,
		MinigamePatience:  time.Duration(sc.MinigamePatienceMs) * time.Millisecond,
		CaptureRetryLimit: sc.CaptureRetryLimit,
	}
	return fishing.NewSession(fc, fishing.Deps{
		Frames: source,
		Detect: detector,
		// Serialized: sessions share one OS cursor and keyboard.
		Exec:    input.Serialize(input.NewWindowsExecutor(human)),
		Control: control,
		Logger:  logger,
	})
}

func parseMode(s string) fishing.Mode {
	if s == "classic" {
		return fishing.ModeClassic
	}
	return fishing.ModeNew
}

func parseSkip(s string) fishing.SkipMode {
	switch s {
	case "horse":
		return fishing.SkipHorse
	case "armor":
		return fishing.SkipArmor
	}
	return fishing.SkipOff
}

func parseAction(s string) fishing.CatchAction {
	switch s {
	case "drop":
		return fishing.ActionDrop
	case "open":
		return fishing.ActionOpen
	}
	return fishing.ActionKeep
}

func point(p config.Point) image.Point { return image.Pt(p.X, p.Y) }

func region(r config.Region) image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}
