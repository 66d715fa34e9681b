package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Point is a screen coordinate relative to the top-left corner of the
// owning game window.
type Point struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
}

// Region is a rectangle relative to the top-left corner of the owning
// game window. A zero-size region means "use the whole window".
type Region struct {
	Left   int `mapstructure:"left"`
	Top    int `mapstructure:"top"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Detection holds the template matching parameters shared by all sessions.
// The per-kind thresholds override Threshold for one template class; zero
// means "use Threshold". Background art differs per UI element, so the bite
// cue, the minigame overlay and inventory items usually need different
// confidence floors.
type Detection struct {
	Threshold        float64 `mapstructure:"threshold"`
	BiteThreshold    float64 `mapstructure:"bite_threshold"`
	OverlayThreshold float64 `mapstructure:"overlay_threshold"`
	FishThreshold    float64 `mapstructure:"fish_threshold"`
	Stride           int     `mapstructure:"stride"`
	Refine         bool    `mapstructure:"refine"`
	ReturnBestEven bool    `mapstructure:"return_best_even"`
	MinScale       float64 `mapstructure:"min_scale"`
	MaxScale       float64 `mapstructure:"max_scale"`
	ScaleStep      float64 `mapstructure:"scale_step"`
	StopOnScore    float64 `mapstructure:"stop_on_score"`
	BorderCrop     int     `mapstructure:"border_crop"`
}

// Jitter bounds the randomized offset and delay applied when human-like
// clicking is enabled. The bounds live in configuration so tests and users
// can pin them.
type Jitter struct {
	MaxOffsetPx int `mapstructure:"max_offset_px"`
	MinDelayMs  int `mapstructure:"min_delay_ms"`
	MaxDelayMs  int `mapstructure:"max_delay_ms"`
}

// CatchRule maps a recognized fish/item template name to a disposal action.
// Action is one of "keep", "drop", "open".
type CatchRule struct {
	Action string `mapstructure:"action"`
}

// Session configures one automation loop bound to one game window.
type Session struct {
	WindowTitle string   `mapstructure:"window_title"`
	BaitKeys    []string `mapstructure:"bait_keys"`
	BaitPerKey  int      `mapstructure:"bait_per_key"`
	CastKey     string   `mapstructure:"cast_key"`

	Mode           string `mapstructure:"mode"` // "new" or "classic"
	ClassicDelayMs int    `mapstructure:"classic_delay_ms"`

	QuickSkip  string `mapstructure:"quick_skip"` // "off", "horse", "armor"
	SkipHotkey string `mapstructure:"skip_hotkey"`
	ArmorSlot  Point  `mapstructure:"armor_slot"`

	HumanClicking bool                 `mapstructure:"human_clicking"`
	CatchRules    map[string]CatchRule `mapstructure:"catch_rules"`
	DropButton    Point                `mapstructure:"drop_button"`
	ConfirmButton Point                `mapstructure:"confirm_button"`

	MinigameRegion  Region `mapstructure:"minigame_region"`
	InventoryRegion Region `mapstructure:"inventory_region"`

	BitePatienceMs     int `mapstructure:"bite_patience_ms"`
	MinigamePatienceMs int `mapstructure:"minigame_patience_ms"`
	CaptureRetryLimit  int `mapstructure:"capture_retry_limit"`
}

// Config is the root runtime configuration, loaded from config.yaml.
type Config struct {
	Debug          bool      `mapstructure:"debug"`
	LogLevel       string    `mapstructure:"log_level"`
	AssetsDir      string    `mapstructure:"assets_dir"`
	PollIntervalMs int       `mapstructure:"poll_interval_ms"`
	PauseHotkey    string    `mapstructure:"pause_hotkey"`
	Detection      Detection `mapstructure:"detection"`
	Jitter         Jitter    `mapstructure:"jitter"`
	Sessions       []Session `mapstructure:"sessions"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:          false,
		LogLevel:       "info",
		AssetsDir:      "assets",
		PollIntervalMs: 100,
		PauseHotkey:    "F5",
		Detection: Detection{
			Threshold:      0.80,
			Stride:         2,
			Refine:         true,
			ReturnBestEven: false,
			MinScale:       0.25,
			MaxScale:       3.00,
			ScaleStep:      0.25,
			StopOnScore:    0.90,
			BorderCrop:     7,
		},
		Jitter: Jitter{
			MaxOffsetPx: 3,
			MinDelayMs:  50,
			MaxDelayMs:  150,
		},
	}
}

// PollInterval returns the session polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Validate clamps values to safe ranges and rejects configurations the
// engine cannot run with.
func (c *Config) Validate() error {
	if c.PollIntervalMs < 20 {
		c.PollIntervalMs = 20
	}
	if c.PauseHotkey == "" {
		c.PauseHotkey = "F5"
	}
	d := &c.Detection
	if d.Threshold <= 0 || d.Threshold > 1 {
		d.Threshold = 0.80
	}
	for _, t := range []*float64{&d.BiteThreshold, &d.OverlayThreshold, &d.FishThreshold} {
		if *t < 0 || *t > 1 {
			*t = 0
		}
	}
	if d.Stride <= 0 {
		d.Stride = 2
	}
	if d.MinScale <= 0 {
		d.MinScale = 0.25
	}
	if d.MaxScale < d.MinScale {
		d.MaxScale = d.MinScale
	}
	if d.ScaleStep <= 0 {
		d.ScaleStep = 0.25
	}
	if d.StopOnScore < 0 || d.StopOnScore > 1 {
		d.StopOnScore = 0.90
	}
	if d.BorderCrop < 0 {
		d.BorderCrop = 0
	}
	j := &c.Jitter
	if j.MaxOffsetPx < 0 {
		j.MaxOffsetPx = 0
	}
	if j.MinDelayMs < 0 {
		j.MinDelayMs = 0
	}
	if j.MaxDelayMs < j.MinDelayMs {
		j.MaxDelayMs = j.MinDelayMs
	}
	if len(c.Sessions) > 8 {
		return fmt.Errorf("config: %d sessions configured, at most 8 supported", len(c.Sessions))
	}
	for i := range c.Sessions {
		if err := c.Sessions[i].validate(); err != nil {
			return fmt.Errorf("config: session %d: %w", i, err)
		}
	}
	return nil
}

func (s *Session) validate() error {
	if s.WindowTitle == "" {
		return fmt.Errorf("window_title is required")
	}
	if len(s.BaitKeys) == 0 {
		s.BaitKeys = []string{"1", "2", "3", "4"}
	}
	if len(s.BaitKeys) > 8 {
		return fmt.Errorf("at most 8 bait keys, got %d", len(s.BaitKeys))
	}
	if s.BaitPerKey <= 0 {
		s.BaitPerKey = 200
	}
	if s.CastKey == "" {
		s.CastKey = "space"
	}
	switch s.Mode {
	case "", "new":
		s.Mode = "new"
	case "classic":
		if s.ClassicDelayMs <= 0 {
			s.ClassicDelayMs = 3000
		}
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	switch s.QuickSkip {
	case "", "off":
		s.QuickSkip = "off"
	case "horse":
		if s.SkipHotkey == "" {
			s.SkipHotkey = "G"
		}
	case "armor":
		if s.ArmorSlot == (Point{}) {
			return fmt.Errorf("quick_skip=armor requires armor_slot coordinates")
		}
	default:
		return fmt.Errorf("unknown quick_skip mode %q", s.QuickSkip)
	}
	for name, rule := range s.CatchRules {
		switch rule.Action {
		case "keep", "open":
		case "drop":
			if s.DropButton == (Point{}) || s.ConfirmButton == (Point{}) {
				return fmt.Errorf("catch rule %q uses drop but drop_button/confirm_button are not set", name)
			}
		default:
			return fmt.Errorf("catch rule %q: unknown action %q", name, rule.Action)
		}
	}
	if s.BitePatienceMs <= 0 {
		s.BitePatienceMs = 4000
	}
	if s.MinigamePatienceMs <= 0 {
		s.MinigamePatienceMs = 15000
	}
	if s.CaptureRetryLimit <= 0 {
		s.CaptureRetryLimit = 5
	}
	return nil
}

// Load reads configuration from the given YAML file via viper. A missing
// file yields DefaultConfig(); a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
