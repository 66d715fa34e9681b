package supervisor

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"
)

// ParseHotkey maps a config token like "F5" to its virtual-key code.
func ParseHotkey(token string) (types.VKCode, error) {
	t := strings.ToUpper(strings.TrimSpace(token))
	if strings.HasPrefix(t, "F") {
		if n, err := strconv.Atoi(t[1:]); err == nil && n >= 1 && n <= 12 {
			return types.VK_F1 + types.VKCode(n-1), nil
		}
	}
	if len(t) == 1 && (t[0] >= 'A' && t[0] <= 'Z' || t[0] >= '0' && t[0] <= '9') {
		return types.VKCode(t[0]), nil
	}
	return 0, fmt.Errorf("supervisor: unsupported hotkey %q", token)
}

// ListenHotkey installs a low-level keyboard hook and toggles the shared
// pause flag whenever the configured key goes down. It blocks until the
// stop channel closes; run it on its own goroutine.
func ListenHotkey(control *Control, key types.VKCode, stop <-chan struct{}, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	events := make(chan types.KeyboardEvent, 100)
	if err := keyboard.Install(nil, events); err != nil {
		return fmt.Errorf("supervisor: keyboard hook: %w", err)
	}
	defer keyboard.Uninstall()

	logger.Info("pause hotkey armed", "vk", uint32(key))
	for {
		select {
		case <-stop:
			return nil
		case event := <-events:
			if event.Message == types.WM_KEYDOWN && event.VKCode == key {
				paused := control.TogglePause()
				logger.Info("pause toggled", "paused", paused)
			}
		}
	}
}
