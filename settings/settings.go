package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings is the persisted user configuration. API keys loaded from
// the environment take precedence over the stored key.
type Settings struct {
	AudioDevice    string `json:"audio_device"`
	DefaultDevice  bool   `json:"default_device"`
	APIKey         string `json:"api_key"`
	MinimizeToTray bool   `json:"minimize_to_tray"`
}

func Default() Settings {
	return Settings{DefaultDevice: true}
}

// DefaultPath is ~/.config/stt-notepad/settings.json, honoring
// XDG_CONFIG_HOME when set.
func DefaultPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "stt-notepad", "settings.json"), nil
}

// Load reads settings from path. A missing file is not an error and
// yields the defaults.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}
	return s, nil
}

func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
