// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// Default configuration values.
const (
	DefaultAutoDismiss    = 8 * time.Second
	DefaultExitAnimation  = 240 * time.Millisecond
	DefaultImageMaxWidth  = 40
	DefaultImageMaxHeight = 12
	DefaultPopupWidth     = 60
	DefaultVolume         = 80
	DefaultLogLevel       = "info"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "8s", "250ms", "1m", or a quoted millisecond count such as "8000".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '8s', '250ms' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the focuspopup configuration.
type Config struct {
	Focus  FocusConfig  `toml:"focus"`
	Popup  PopupConfig  `toml:"popup"`
	Notify NotifyConfig `toml:"notify"`
	DBus   DBusConfig   `toml:"dbus"`
	Log    LogConfig    `toml:"log"`
}

// FocusConfig is the user's focus-mode customisation.
type FocusConfig struct {
	CustomImage string `toml:"custom_image"` // Overrides any image carried on the signal
	CustomText  string `toml:"custom_text"`  // Motivational quote source
}

// PopupConfig holds popup timing and layout.
type PopupConfig struct {
	AutoDismiss      Duration `toml:"auto_dismiss"`
	ReleaseOnTimeout bool     `toml:"release_on_timeout"`
	ExitAnimation    Duration `toml:"exit_animation"`
	ImageMaxWidth    int      `toml:"image_max_width"`  // cells
	ImageMaxHeight   int      `toml:"image_max_height"` // cells, two pixel rows each
	Width            int      `toml:"width"`
}

// NotifyConfig controls side channels that fire when a popup shows.
type NotifyConfig struct {
	Desktop bool   `toml:"desktop"` // Mirror to a desktop notification
	Sound   string `toml:"sound"`   // wav/mp3/ogg chime
	Volume  int    `toml:"volume"`  // 0-100
}

// DBusConfig controls the session bus service.
type DBusConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // Empty = StatePath()/focuspopup.log
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Popup: PopupConfig{
			AutoDismiss:    Duration(DefaultAutoDismiss),
			ExitAnimation:  Duration(DefaultExitAnimation),
			ImageMaxWidth:  DefaultImageMaxWidth,
			ImageMaxHeight: DefaultImageMaxHeight,
			Width:          DefaultPopupWidth,
		},
		Notify: NotifyConfig{
			Volume: DefaultVolume,
		},
		DBus: DBusConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "focuspopup", "config.toml")
}

// StatePath returns the directory for logs.
// Uses XDG_STATE_HOME if set, otherwise ~/.local/state.
func StatePath() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "focuspopup")
}

// LogPath returns the configured log file or the default under StatePath.
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return expandPath(c.Log.File)
	}
	return filepath.Join(StatePath(), "focuspopup.log")
}

// Load loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Focus.CustomImage = expandPath(cfg.Focus.CustomImage)
	cfg.Notify.Sound = expandPath(cfg.Notify.Sound)
	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Popup.AutoDismiss <= 0 {
		return fmt.Errorf("%w: auto_dismiss must be positive, got %s", ErrInvalid, c.Popup.AutoDismiss.Duration())
	}
	if c.Popup.ExitAnimation < 0 {
		return fmt.Errorf("%w: exit_animation must not be negative", ErrInvalid)
	}
	if c.Popup.ImageMaxWidth < 4 || c.Popup.ImageMaxWidth > 200 {
		return fmt.Errorf("%w: image_max_width must be between 4 and 200, got %d", ErrInvalid, c.Popup.ImageMaxWidth)
	}
	if c.Popup.ImageMaxHeight < 4 || c.Popup.ImageMaxHeight > 200 {
		return fmt.Errorf("%w: image_max_height must be between 4 and 200, got %d", ErrInvalid, c.Popup.ImageMaxHeight)
	}
	if c.Popup.Width < 30 || c.Popup.Width > 200 {
		return fmt.Errorf("%w: width must be between 30 and 200, got %d", ErrInvalid, c.Popup.Width)
	}
	if c.Notify.Volume < 0 || c.Notify.Volume > 100 {
		return fmt.Errorf("%w: volume must be between 0 and 100, got %d", ErrInvalid, c.Notify.Volume)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
