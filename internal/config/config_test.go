package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8*time.Second, cfg.Popup.AutoDismiss.Duration())
	assert.False(t, cfg.Popup.ReleaseOnTimeout)
	assert.Equal(t, 240*time.Millisecond, cfg.Popup.ExitAnimation.Duration())
	assert.Equal(t, 40, cfg.Popup.ImageMaxWidth)
	assert.Equal(t, 12, cfg.Popup.ImageMaxHeight)
	assert.Equal(t, 60, cfg.Popup.Width)
	assert.Empty(t, cfg.Focus.CustomImage)
	assert.Empty(t, cfg.Focus.CustomText)
	assert.False(t, cfg.Notify.Desktop)
	assert.Equal(t, 80, cfg.Notify.Volume)
	assert.True(t, cfg.DBus.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[focus]
custom_image = "/srv/focus.png"
custom_text = "Deep work wins."

[popup]
auto_dismiss = "5s"
release_on_timeout = true
exit_animation = "120"
image_max_width = 30
image_max_height = 8
width = 70

[notify]
desktop = true
sound = "/usr/share/sounds/bell.wav"
volume = 40

[dbus]
enabled = false

[log]
level = "debug"
file = "/tmp/fp.log"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/focus.png", cfg.Focus.CustomImage)
	assert.Equal(t, "Deep work wins.", cfg.Focus.CustomText)
	assert.Equal(t, 5*time.Second, cfg.Popup.AutoDismiss.Duration())
	assert.True(t, cfg.Popup.ReleaseOnTimeout)
	assert.Equal(t, 120*time.Millisecond, cfg.Popup.ExitAnimation.Duration())
	assert.Equal(t, 30, cfg.Popup.ImageMaxWidth)
	assert.Equal(t, 8, cfg.Popup.ImageMaxHeight)
	assert.Equal(t, 70, cfg.Popup.Width)
	assert.True(t, cfg.Notify.Desktop)
	assert.Equal(t, "/usr/share/sounds/bell.wav", cfg.Notify.Sound)
	assert.Equal(t, 40, cfg.Notify.Volume)
	assert.False(t, cfg.DBus.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/fp.log", cfg.LogPath())
}

func TestLoad_PartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[focus]\ncustom_text = \"Breathe.\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Breathe.", cfg.Focus.CustomText)
	assert.Equal(t, DefaultAutoDismiss, cfg.Popup.AutoDismiss.Duration())
	assert.True(t, cfg.DBus.Enabled)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is not valid toml ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[popup]\nauto_dismiss = \"soon\"\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero auto dismiss", func(c *Config) { c.Popup.AutoDismiss = 0 }},
		{"negative exit animation", func(c *Config) { c.Popup.ExitAnimation = Duration(-time.Second) }},
		{"image too narrow", func(c *Config) { c.Popup.ImageMaxWidth = 2 }},
		{"image too tall", func(c *Config) { c.Popup.ImageMaxHeight = 500 }},
		{"popup too narrow", func(c *Config) { c.Popup.Width = 10 }},
		{"volume too loud", func(c *Config) { c.Notify.Volume = 150 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Focus.CustomText = "Ship it."
	cfg.Popup.AutoDismiss = Duration(3 * time.Second)
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfigPath_UsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")

	assert.Equal(t, "/xdg/config/focuspopup/config.toml", ConfigPath())
	assert.Equal(t, "/xdg/state/focuspopup/focuspopup.log", DefaultConfig().LogPath())
}

func TestLive_ReloadKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[focus]\ncustom_image = \"/a.png\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	live := NewLive(path, cfg, nil)
	assert.Equal(t, "/a.png", live.CustomImage())

	var reloaded *Config
	live.OnReload(func(c *Config) { reloaded = c })

	require.NoError(t, os.WriteFile(path, []byte("[focus]\ncustom_image = \"/b.png\"\ncustom_text = \"Go.\"\n"), 0644))
	require.NoError(t, live.Reload())
	assert.Equal(t, "/b.png", live.CustomImage())
	assert.Equal(t, "Go.", live.CustomText())
	require.NotNil(t, reloaded)
	assert.Equal(t, "/b.png", reloaded.Focus.CustomImage)

	require.NoError(t, os.WriteFile(path, []byte("[popup]\nwidth = 5\n"), 0644))
	assert.ErrorIs(t, live.Reload(), ErrInvalid)
	assert.Equal(t, "/b.png", live.CustomImage())
}

func TestLive_WatchPicksUpEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0644))

	live := NewLive(path, DefaultConfig(), nil)
	live.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- live.Watch(ctx) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("[focus]\ncustom_text = \"Stay on task.\"\n"), 0644)
		return live.CustomText() == "Stay on task."
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
