package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Live holds the current configuration and swaps it when the file changes.
// It satisfies the popup's read-only focus context.
type Live struct {
	path    string
	current atomic.Pointer[Config]
	logger  logrus.FieldLogger

	mu       sync.Mutex
	onReload []func(*Config)
	debounce time.Duration
}

// NewLive wraps an already loaded config read from path.
func NewLive(path string, cfg *Config, logger logrus.FieldLogger) *Live {
	if path == "" {
		path = ConfigPath()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &Live{
		path:     path,
		logger:   logger.WithField("component", "config"),
		debounce: DefaultDebounce,
	}
	l.current.Store(cfg)
	return l
}

// Current returns the active configuration. Callers must not mutate it.
func (l *Live) Current() *Config {
	return l.current.Load()
}

// CustomImage returns the configured focus image, if any.
func (l *Live) CustomImage() string {
	return l.Current().Focus.CustomImage
}

// CustomText returns the configured motivational text, if any.
func (l *Live) CustomText() string {
	return l.Current().Focus.CustomText
}

// OnReload registers fn to run after each successful reload.
func (l *Live) OnReload(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = append(l.onReload, fn)
}

// Reload re-reads the file. On error the previous configuration stays active.
func (l *Live) Reload() error {
	cfg, err := Load(l.path)
	if err != nil {
		return err
	}
	l.current.Store(cfg)

	l.mu.Lock()
	callbacks := append([]func(*Config){}, l.onReload...)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// Watch reloads the configuration whenever the file is written, until ctx
// is done. The directory is watched so atomic renames are seen.
func (l *Live) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	filename := filepath.Base(l.path)
	l.logger.WithField("path", l.path).Debug("config watcher started")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(l.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.WithError(err).Warn("config watcher error")
		case <-pending:
			pending = nil
			if err := l.Reload(); err != nil {
				l.logger.WithError(err).Warn("config reload failed, keeping previous configuration")
				continue
			}
			l.logger.Info("configuration reloaded")
		}
	}
}
