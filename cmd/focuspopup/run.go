package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ezchuang/focuspopup/internal/audio"
	"github.com/ezchuang/focuspopup/internal/bus"
	"github.com/ezchuang/focuspopup/internal/config"
	"github.com/ezchuang/focuspopup/internal/core"
	"github.com/ezchuang/focuspopup/internal/dbus"
	"github.com/ezchuang/focuspopup/internal/media"
	"github.com/ezchuang/focuspopup/internal/notify"
	"github.com/ezchuang/focuspopup/internal/ui"
)

var runOpts struct {
	demo bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the popup host",
	Long: `Start the popup host in the terminal.

The host listens for show-focus-popup signals on D-Bus, renders the popup,
and reports dismissals back. The config file is watched and reloaded on
change. Logs go to the configured log file while the TUI is up.`,
	RunE: runHost,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().BoolVar(&runOpts.demo, "demo", false, "Raise a sample popup on start")
	}
	rootCmd.AddCommand(runCmd)
}

func runHost(cmd *cobra.Command, args []string) error {
	closeLog, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	live := config.NewLive(resolvedConfigPath(), cfg, logger)
	events := bus.New(logger)
	defer events.Close()

	ctrl := core.New(popupConfig(cfg), events, live, logger)

	player := audio.NewPlayer(logger)
	player.SetVolume(cfg.Notify.Volume)

	model := ui.NewModel(ctrl, live, media.NewLoader(media.DefaultTimeout),
		notify.New(appName), player, uiOptions(cfg), logger)

	options := make(chan ui.Options, 1)
	live.OnReload(func(c *config.Config) {
		ctrl.SetConfig(popupConfig(c))
		player.SetVolume(c.Notify.Volume)
		select {
		case options <- uiOptions(c):
		default:
			// a newer reload will follow; drop the stale one
			select {
			case <-options:
			default:
			}
			options <- uiOptions(c)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error {
		if err := live.Watch(gctx); err != nil {
			logger.WithError(err).Warn("config watcher unavailable")
		}
		return nil
	})

	if cfg.DBus.Enabled {
		svc := dbus.NewService(events, logger)
		if err := svc.Start(); err != nil {
			logger.WithError(err).Warn("D-Bus service unavailable, popups can only be raised in-process")
		} else {
			defer func() { _ = svc.Stop() }()
			g.Go(func() error { return svc.Run(gctx) })
		}
	}

	if runOpts.demo {
		g.Go(func() error { return publishDemo(gctx, events) })
	}

	uiErr := ui.Run(gctx, model, options)
	stop()
	if err := g.Wait(); err != nil {
		return err
	}
	return uiErr
}

// publishDemo raises a sample popup once the controller is listening.
func publishDemo(ctx context.Context, events *bus.Bus) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for events.Subscribers(bus.TopicShowPopup) == 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return events.Publish(bus.TopicShowPopup, demoPopup(time.Now()))
}

func demoPopup(now time.Time) bus.ShowPopup {
	return bus.ShowPopup{
		Title:          "Focus Mode Active",
		Body:           core.SystemMessage,
		NotificationID: notificationID("", "demo", now),
		AppName:        "Demo",
	}
}

// notificationID keeps an explicit id and otherwise derives the
// focus-mode-<app>-<unix ms> form from app.
func notificationID(id, app string, now time.Time) string {
	if id != "" || app == "" {
		return id
	}
	return fmt.Sprintf("focus-mode-%s-%d", app, now.UnixMilli())
}

func popupConfig(c *config.Config) core.Config {
	return core.Config{
		AutoDismiss:      c.Popup.AutoDismiss.Duration(),
		ReleaseOnTimeout: c.Popup.ReleaseOnTimeout,
	}
}

func uiOptions(c *config.Config) ui.Options {
	return ui.Options{
		Width:          c.Popup.Width,
		ImageMaxWidth:  c.Popup.ImageMaxWidth,
		ImageMaxHeight: c.Popup.ImageMaxHeight,
		ExitAnimation:  c.Popup.ExitAnimation.Duration(),
		Desktop:        c.Notify.Desktop,
		Sound:          c.Notify.Sound,
	}
}
