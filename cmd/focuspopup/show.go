package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ezchuang/focuspopup/internal/core"
	"github.com/ezchuang/focuspopup/internal/dbus"
)

const callTimeout = 5 * time.Second

var showOpts struct {
	title     string
	body      string
	id        string
	app       string
	media     string
	mediaType string
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Raise a popup on the running host",
	Long: `Raise a popup on the running focuspopup host over D-Bus.

When --id is omitted and --app is given, the notification id is generated as
focus-mode-<app>-<unix ms>, which is what lets the host suppress repeats for
the same application. {app} in the body is replaced with --app.`,
	Example: `  focuspopup show --app slack
  focuspopup show --app slack --media ~/Pictures/stop.png`,
	Annotations: map[string]string{skipConfigAnnotation: ""},
	RunE:        showRun,
}

var dismissCmd = &cobra.Command{
	Use:         "dismiss <notification-id>",
	Short:       "Report a notification as dismissed",
	Long:        `Tell the running host that a notification was dismissed elsewhere. The popup closes if it is showing that notification.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipConfigAnnotation: ""},
	RunE:        dismissRun,
}

func init() {
	f := showCmd.Flags()
	f.StringVar(&showOpts.title, "title", "Focus Mode Active", "Popup heading")
	f.StringVar(&showOpts.body, "body", core.SystemMessage, "Popup body, {app} is replaced with the app name")
	f.StringVar(&showOpts.id, "id", "", "Notification id (default: generated from --app)")
	f.StringVar(&showOpts.app, "app", "", "Application name")
	f.StringVar(&showOpts.media, "media", "", "Image path, URL or data URI")
	f.StringVar(&showOpts.mediaType, "media-type", "image", "Media type")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(dismissCmd)
}

func showRun(cmd *cobra.Command, args []string) error {
	client, err := dbus.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := contextWithTimeout(cmd)
	defer cancel()

	id := notificationID(showOpts.id, showOpts.app, time.Now())
	mediaType := ""
	if showOpts.media != "" {
		mediaType = showOpts.mediaType
	}

	err = client.Show(ctx, showOpts.title, showOpts.body, id, showOpts.app, mediaType, showOpts.media)
	if err != nil {
		return hostError(err)
	}
	logger.WithField("notification_id", id).Debug("popup requested")
	return nil
}

func dismissRun(cmd *cobra.Command, args []string) error {
	client, err := dbus.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := contextWithTimeout(cmd)
	defer cancel()

	if err := client.Dismiss(ctx, args[0]); err != nil {
		return hostError(err)
	}
	return nil
}

func hostError(err error) error {
	if errors.Is(err, dbus.ErrNotRunning) {
		return fmt.Errorf("%w (start it with 'focuspopup run')", err)
	}
	return err
}

// contextWithTimeout bounds a single D-Bus call.
func contextWithTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, callTimeout)
}
