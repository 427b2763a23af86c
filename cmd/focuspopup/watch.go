package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ezchuang/focuspopup/internal/dbus"
)

var watchOpts struct {
	format string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print popup signals as they happen",
	Long: `Print Displayed and Dismissed signals from the running host until
interrupted.

Formats:
  plain  one human-readable line per signal (default)
  json   one JSON object per line
  yaml   one YAML document per signal`,
	Annotations: map[string]string{skipConfigAnnotation: ""},
	RunE:        watchRun,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOpts.format, "format", "f", "plain", "Output format: plain, json, yaml")
	rootCmd.AddCommand(watchCmd)
}

func watchRun(cmd *cobra.Command, args []string) error {
	write, err := signalWriter(cmd.OutOrStdout(), watchOpts.format, time.Now)
	if err != nil {
		return err
	}

	client, err := dbus.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	err = client.Watch(ctx, func(s dbus.Signal) {
		if err := write(s); err != nil {
			logger.WithError(err).Warn("failed to write signal")
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// signalWriter returns a func that prints one signal in format.
func signalWriter(w io.Writer, format string, now func() time.Time) (func(dbus.Signal) error, error) {
	switch format {
	case "plain", "":
		return func(s dbus.Signal) error {
			_, err := fmt.Fprintln(w, plainLine(s, now()))
			return err
		}, nil
	case "json":
		enc := json.NewEncoder(w)
		return func(s dbus.Signal) error { return enc.Encode(s) }, nil
	case "yaml":
		return func(s dbus.Signal) error {
			data, err := yaml.Marshal(s)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "---\n%s", data)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (use plain, json or yaml)", format)
	}
}

func plainLine(s dbus.Signal, now time.Time) string {
	switch s.Kind {
	case dbus.KindDisplayed:
		return fmt.Sprintf("displayed  %s  (%s)", s.NotificationID, humanize.RelTime(s.Time(), now, "ago", "from now"))
	default:
		return fmt.Sprintf("%-9s  %s", s.Kind, s.NotificationID)
	}
}
