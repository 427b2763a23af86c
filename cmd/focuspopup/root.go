// Package main provides the CLI entrypoint for focuspopup.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ezchuang/focuspopup/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const appName = "focuspopup"

// skipConfigAnnotation marks commands that must run without a valid config.
const skipConfigAnnotation = "skip-config"

var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
	}
	logger = logrus.New()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Focus-mode popup for the terminal",
	Long: `focuspopup shows a blocking popup whenever focus mode catches you
opening an application outside your whitelist.

Running focuspopup without a subcommand starts the popup host (same as
'focuspopup run'). Other processes raise and dismiss popups over D-Bus with
'focuspopup show' and 'focuspopup dismiss'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(os.Stderr, globalOpts.verbose, config.DefaultLogLevel)

		if _, skip := cmd.Annotations[skipConfigAnnotation]; skip {
			return nil
		}

		var err error
		cfg, err = config.Load(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogger(os.Stderr, globalOpts.verbose, cfg.Log.Level)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHost(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/focuspopup/config.toml)")
}

// setupLogger configures the shared logrus logger. verbose overrides level.
func setupLogger(out io.Writer, verbose bool, level string) {
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if verbose {
		lvl = logrus.DebugLevel
	}
	logger.SetLevel(lvl)
}

// openLogFile redirects logging to the configured file so it does not draw
// over the TUI. The returned func closes the file.
func openLogFile(c *config.Config) (func(), error) {
	path := c.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	setupLogger(f, globalOpts.verbose, c.Log.Level)
	return func() {
		logger.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

// resolvedConfigPath returns the --config value or the default location.
func resolvedConfigPath() string {
	if globalOpts.configPath != "" {
		return globalOpts.configPath
	}
	return config.ConfigPath()
}
