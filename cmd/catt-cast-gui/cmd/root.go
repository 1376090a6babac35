// Package cmd implements the catt-cast-gui command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergosteur/catt-cast-gui/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Set with -ldflags at release time.
var (
	version string
	build   string
)

var (
	cfgFile  string
	logLevel string
	backend  string

	cfg *config.Config
)

// rootCmd starts the interactive remote when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "catt-cast-gui [reference]",
	Short: "Terminal remote for Chromecast receivers",
	Long: `catt-cast-gui drives Chromecast receivers through the catt tool or a
native Cast v2 connection.

Without a subcommand it opens the interactive remote. An optional
reference (URL, video ID or local file) prefills the media field.

Settings live in the user config directory and can be overridden with
CATT_CAST_GUI_* environment variables, for example:
  CATT_CAST_GUI_RELAY_HOST=pipedapi.example.org catt-cast-gui`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}

	fmt.Fprintf(os.Stderr, "Encountered error(s): %s\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/catt-cast-gui/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "casting backend (catt, native)")
}

// loadConfig reads the settings file and applies explicit flag overrides.
func loadConfig(cmd *cobra.Command) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.GetAppConfig()
	}
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	flags := cmd.Flags()
	if changed(flags, "log-level") {
		cfg.Log.Level = logLevel
	}
	if changed(flags, "backend") {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid settings")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// consoleLog is the log writer for one-shot commands.
func consoleLog() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
}

// fileLog opens the log file used while the terminal belongs to the
// interactive remote.
func fileLog() (io.WriteCloser, error) {
	path := cfg.Log.File
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "debug.log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// changed reports whether any of the named flags was set explicitly.
func changed(fs *pflag.FlagSet, names ...string) bool {
	for _, n := range names {
		if fs.Changed(n) {
			return true
		}
	}
	return false
}
