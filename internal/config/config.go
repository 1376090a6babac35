// Package config loads and stores the application settings with Viper.
// Values come from defaults, the settings file and CATT_CAST_GUI_
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	appDir   = "catt-cast-gui"
	fileName = "settings.yaml"

	// EnvPrefix prefixes environment overrides, e.g. CATT_CAST_GUI_RELAY_HOST.
	EnvPrefix = "CATT_CAST_GUI"

	BackendCatt   = "catt"
	BackendNative = "native"
)

// Config holds all configuration for the application.
type Config struct {
	Backend string      `mapstructure:"backend"`
	Catt    CattConfig  `mapstructure:"catt"`
	Relay   RelayConfig `mapstructure:"relay"`
	Poll    PollConfig  `mapstructure:"poll"`
	Log     LogConfig   `mapstructure:"log"`

	path string
}

// CattConfig configures the external command channel.
type CattConfig struct {
	Path           string        `mapstructure:"path"`
	LocalCastGrace time.Duration `mapstructure:"local_cast_grace"`
}

// RelayConfig configures optional URL resolution through a Piped instance.
type RelayConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Timeout          time.Duration `mapstructure:"timeout"`
	PreferContainers []string      `mapstructure:"prefer_containers"`
	PreferCodecs     []string      `mapstructure:"prefer_codecs"`
}

// PollConfig tunes the status poll coordinator.
type PollConfig struct {
	ResyncInterval  time.Duration `mapstructure:"resync_interval"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
	ConfirmAttempts int           `mapstructure:"confirm_attempts"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
}

// LogConfig selects log verbosity and an optional log file.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// userConfigDir is swapped in tests.
var userConfigDir = os.UserConfigDir

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendCatt)

	v.SetDefault("catt.path", "catt")
	v.SetDefault("catt.local_cast_grace", 3*time.Second)

	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.host", "pipedapi.kavin.rocks")
	v.SetDefault("relay.timeout", 15*time.Second)
	v.SetDefault("relay.prefer_containers", []string{"mp4", "webm"})
	v.SetDefault("relay.prefer_codecs", []string{"h264", "av1", "vp9"})

	v.SetDefault("poll.resync_interval", 15*time.Second)
	v.SetDefault("poll.confirm_interval", 3*time.Second)
	v.SetDefault("poll.confirm_attempts", 5)
	v.SetDefault("poll.tick_interval", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads the settings file at path, or the default location when path
// is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := appPath()
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		path = p
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Load: reading config file: %w", err)
		}
	}

	cfg := &Config{path: path}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("Load: unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: validating config: %w", err)
	}

	return cfg, nil
}

// GetAppConfig loads the settings from the user config directory,
// creating the file with defaults on first run.
func GetAppConfig() (*Config, error) {
	path, err := appPath()
	if err != nil {
		return nil, fmt.Errorf("GetAppConfig: failed to access config path due to error %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("GetAppConfig: %w", err)
		}
		if err := cfg.SaveAppConfig(); err != nil {
			return nil, fmt.Errorf("GetAppConfig: failed to create default config due to error %w", err)
		}
		return cfg, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("GetAppConfig: %w", err)
	}
	return cfg, nil
}

// SaveAppConfig writes the settings back to the file they were loaded from.
func (c *Config) SaveAppConfig() error {
	path := c.path
	if path == "" {
		p, err := appPath()
		if err != nil {
			return fmt.Errorf("SaveAppConfig: failed to access config path due to error %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("SaveAppConfig: failed to create config dir due to error %w", err)
	}

	v := viper.New()
	v.Set("backend", c.Backend)
	v.Set("catt.path", c.Catt.Path)
	v.Set("catt.local_cast_grace", c.Catt.LocalCastGrace.String())
	v.Set("relay.enabled", c.Relay.Enabled)
	v.Set("relay.host", c.Relay.Host)
	v.Set("relay.timeout", c.Relay.Timeout.String())
	v.Set("relay.prefer_containers", c.Relay.PreferContainers)
	v.Set("relay.prefer_codecs", c.Relay.PreferCodecs)
	v.Set("poll.resync_interval", c.Poll.ResyncInterval.String())
	v.Set("poll.confirm_interval", c.Poll.ConfirmInterval.String())
	v.Set("poll.confirm_attempts", c.Poll.ConfirmAttempts)
	v.Set("poll.tick_interval", c.Poll.TickInterval.String())
	v.Set("log.level", c.Log.Level)
	v.Set("log.file", c.Log.File)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("SaveAppConfig: failed save config due to error %w", err)
	}
	c.path = path
	return nil
}

// Path is the settings file this config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendCatt, BackendNative:
	default:
		return fmt.Errorf("backend must be one of: %s, %s", BackendCatt, BackendNative)
	}

	if c.Backend == BackendCatt && strings.TrimSpace(c.Catt.Path) == "" {
		return errors.New("catt.path is required")
	}
	if c.Catt.LocalCastGrace <= 0 {
		return errors.New("catt.local_cast_grace must be positive")
	}
	if c.Relay.Timeout <= 0 {
		return errors.New("relay.timeout must be positive")
	}

	if c.Poll.ResyncInterval <= 0 || c.Poll.ConfirmInterval <= 0 || c.Poll.TickInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.Poll.ConfirmAttempts < 1 {
		return errors.New("poll.confirm_attempts must be at least 1")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return errors.New("log.level must be one of: trace, debug, info, warn, error")
	}

	return nil
}

// Dir is the application directory inside the user config dir.
func Dir() (string, error) {
	oscfg, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("appPath: failed to get config file due to error %w", err)
	}
	return filepath.Join(oscfg, appDir), nil
}

func appPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}
