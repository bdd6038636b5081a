// Package config loads timer profiles and operator settings.
//
// Precedence: built-in defaults, then the YAML file (if present), then
// environment overrides. Command-line flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/Cockpit/internal/models"
	"github.com/BTreeMap/Cockpit/internal/util"
)

// Environment variables read by ApplyEnv.
const (
	EnvAutoAdvance    = "COCKPIT_AUTO_ADVANCE"
	EnvDefaultProfile = "COCKPIT_DEFAULT_PROFILE"
)

// SourceBuiltin marks a config that was not read from any file.
const SourceBuiltin = "builtin"

// Config is the resolved profile registry and settings.
type Config struct {
	Profiles map[string]models.PhaseProfile
	Settings models.Settings

	source string
}

// Source returns the file the config was loaded from, or SourceBuiltin.
func (c *Config) Source() string {
	return c.source
}

// ProfileNames returns the profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fileSettings mirrors models.Settings with pointers so an omitted key keeps
// the default instead of zeroing it.
type fileSettings struct {
	DefaultProfile     *string `yaml:"default_profile"`
	AutoAdvance        *bool   `yaml:"auto_advance"`
	BindDefaultType    *string `yaml:"bind_default_type"`
	RequeueUnconfirmed *bool   `yaml:"requeue_unconfirmed"`
	ConfirmBlocks      *bool   `yaml:"confirm_blocks"`
	DayStartCron       *string `yaml:"day_start_cron"`
}

type fileConfig struct {
	Profiles map[string]models.PhaseProfile `yaml:"profiles"`
	Settings fileSettings                   `yaml:"settings"`
}

// DefaultProfiles returns the built-in profile registry.
func DefaultProfiles() map[string]models.PhaseProfile {
	return map[string]models.PhaseProfile{
		"classic": {FocusMinutes: 25, ShortBreakMinutes: 5, LongBreakMinutes: 15, CyclesDefault: 4, LongBreakEvery: 4},
		"short":   {FocusMinutes: 15, ShortBreakMinutes: 3, LongBreakMinutes: 10, CyclesDefault: 4, LongBreakEvery: 4},
		"deep":    {FocusMinutes: 50, ShortBreakMinutes: 10, LongBreakMinutes: 30, CyclesDefault: 3, LongBreakEvery: 3},
	}
}

// DefaultSettings returns the built-in operator settings.
func DefaultSettings() models.Settings {
	return models.Settings{
		DefaultProfile:     "classic",
		AutoAdvance:        true,
		BindDefaultType:    "task",
		RequeueUnconfirmed: true,
		ConfirmBlocks:      true,
	}
}

// Default returns the built-in config.
func Default() *Config {
	cfg := &Config{Profiles: DefaultProfiles(), Settings: DefaultSettings(), source: SourceBuiltin}
	cfg.normalize()
	return cfg
}

// Load reads path and validates the result. A missing file yields the
// built-in defaults; an empty path does too.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		slog.Debug("config.Load: no config path, using built-in defaults")
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("config.Load: config file not found, using built-in defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := cfg.merge(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.source = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("config.Load: loaded", "path", path, "profiles", len(cfg.Profiles), "default_profile", cfg.Settings.DefaultProfile)
	return cfg, nil
}

// Parse builds a config from YAML bytes layered over the built-in defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.merge(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays YAML onto c. A non-empty profiles map replaces the built-in
// registry wholesale; settings are merged key by key.
func (c *Config) merge(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if fc.Profiles != nil {
		if len(fc.Profiles) == 0 {
			return ErrNoProfiles
		}
		c.Profiles = fc.Profiles
	}

	s := fc.Settings
	if s.DefaultProfile != nil {
		c.Settings.DefaultProfile = *s.DefaultProfile
	}
	if s.AutoAdvance != nil {
		c.Settings.AutoAdvance = *s.AutoAdvance
	}
	if s.BindDefaultType != nil {
		c.Settings.BindDefaultType = *s.BindDefaultType
	}
	if s.RequeueUnconfirmed != nil {
		c.Settings.RequeueUnconfirmed = *s.RequeueUnconfirmed
	}
	if s.ConfirmBlocks != nil {
		c.Settings.ConfirmBlocks = *s.ConfirmBlocks
	}
	if s.DayStartCron != nil {
		c.Settings.DayStartCron = *s.DayStartCron
	}
	c.normalize()
	return nil
}

func (c *Config) normalize() {
	for name, p := range c.Profiles {
		p.Name = name
		p.Normalize()
		c.Profiles[name] = p
	}
}

// ApplyEnv applies environment overrides on top of the loaded file.
func (c *Config) ApplyEnv() {
	c.Settings.AutoAdvance = util.ParseBoolEnv(EnvAutoAdvance, c.Settings.AutoAdvance)
	if name := os.Getenv(EnvDefaultProfile); name != "" {
		c.Settings.DefaultProfile = name
	}
}

// Validate checks every profile and that the default profile exists.
func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return ErrNoProfiles
	}
	for _, name := range c.ProfileNames() {
		if err := c.Profiles[name].Validate(); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}
	if _, ok := c.Profiles[c.Settings.DefaultProfile]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDefaultProfile, c.Settings.DefaultProfile)
	}
	return nil
}
