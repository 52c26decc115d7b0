// Package config loads the flowgrid YAML configuration file.
//
// Every field has a default, so a missing file is not an error. Command
// line flags override the values loaded here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/engine"
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/game"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "flowgrid.yaml"

// Config is the contents of the config file.
type Config struct {
	// Database is the SQLite file holding saves and journals.
	Database string `yaml:"database"`

	// Catalog is an optional CUE file replacing the embedded presets.
	Catalog string `yaml:"catalog,omitempty"`

	// MapRadius is the half-width of the global region of new games.
	MapRadius int64 `yaml:"map_radius"`

	// StartingInventory is what a new game starts with, by material name.
	StartingInventory map[string]int64 `yaml:"starting_inventory"`

	// AutosaveEvery is the number of edits between save document rewrites.
	AutosaveEvery int `yaml:"autosave_every"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	View ViewConfig `yaml:"view"`
}

// ViewConfig configures the view stream server.
type ViewConfig struct {
	// Listen is the address serve binds.
	Listen string `yaml:"listen"`

	// MaxMessageBytes bounds a client request frame.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Database:          "flowgrid.db",
		MapRadius:         game.DefaultMapRadius,
		StartingInventory: map[string]int64{"iron": 100},
		AutosaveEvery:     engine.DefaultAutosaveEvery,
		LogLevel:          "info",
		View: ViewConfig{
			Listen:          "127.0.0.1:8420",
			MaxMessageBytes: 4096,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// when path is DefaultPath or empty, and an error otherwise.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	cfg, err = Parse(b)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	// decoding merges into a non-nil map; start empty so the file replaces it
	cfg.StartingInventory = nil
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := Default()
	c.Database = strings.TrimSpace(c.Database)
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.MapRadius == 0 {
		c.MapRadius = d.MapRadius
	}
	if c.StartingInventory == nil {
		c.StartingInventory = d.StartingInventory
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.View.Listen == "" {
		c.View.Listen = d.View.Listen
	}
	if c.View.MaxMessageBytes == 0 {
		c.View.MaxMessageBytes = d.View.MaxMessageBytes
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.MapRadius < 2 {
		return fmt.Errorf("map_radius must be at least 2, got %d", c.MapRadius)
	}
	if c.AutosaveEvery < 0 {
		return fmt.Errorf("autosave_every must not be negative, got %d", c.AutosaveEvery)
	}
	if _, err := c.Inventory(); err != nil {
		return fmt.Errorf("starting_inventory: %w", err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.View.MaxMessageBytes < 0 {
		return fmt.Errorf("view.max_message_bytes must not be negative")
	}
	return nil
}

// Inventory returns the starting inventory as amounts.
func (c Config) Inventory() (flow.Amounts, error) {
	out := flow.Amounts{}
	for name, n := range c.StartingInventory {
		m, err := flow.ParseMaterial(name)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative amount of %s", name)
		}
		if n > 0 {
			out[m] = n
		}
	}
	return out, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// LoadCatalog returns the configured preset catalog.
func (c Config) LoadCatalog() (*catalog.Catalog, error) {
	if c.Catalog == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(c.Catalog)
}

// GameOptions returns the options new games are created with.
func (c Config) GameOptions() ([]game.Option, error) {
	inv, err := c.Inventory()
	if err != nil {
		return nil, err
	}
	return []game.Option{game.WithMapRadius(c.MapRadius), game.WithInventory(inv)}, nil
}
