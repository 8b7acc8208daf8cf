// Package config handles asset3d configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all settings.
type Config struct {
	Assets    AssetsConfig    `yaml:"assets"`
	Animation AnimationConfig `yaml:"animation"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AssetsConfig holds the asset loading subsystem settings.
type AssetsConfig struct {
	// Root is the directory load paths are resolved against.
	Root string `yaml:"root"`
	// PropertyKey is the entity property that requests a load.
	PropertyKey string `yaml:"property_key"`
	// LoadedMarker is set on an entity once its load has been accepted.
	LoadedMarker string `yaml:"loaded_marker"`
	Workers      int    `yaml:"workers"`
}

// AnimationConfig holds curve baking settings.
type AnimationConfig struct {
	SampleRate    float64 `yaml:"sample_rate"`
	SlerpRotation bool    `yaml:"slerp_rotation"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Assets: AssetsConfig{
			Root:         ".",
			PropertyKey:  "directx_x",
			LoadedMarker: "scene_loaded",
			Workers:      4,
		},
		Animation: AnimationConfig{
			SampleRate:    60,
			SlerpRotation: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings the subsystem cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Assets.PropertyKey == "" {
		errs = append(errs, errors.New("assets.property_key must not be empty"))
	}
	if c.Assets.LoadedMarker == "" {
		errs = append(errs, errors.New("assets.loaded_marker must not be empty"))
	}
	if c.Assets.PropertyKey != "" && c.Assets.PropertyKey == c.Assets.LoadedMarker {
		errs = append(errs, fmt.Errorf("assets.loaded_marker must differ from property_key %q", c.Assets.PropertyKey))
	}
	if c.Assets.Workers < 1 {
		errs = append(errs, fmt.Errorf("assets.workers must be at least 1, got %d", c.Assets.Workers))
	}
	if c.Animation.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("animation.sample_rate must be positive, got %g", c.Animation.SampleRate))
	}
	return errors.Join(errs...)
}
