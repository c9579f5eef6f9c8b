package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vheastro/bkgdata/internal/astro"
)

type Data struct {
	Mask string `yaml:"mask"`
	Cuts string `yaml:"cuts"`
}

type RunMatching struct {
	TimeDelta     float64 `yaml:"time_delta"`     // days
	PointingDelta float64 `yaml:"pointing_delta"` // degrees
}

type Observatory struct {
	Latitude  float64 `yaml:"latitude"`  // degrees, North positive
	Longitude float64 `yaml:"longitude"` // degrees, East positive
	Height    float64 `yaml:"height"`    // meters above sea level
}

type Config struct {
	Data            Data        `yaml:"data"`
	RunMatching     RunMatching `yaml:"run_matching"`
	Observatory     Observatory `yaml:"observatory"`
	Workers         int         `yaml:"workers"`
	CacheSize       int         `yaml:"cache_size"`
	Watch           bool        `yaml:"watch"`
	WatchDebounceMs int         `yaml:"watch_debounce_ms"`
	HTTPAddr        string      `yaml:"http_addr"`
	NATSURL         string      `yaml:"nats_url"`
	LogLevel        string      `yaml:"log_level"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.RunMatching.TimeDelta == 0 {
		c.RunMatching.TimeDelta = 0.2
	}
	if c.RunMatching.PointingDelta == 0 {
		c.RunMatching.PointingDelta = 2.0
	}
	if c.Observatory == (Observatory{}) {
		c.Observatory = Observatory{
			Latitude:  astro.Roque.Lat.Deg(),
			Longitude: astro.Roque.Lon.Deg(),
			Height:    astro.Roque.Height,
		}
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.CacheSize == 0 {
		c.CacheSize = 8
	}
	if c.WatchDebounceMs == 0 {
		c.WatchDebounceMs = 1000
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8089"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RunMatching.TimeDelta < 0 {
		return fmt.Errorf("run_matching.time_delta must be positive, got %g", c.RunMatching.TimeDelta)
	}
	if c.RunMatching.PointingDelta < 0 {
		return fmt.Errorf("run_matching.pointing_delta must be positive, got %g", c.RunMatching.PointingDelta)
	}
	return nil
}

// Location returns the configured observatory site.
func (c *Config) Location() astro.EarthLocation {
	return astro.EarthLocation{
		Lat:    astro.Degrees(c.Observatory.Latitude),
		Lon:    astro.Degrees(c.Observatory.Longitude),
		Height: c.Observatory.Height,
	}
}

// PointingDeltaAngle returns the run-matching pointing limit as an angle.
func (c *Config) PointingDeltaAngle() astro.Angle {
	return astro.Degrees(c.RunMatching.PointingDelta)
}
