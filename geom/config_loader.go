package geom

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the unified configuration from a YAML file and applies defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	return &config, nil
}

// LoadConfigOrDefault loads path if it exists, otherwise returns the defaults
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// Validate rejects values that cannot be corrected by defaults
func (c *Config) Validate() error {
	if c.Alignment.RankTolerance < 0 {
		return fmt.Errorf("alignment.rankTolerance must not be negative")
	}
	if c.Alignment.MinCorrespondences < 0 {
		return fmt.Errorf("alignment.minCorrespondences must not be negative")
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		return fmt.Errorf("render.width and render.height must not be negative")
	}
	if c.Render.PointRadius < 0 {
		return fmt.Errorf("render.pointRadius must not be negative")
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
