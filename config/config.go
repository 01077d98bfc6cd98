// Package config loads the collection engine configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version string   `yaml:"version"`
	Regions []string `yaml:"regions"`
	Storage Storage  `yaml:"storage,omitempty"`
	Server  Server   `yaml:"server,omitempty"`
}

// Storage configures the on-disk store.
type Storage struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Server configures the HTTP front controller.
type Server struct {
	ListenAddr      string `yaml:"listen_addr"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	OTLPEndpoint    string `yaml:"otlp_endpoint,omitempty"`
}

// Default returns a usable configuration for single-region runs.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Regions: []string{"us-east-1"},
		Storage: Storage{
			Path:          ".evo",
			RetentionDays: 8,
		},
		Server: Server{
			ListenAddr:      ":8080",
			IntervalMinutes: 60,
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	for _, region := range c.Regions {
		if strings.TrimSpace(region) == "" {
			return fmt.Errorf("empty region in region list")
		}
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive")
	}
	if c.Server.IntervalMinutes < 0 {
		return fmt.Errorf("interval_minutes cannot be negative")
	}
	return nil
}
