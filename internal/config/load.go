package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Backend: BackendSim}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies defaults and environment
// overrides, and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{Timeouts: DefaultTimeouts()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSim
	}
	if c.Timeouts == nil {
		c.Timeouts = DefaultTimeouts()
	}
	c.Timeouts.ApplyEnv()

	if c.HCloud.Token == "" {
		c.HCloud.Token = os.Getenv("HCLOUD_TOKEN")
	}
	if c.HCloud.CatalogLabel == "" {
		c.HCloud.CatalogLabel = "vcdflow.io/catalog"
	}
	if c.HCloud.ServerType == "" {
		c.HCloud.ServerType = "cx22"
	}
	if len(c.HCloud.Catalogs) == 0 {
		c.HCloud.Catalogs = []string{"private"}
	}
	if c.HCloud.PollWorkers == 0 {
		c.HCloud.PollWorkers = 4
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "vcdflow"
	}
	if c.Tracing.Service == "" {
		c.Tracing.Service = "vcdflow"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
}

// ShapeCatalog returns the configured shapes, or the built-in grid when none
// are configured.
func (c *Config) ShapeCatalog() (ShapeCatalog, error) {
	if len(c.Shapes) == 0 {
		return DefaultShapeCatalog(), nil
	}
	return NewShapeCatalog(c.Shapes)
}
