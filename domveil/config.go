package domveil

import (
	"github.com/hazyhaar/veil/domveil/internal/config"
)

// Config is the top-level domveil configuration. Re-exported from internal.
type Config = config.Config

// MarkerConfig names the classes echoed onto identified nodes.
type MarkerConfig = config.MarkerConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// BrowserConfig controls the live Chrome host.
type BrowserConfig = config.BrowserConfig

// HTTPConfig controls the controller HTTP transport.
type HTTPConfig = config.HTTPConfig

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
