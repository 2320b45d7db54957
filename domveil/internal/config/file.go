// Package config handles domveil configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level domveil configuration.
type Config struct {
	Markers             MarkerConfig  `yaml:"markers"`
	BatchSize           int           `yaml:"batch_size"`
	LongPress           time.Duration `yaml:"long_press"`
	SelectionEndedDelay time.Duration `yaml:"selection_ended_delay"`
	DefaultCategory     string        `yaml:"default_category"`
	Sinks               []SinkConfig  `yaml:"sinks"`
	Browser             BrowserConfig `yaml:"browser"`
	HTTP                HTTPConfig    `yaml:"http"`
}

// MarkerConfig names the classes echoed onto identified nodes.
type MarkerConfig struct {
	IDPrefix string `yaml:"id_prefix"`
	Group    string `yaml:"group"`
	Hidden   string `yaml:"hidden"`
	Revealed string `yaml:"revealed"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | stderr | webhook | journal
	URL  string `yaml:"url"`  // for webhook
	Path string `yaml:"path"` // for journal
}

// BrowserConfig controls the live Chrome host.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Stealth          string   `yaml:"stealth"` // headless | headful
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// HTTPConfig controls the controller HTTP transport.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Markers.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects marker classes that could be read back as element ids or
// confused with each other. Every field must be set.
func (m MarkerConfig) Validate() error {
	for _, c := range []struct{ field, v string }{
		{"id_prefix", m.IDPrefix}, {"group", m.Group}, {"hidden", m.Hidden}, {"revealed", m.Revealed},
	} {
		if c.v == "" || strings.ContainsFunc(c.v, isSpace) {
			return fmt.Errorf("config: markers.%s: %q is not a class name", c.field, c.v)
		}
	}
	if strings.HasPrefix(m.Hidden, m.IDPrefix) {
		return fmt.Errorf("config: markers.hidden %q starts with id_prefix %q", m.Hidden, m.IDPrefix)
	}
	if strings.HasPrefix(m.Revealed, m.IDPrefix) {
		return fmt.Errorf("config: markers.revealed %q starts with id_prefix %q", m.Revealed, m.IDPrefix)
	}
	if m.Group != m.IDPrefix && strings.HasPrefix(m.Group, m.IDPrefix) {
		return fmt.Errorf("config: markers.group %q extends id_prefix %q", m.Group, m.IDPrefix)
	}
	if m.Hidden == m.Revealed || m.Hidden == m.Group || m.Revealed == m.Group {
		return fmt.Errorf("config: markers: group, hidden and revealed must differ")
	}
	return nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

func (c *Config) validate() error {
	for i, s := range c.Sinks {
		switch s.Type {
		case "", "stdout", "stderr":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook requires url", i)
			}
		case "journal":
			if s.Path == "" {
				return fmt.Errorf("config: sinks[%d]: journal requires path", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Markers.IDPrefix == "" {
		c.Markers.IDPrefix = "VeilElement"
	}
	if c.Markers.Group == "" {
		c.Markers.Group = "VeilElement"
	}
	if c.Markers.Hidden == "" {
		c.Markers.Hidden = "VeilHidden"
	}
	if c.Markers.Revealed == "" {
		c.Markers.Revealed = "VeilRevealed"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.LongPress <= 0 {
		c.LongPress = 500 * time.Millisecond
	}
	if c.SelectionEndedDelay <= 0 {
		c.SelectionEndedDelay = 10 * time.Millisecond
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = "harmless"
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "" {
			c.Sinks[i].Type = "stdout"
		}
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"font", "media"}
	}
}
