// Package config handles viswatch configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/viswatch/compare"
	"github.com/hazyhaar/viswatch/geometry"
	"github.com/hazyhaar/viswatch/match"
)

// Config is the top-level viswatch configuration.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Capture   CaptureConfig   `yaml:"capture"`
	Match     MatchConfig     `yaml:"match"`
	Compare   CompareConfig   `yaml:"compare"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Sinks     []SinkConfig    `yaml:"sinks"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Server    ServerConfig    `yaml:"server"`
}

// BrowserConfig selects the Chrome instance to drive.
type BrowserConfig struct {
	Remote   string `yaml:"remote"`  // DevTools URL; empty launches a local Chrome
	Stealth  string `yaml:"stealth"` // headless | headful
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	StartURL string `yaml:"start_url"`
	// Device emulates a mobile device by name ("iPhone X", "Pixel 2").
	// An emulated device is handled as a flat-tree surface.
	Device string `yaml:"device"`
}

// CaptureConfig controls screenshots and masking.
type CaptureConfig struct {
	Density    string `yaml:"density"` // os | query | <factor>
	BlurRadius int    `yaml:"blur_radius"`
}

// MatchConfig bounds comparisons.
type MatchConfig struct {
	Attempts  int           `yaml:"attempts"`
	Interval  time.Duration `yaml:"interval"`
	MinPoints int           `yaml:"min_points"`
	Tolerance float64       `yaml:"tolerance"`
}

// CompareConfig selects the comparators.
type CompareConfig struct {
	Differ    string  `yaml:"differ"`   // pixel | magick
	Searcher  string  `yaml:"searcher"` // ncc | orb
	Threshold int     `yaml:"threshold"`
	Fuzz      string  `yaml:"fuzz"`
	Binary    string  `yaml:"binary"`
	MinScore  float64 `yaml:"min_score"`
}

// ArtifactsConfig names the files comparisons leave behind.
type ArtifactsConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
	// Templates is the only directory reference images are read from.
	Templates string `yaml:"templates"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type    string `yaml:"type"`    // stdout | webhook | htmllog | ledger
	URL     string `yaml:"url"`     // webhook
	Path    string `yaml:"path"`    // htmllog
	Retries int    `yaml:"retries"` // webhook
}

// LedgerConfig locates the SQLite result ledger. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
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
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.Width <= 0 {
		c.Browser.Width = 1280
	}
	if c.Browser.Height <= 0 {
		c.Browser.Height = 800
	}
	if c.Capture.Density == "" {
		c.Capture.Density = "os"
	}
	if c.Capture.BlurRadius <= 0 {
		c.Capture.BlurRadius = 50
	}
	if c.Match.Attempts <= 0 {
		c.Match.Attempts = 3
	}
	if c.Match.Interval <= 0 {
		c.Match.Interval = time.Second
	}
	if c.Match.MinPoints <= 0 {
		c.Match.MinPoints = 10
	}
	if c.Compare.Differ == "" {
		c.Compare.Differ = "pixel"
	}
	if c.Compare.Searcher == "" {
		c.Compare.Searcher = "ncc"
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "viswatch-out"
	}
	if c.Artifacts.Prefix == "" {
		c.Artifacts.Prefix = match.DefaultPrefix
	}
	if c.Artifacts.Templates == "" {
		c.Artifacts.Templates = "."
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8089"
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
	}
}

// Validate reports configuration errors that defaults cannot fix.
func (c *Config) Validate() error {
	var errs []error
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		errs = append(errs, fmt.Errorf("browser.stealth: %q is neither headless nor headful", c.Browser.Stealth))
	}
	if _, err := geometry.ParseDensity(c.Capture.Density); err != nil {
		errs = append(errs, fmt.Errorf("capture.density: %w", err))
	}
	if c.Match.Tolerance < 0 {
		errs = append(errs, errors.New("match.tolerance: negative"))
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("sinks[%d]: webhook without url", i))
			}
		case "htmllog":
		case "ledger":
			if c.Ledger.Path == "" {
				errs = append(errs, fmt.Errorf("sinks[%d]: ledger sink without ledger.path", i))
			}
		default:
			errs = append(errs, fmt.Errorf("sinks[%d]: unknown type %q", i, s.Type))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DensityPolicy returns the configured density policy.
func (c CaptureConfig) DensityPolicy() (geometry.Density, error) {
	return geometry.ParseDensity(c.Density)
}

// SurfaceDensity is the density policy for the configured surface. An
// emulated device sets its own deviceScaleFactor, so the OS default is
// replaced by querying the page. A fixed factor is kept as given.
func (c *Config) SurfaceDensity() (geometry.Density, error) {
	d, err := c.Capture.DensityPolicy()
	if err != nil {
		return d, err
	}
	if c.Browser.Device != "" && d.Mode == geometry.DensityOS {
		d = geometry.Density{Mode: geometry.DensityQuery}
	}
	return d, nil
}

// Policy returns the retry policy.
func (c MatchConfig) Policy() match.Policy {
	return match.Policy{MaxAttempts: c.Attempts, Interval: c.Interval}
}

// Options returns the comparator options.
func (c CompareConfig) Options() compare.Options {
	return compare.Options{Threshold: c.Threshold, Fuzz: c.Fuzz, Binary: c.Binary, MinScore: c.MinScore}
}
