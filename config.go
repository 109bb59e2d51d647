package viswatch

import (
	"github.com/hazyhaar/viswatch/internal/config"
)

// Config is the top-level viswatch configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig selects the Chrome instance to drive.
type BrowserConfig = config.BrowserConfig

// CaptureConfig controls screenshots and masking.
type CaptureConfig = config.CaptureConfig

// MatchConfig bounds comparisons.
type MatchConfig = config.MatchConfig

// CompareConfig selects the comparators.
type CompareConfig = config.CompareConfig

// ArtifactsConfig names the files comparisons leave behind.
type ArtifactsConfig = config.ArtifactsConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
