package config

import "axquery/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" toml:"level"`           // debug, info, warn, error
	Format     string          `yaml:"format" toml:"format"`         // json, text
	DebugMode  bool            `yaml:"debug_mode" toml:"debug_mode"` // Master toggle - false = no logging
	Categories map[string]bool `yaml:"categories" toml:"categories"` // Per-category toggles
	StateDir   string          `yaml:"state_dir" toml:"state_dir"`   // logs go to <state_dir>/logs
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false.
// Returns true if debug_mode is true and category is enabled (or not specified).
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Options converts the section for logging.Initialize.
func (c *LoggingConfig) Options() logging.Options {
	return logging.Options{
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
		Level:      c.Level,
		JSONFormat: c.Format == "json",
	}
}

// Dir returns the state directory, defaulting to ".axq".
func (c *LoggingConfig) Dir() string {
	if c.StateDir == "" {
		return ".axq"
	}
	return c.StateDir
}
