package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"axquery/internal/command"
)

// Config holds all axquery configuration.
type Config struct {
	// Traversal limits applied when a command leaves them unset
	Traversal TraversalConfig `yaml:"traversal" toml:"traversal"`

	// Collection defaults
	Collect CollectConfig `yaml:"collect" toml:"collect"`

	// Logging
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Live Chrome backend
	Browser BrowserConfig `yaml:"browser" toml:"browser"`

	// Local HTTP endpoint
	Server ServerConfig `yaml:"server" toml:"server"`

	// Fixture backend
	Fixture FixtureConfig `yaml:"fixture" toml:"fixture"`
}

// TraversalConfig bounds every walk.
type TraversalConfig struct {
	MaxDepth       int    `yaml:"max_depth" toml:"max_depth"`
	MaxVisits      int    `yaml:"max_visits" toml:"max_visits"` // step budget, 0 = unbounded
	Timeout        string `yaml:"timeout" toml:"timeout"`
	StrictChildren bool   `yaml:"strict_children" toml:"strict_children"`
}

// CollectConfig configures collect and describe.
type CollectConfig struct {
	MaxNodes   int      `yaml:"max_nodes" toml:"max_nodes"`
	Attributes []string `yaml:"attributes" toml:"attributes"`
	Output     string   `yaml:"output" toml:"output"` // records, text, facts
}

// BrowserConfig configures the Chrome accessibility backend.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url" toml:"debugger_url"`
	Launch            []string `yaml:"launch" toml:"launch"`
	Headless          bool     `yaml:"headless" toml:"headless"`
	ViewportWidth     int      `yaml:"viewport_width" toml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height" toml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout" toml:"navigation_timeout"`
	SessionStore      string   `yaml:"session_store" toml:"session_store"`
}

// ServerConfig configures `axq serve`.
type ServerConfig struct {
	Addr            string `yaml:"addr" toml:"addr"`
	QueueSize       int    `yaml:"queue_size" toml:"queue_size"`
	ShutdownTimeout string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// FixtureConfig configures the in-memory tree backend.
type FixtureConfig struct {
	Path     string `yaml:"path" toml:"path"`
	Watch    bool   `yaml:"watch" toml:"watch"`
	Debounce string `yaml:"debounce" toml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	limits := command.DefaultLimits()
	return &Config{
		Traversal: TraversalConfig{
			MaxDepth:       limits.MaxDepth,
			MaxVisits:      limits.MaxVisits,
			Timeout:        limits.Timeout.String(),
			StrictChildren: limits.StrictChildren,
		},
		Collect: CollectConfig{
			MaxNodes: limits.MaxNodes,
			Output:   string(limits.Output),
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1280,
			ViewportHeight:    800,
			NavigationTimeout: "30s",
			SessionStore:      ".axq/sessions.json",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8765",
			QueueSize:       64,
			ShutdownTimeout: "5s",
		},
		Fixture: FixtureConfig{
			Debounce: "200ms",
		},
	}
}

// Load reads configuration from a YAML or TOML file, chosen by extension.
// A missing file yields the defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration as YAML or TOML, chosen by extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AXQ_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Traversal.MaxDepth = n
		}
	}
	if v := os.Getenv("AXQ_TIMEOUT"); v != "" {
		c.Traversal.Timeout = v
	}
	if v := os.Getenv("AXQ_MAX_NODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Collect.MaxNodes = n
		}
	}
	if v := os.Getenv("AXQ_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("AXQ_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}

// GetTraversalTimeout returns the per-command budget as a duration.
func (c *Config) GetTraversalTimeout() time.Duration {
	d, err := time.ParseDuration(c.Traversal.Timeout)
	if err != nil {
		return command.DefaultLimits().Timeout
	}
	return d
}

// GetNavigationTimeout returns the browser navigation timeout.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.NavigationTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetShutdownTimeout returns how long the server waits for in-flight work.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetFixtureDebounce returns the fixture watcher debounce interval.
func (c *Config) GetFixtureDebounce() time.Duration {
	d, err := time.ParseDuration(c.Fixture.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// Limits converts the traversal and collect sections into executor defaults.
func (c *Config) Limits() command.Defaults {
	return command.Defaults{
		MaxDepth:       c.Traversal.MaxDepth,
		MaxNodes:       c.Collect.MaxNodes,
		MaxVisits:      c.Traversal.MaxVisits,
		Timeout:        c.GetTraversalTimeout(),
		StrictChildren: c.Traversal.StrictChildren,
		Output:         command.Shape(c.Collect.Output),
	}
}

// ValidOutputs lists the accepted collect output shapes.
var ValidOutputs = []string{string(command.ShapeRecords), string(command.ShapeText), string(command.ShapeFacts)}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Traversal.MaxDepth < 0 {
		return fmt.Errorf("traversal.max_depth must be >= 0, got %d", c.Traversal.MaxDepth)
	}
	if c.Traversal.MaxVisits < 0 {
		return fmt.Errorf("traversal.max_visits must be >= 0, got %d", c.Traversal.MaxVisits)
	}
	if d, err := time.ParseDuration(c.Traversal.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid traversal.timeout: %q", c.Traversal.Timeout)
	}
	if c.Collect.MaxNodes <= 0 {
		return fmt.Errorf("collect.max_nodes must be > 0, got %d", c.Collect.MaxNodes)
	}

	validOutput := c.Collect.Output == ""
	for _, o := range ValidOutputs {
		if c.Collect.Output == o {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid collect.output: %s (valid: %v)", c.Collect.Output, ValidOutputs)
	}

	if c.Server.QueueSize <= 0 {
		return fmt.Errorf("server.queue_size must be > 0, got %d", c.Server.QueueSize)
	}
	return nil
}
