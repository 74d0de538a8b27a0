package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axquery/internal/command"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	limits := command.DefaultLimits()

	assert.Equal(t, limits.MaxDepth, cfg.Traversal.MaxDepth)
	assert.Equal(t, limits.MaxNodes, cfg.Collect.MaxNodes)
	assert.Equal(t, "records", cfg.Collect.Output)
	assert.True(t, cfg.Traversal.StrictChildren)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "axq.yaml")

	cfg := DefaultConfig()
	cfg.Traversal.MaxDepth = 7
	cfg.Collect.Attributes = []string{"value", "title"}
	cfg.Browser.DebuggerURL = "ws://127.0.0.1:9222/devtools/browser/x"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Traversal.MaxDepth)
	assert.Equal(t, []string{"value", "title"}, loaded.Collect.Attributes)
	assert.Equal(t, cfg.Browser.DebuggerURL, loaded.Browser.DebuggerURL)
}

func TestConfig_SaveLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axq.toml")

	cfg := DefaultConfig()
	cfg.Server.QueueSize = 3
	cfg.Fixture.Path = "tree.yaml"
	cfg.Fixture.Watch = true

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[server]")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Server.QueueSize)
	assert.Equal(t, "tree.yaml", loaded.Fixture.Path)
	assert.True(t, loaded.Fixture.Watch)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("traversal:\n  max_depth: 3\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Traversal.MaxDepth)
	assert.Equal(t, DefaultConfig().Collect.MaxNodes, cfg.Collect.MaxNodes)
	assert.Equal(t, "5s", cfg.Traversal.Timeout)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Traversal, cfg.Traversal)
}

func TestLoad_ParseError(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("traversal: [unclosed"), 0644))
	_, err := Load(yamlPath)
	assert.ErrorContains(t, err, "failed to parse config")

	tomlPath := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[traversal\nmax_depth = "), 0644))
	_, err = Load(tomlPath)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative depth", func(c *Config) { c.Traversal.MaxDepth = -1 }, "max_depth"},
		{"negative visits", func(c *Config) { c.Traversal.MaxVisits = -5 }, "max_visits"},
		{"bad timeout", func(c *Config) { c.Traversal.Timeout = "soon" }, "traversal.timeout"},
		{"zero timeout", func(c *Config) { c.Traversal.Timeout = "0s" }, "traversal.timeout"},
		{"zero max nodes", func(c *Config) { c.Collect.MaxNodes = 0 }, "max_nodes"},
		{"bad output", func(c *Config) { c.Collect.Output = "xml" }, "collect.output"},
		{"zero queue", func(c *Config) { c.Server.QueueSize = 0 }, "queue_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConfig_DurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Second, cfg.GetTraversalTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetNavigationTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetShutdownTimeout())
	assert.Equal(t, 200*time.Millisecond, cfg.GetFixtureDebounce())

	cfg.Traversal.Timeout = "garbage"
	cfg.Browser.NavigationTimeout = ""
	cfg.Server.ShutdownTimeout = "x"
	cfg.Fixture.Debounce = "?"
	assert.Equal(t, command.DefaultLimits().Timeout, cfg.GetTraversalTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetNavigationTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetShutdownTimeout())
	assert.Equal(t, 200*time.Millisecond, cfg.GetFixtureDebounce())
}

func TestConfig_Limits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Traversal.MaxDepth = 4
	cfg.Traversal.MaxVisits = 100
	cfg.Traversal.Timeout = "750ms"
	cfg.Traversal.StrictChildren = false
	cfg.Collect.MaxNodes = 12
	cfg.Collect.Output = "facts"

	assert.Equal(t, command.Defaults{
		MaxDepth:       4,
		MaxNodes:       12,
		MaxVisits:      100,
		Timeout:        750 * time.Millisecond,
		StrictChildren: false,
		Output:         command.ShapeFacts,
	}, cfg.Limits())
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{}
	assert.False(t, lc.IsCategoryEnabled("traversal"))
	assert.Equal(t, ".axq", lc.Dir())

	lc.DebugMode = true
	assert.True(t, lc.IsCategoryEnabled("traversal"))

	lc.Categories = map[string]bool{"traversal": false}
	assert.False(t, lc.IsCategoryEnabled("traversal"))
	assert.True(t, lc.IsCategoryEnabled("command"))

	lc.Format = "json"
	lc.StateDir = "/tmp/state"
	opts := lc.Options()
	assert.True(t, opts.JSONFormat)
	assert.True(t, opts.DebugMode)
	assert.Equal(t, "/tmp/state", lc.Dir())
}
