package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("numeric limits", func(t *testing.T) {
		t.Setenv("AXQ_MAX_DEPTH", "9")
		t.Setenv("AXQ_MAX_NODES", "42")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 9, cfg.Traversal.MaxDepth)
		assert.Equal(t, 42, cfg.Collect.MaxNodes)
	})

	t.Run("unparseable numbers are ignored", func(t *testing.T) {
		t.Setenv("AXQ_MAX_DEPTH", "deep")
		t.Setenv("AXQ_MAX_NODES", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig().Traversal.MaxDepth, cfg.Traversal.MaxDepth)
		assert.Equal(t, DefaultConfig().Collect.MaxNodes, cfg.Collect.MaxNodes)
	})

	t.Run("timeout and debugger url", func(t *testing.T) {
		t.Setenv("AXQ_TIMEOUT", "2s")
		t.Setenv("AXQ_DEBUGGER_URL", "ws://localhost:9222/devtools/browser/abc")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "2s", cfg.Traversal.Timeout)
		assert.Equal(t, "ws://localhost:9222/devtools/browser/abc", cfg.Browser.DebuggerURL)
	})

	t.Run("debug toggle", func(t *testing.T) {
		t.Setenv("AXQ_DEBUG", "true")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.True(t, cfg.Logging.DebugMode)

		t.Setenv("AXQ_DEBUG", "nope")
		cfg = DefaultConfig()
		cfg.applyEnvOverrides()
		assert.False(t, cfg.Logging.DebugMode)
	})

	t.Run("applied by Load", func(t *testing.T) {
		t.Setenv("AXQ_MAX_DEPTH", "2")
		cfg, err := Load(t.TempDir() + "/missing.yaml")
		assert.NoError(t, err)
		assert.Equal(t, 2, cfg.Traversal.MaxDepth)
	})
}
