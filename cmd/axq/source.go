package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"axquery/internal/browser"
	"axquery/internal/command"
	"axquery/internal/config"
	"axquery/internal/metrics"
	"axquery/internal/server"
)

// treeSource is where commands read their tree from.
type treeSource struct {
	roots   command.RootProvider
	fixture *server.FixtureRoot // nil for browser sessions
	close   func()
}

// openSource resolves --fixture or --session into a root provider.
func openSource(ctx context.Context) (*treeSource, error) {
	switch {
	case fixturePath != "" && sessionID != "":
		return nil, errors.New("--fixture and --session are mutually exclusive")

	case fixturePath != "":
		root, err := server.NewFixtureRoot(fixturePath)
		if err != nil {
			return nil, err
		}
		logger.Debug("fixture loaded",
			zap.String("path", root.Path()),
			zap.Int("nodes", root.Tree().Len()))
		return &treeSource{roots: root, fixture: root, close: func() {}}, nil

	case sessionID != "":
		mgr := browser.NewSessionManager(getBrowserConfig(cfg))
		if err := mgr.Restore(); err != nil {
			logger.Warn("failed to restore sessions", zap.Error(err))
		}
		if _, ok := mgr.GetSession(sessionID); !ok {
			return nil, fmt.Errorf("%w: %s", browser.ErrUnknownSession, sessionID)
		}
		return &treeSource{
			roots: mgr.RootProvider(sessionID),
			close: func() {
				if err := mgr.Shutdown(ctx); err != nil {
					logger.Warn("browser shutdown", zap.Error(err))
				}
			},
		}, nil

	default:
		return nil, errors.New("no tree: pass --fixture, --session or set fixture.path in the config")
	}
}

// newExecutor applies config limits and the --timeout override.
func newExecutor(src *treeSource, rec *metrics.Recorder) *command.Executor {
	limits := cfg.Limits()
	if timeout > 0 {
		limits.Timeout = timeout
	}
	return command.NewExecutor(src.roots, command.WithDefaults(limits), command.WithMetrics(rec))
}

// getBrowserConfig converts the browser section. Without a debugger_url, the
// control file written by `axq browser launch` is used when present.
func getBrowserConfig(c *config.Config) browser.Config {
	bc := browser.DefaultConfig()
	bc.DebuggerURL = c.Browser.DebuggerURL
	bc.Launch = c.Browser.Launch
	bc.Headless = c.Browser.Headless
	bc.ViewportWidth = c.Browser.ViewportWidth
	bc.ViewportHeight = c.Browser.ViewportHeight
	bc.NavigationTimeoutMs = int(c.GetNavigationTimeout().Milliseconds())
	bc.SessionStore = c.Browser.SessionStore

	if bc.DebuggerURL == "" {
		if data, err := os.ReadFile(controlFile(c)); err == nil {
			bc.DebuggerURL = strings.TrimSpace(string(data))
		}
	}
	return bc
}

// controlFile holds the DevTools URL of a browser started by `axq browser launch`.
func controlFile(c *config.Config) string {
	return filepath.Join(c.Logging.Dir(), "browser", "control.txt")
}
