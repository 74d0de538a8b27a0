package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"axquery/internal/config"
	"axquery/internal/metrics"
	"axquery/internal/server"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve JSON commands over HTTP",
	Long: `Serves POST /v1/command with the same JSON as exec, plus GET /metrics
(Prometheus) and GET /healthz. Commands run one at a time against the tree.

With --watch and a fixture, the fixture is reloaded when its file changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// getServerConfig merges the server and fixture config sections with flags.
func getServerConfig(c *config.Config) server.Config {
	sc := server.DefaultConfig()
	if c.Server.Addr != "" {
		sc.Addr = c.Server.Addr
	}
	sc.QueueSize = c.Server.QueueSize
	sc.ShutdownTimeout = c.GetShutdownTimeout()
	sc.WatchFixture = c.Fixture.Watch || serveWatch
	sc.Debounce = c.GetFixtureDebounce()
	if serveAddr != "" {
		sc.Addr = serveAddr
	}
	return sc
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openSource(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	rec := metrics.New()
	sc := getServerConfig(cfg)
	srv := server.New(sc, newExecutor(src, rec), rec)
	if src.fixture != nil {
		srv.WithFixture(src.fixture)
	}

	logger.Info("serving",
		zap.String("addr", sc.Addr),
		zap.Bool("watch", sc.WatchFixture && src.fixture != nil))
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
