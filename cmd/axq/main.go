// Package main implements the axq CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"axquery/internal/config"
	"axquery/internal/logging"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	fixturePath string
	sessionID   string
	timeout     time.Duration

	// Loaded in PersistentPreRunE
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// errCommandFailed marks a command that ran and reported failure in its
// response. The response has already been printed.
var errCommandFailed = errors.New("command failed")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "axq",
	Short: "Locate, inspect and drive accessibility trees",
	Long: `axq queries accessibility trees with attribute locators.

A tree comes from a fixture file (JSON or HTML) given with --fixture, or from
a live Chrome page tracked as a browser session given with --session.

Commands can be built from flags (find, collect, describe, act, set), read as
JSON (exec), or served over HTTP (serve).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		applyConfigDefaults()

		if err := logging.Initialize(cfg.Logging.Dir(), cfg.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("axq %s: config=%s fixture=%q session=%q", cmd.Name(), configPath, fixturePath, sessionID)
		if err := logging.InitAudit(); err != nil {
			logger.Warn("audit log unavailable", zap.Error(err))
			logging.BootWarn("audit log unavailable: %v", err)
		}
		logger.Debug("config loaded",
			zap.String("path", configPath),
			zap.Int("max_depth", cfg.Traversal.MaxDepth),
			zap.Int("max_nodes", cfg.Collect.MaxNodes))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// applyConfigDefaults fills the tree source from the config when neither
// --fixture nor --session was given.
func applyConfigDefaults() {
	if fixturePath == "" && sessionID == "" {
		fixturePath = cfg.Fixture.Path
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "axq.yaml", "Config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&fixturePath, "fixture", "f", "", "Fixture tree (.yaml, .json, .html or .htm)")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "Browser session id")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-command time budget (default from config)")

	// Query subcommands
	registerQueryFlags()

	// Browser subcommands
	browserCmd.AddCommand(browserLaunchCmd)
	browserCmd.AddCommand(browserSessionCmd)
	browserCmd.AddCommand(browserNavigateCmd)
	browserCmd.AddCommand(browserListCmd)
	browserCmd.AddCommand(browserCloseCmd)

	browserSessionCmd.Flags().StringVar(&browserTarget, "target", "", "Attach to an open tab by target id instead of opening a URL")

	// Serve flags
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload the fixture when the file changes")

	// Add commands to root
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(actCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(browserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errCommandFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
