package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"axquery/internal/browser"
)

// =============================================================================
// BROWSER COMMANDS - Chrome pages as accessibility trees
// =============================================================================

// browserCmd manages browser sessions
var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Manage Chrome pages queried with --session",
}

var browserLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch Chrome and keep it running until interrupted",
	Args:  cobra.NoArgs,
	RunE:  browserLaunch,
}

var browserSessionCmd = &cobra.Command{
	Use:   "session [url]",
	Short: "Open a page in the running browser and print its session id",
	Long: `Opens url in a new tab, or with --target binds a session to a tab that is
already open (target ids are listed by chrome://inspect and /json/list).`,
	Args: cobra.MaximumNArgs(1),
	RunE: browserSession,
}

var browserNavigateCmd = &cobra.Command{
	Use:   "navigate [session-id] [url]",
	Short: "Load a new URL in a session's page",
	Args:  cobra.ExactArgs(2),
	RunE:  browserNavigate,
}

// browserTarget is the --target flag of browser session.
var browserTarget string

var browserListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known browser sessions",
	Args:  cobra.NoArgs,
	RunE:  browserList,
}

var browserCloseCmd = &cobra.Command{
	Use:   "close [session-id]",
	Short: "Close a session's page and forget it",
	Args:  cobra.ExactArgs(1),
	RunE:  browserClose,
}

var errNoBrowser = errors.New("no browser: run `axq browser launch` or set browser.debugger_url")

// browserLaunch launches Chrome and publishes its control URL
func browserLaunch(cmd *cobra.Command, args []string) error {
	logger.Info("Launching browser")

	bc := getBrowserConfig(cfg)
	bc.DebuggerURL = cfg.Browser.DebuggerURL // ignore a stale control file
	mgr := browser.NewSessionManager(bc)
	if err := mgr.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	// Write control URL to file for other commands to use
	control := controlFile(cfg)
	if err := os.MkdirAll(filepath.Dir(control), 0o755); err == nil {
		if err := os.WriteFile(control, []byte(mgr.ControlURL()), 0o644); err != nil {
			logger.Warn("failed to write browser control file", zap.Error(err))
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Browser launched. Control URL: %s\n", mgr.ControlURL())
	fmt.Fprintf(out, "Session store: %s\n", bc.SessionStore)
	fmt.Fprintln(out, "Press Ctrl+C to shutdown")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := os.Remove(control); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove browser control file", zap.Error(err))
	}
	if err := mgr.Shutdown(context.Background()); err != nil {
		logger.Warn("failed to shutdown browser", zap.Error(err))
	}
	return nil
}

// browserSession opens a page in an already running browser, or attaches to
// an open tab when --target is given
func browserSession(cmd *cobra.Command, args []string) error {
	switch {
	case browserTarget != "" && len(args) > 0:
		return errors.New("pass either a URL or --target, not both")
	case browserTarget == "" && len(args) == 0:
		return errors.New("pass a URL to open or --target to attach")
	}
	bc := getBrowserConfig(cfg)
	if bc.DebuggerURL == "" {
		return errNoBrowser
	}

	ctx, cancel := context.WithTimeout(context.Background(), bc.NavigationTimeout()+10*time.Second)
	defer cancel()

	mgr := browser.NewSessionManager(bc)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer mgr.Shutdown(context.Background())

	var sess *browser.Session
	var err error
	if browserTarget != "" {
		logger.Info("Attaching browser session", zap.String("target", browserTarget))
		sess, err = mgr.Attach(ctx, browserTarget)
	} else {
		logger.Info("Creating browser session", zap.String("url", args[0]))
		sess, err = mgr.CreateSession(ctx, args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
	if sess.Title != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Opened %q\n", sess.Title)
	}
	return nil
}

// browserNavigate reattaches to a session's page and loads url in it
func browserNavigate(cmd *cobra.Command, args []string) error {
	bc := getBrowserConfig(cfg)
	mgr := browser.NewSessionManager(bc)
	if err := mgr.Restore(); err != nil {
		return fmt.Errorf("failed to read session store: %w", err)
	}
	id, url := args[0], args[1]
	if _, ok := mgr.GetSession(id); !ok {
		return fmt.Errorf("%w: %s", browser.ErrUnknownSession, id)
	}
	if bc.DebuggerURL == "" {
		return errNoBrowser
	}

	ctx, cancel := context.WithTimeout(context.Background(), bc.NavigationTimeout()+10*time.Second)
	defer cancel()
	defer mgr.Shutdown(context.Background())

	logger.Info("Navigating browser session", zap.String("session", id), zap.String("url", url))
	if err := mgr.Navigate(ctx, id, url); err != nil {
		return err
	}
	s, _ := mgr.GetSession(id)
	if s.Title != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Navigated %s to %s (%q)\n", id, url, s.Title)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Navigated %s to %s\n", id, url)
	}
	return nil
}

// browserList prints persisted sessions without connecting to Chrome
func browserList(cmd *cobra.Command, args []string) error {
	mgr := browser.NewSessionManager(getBrowserConfig(cfg))
	if err := mgr.Restore(); err != nil {
		return fmt.Errorf("failed to read session store: %w", err)
	}

	sessions := mgr.List()
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No browser sessions.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tURL")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Status, s.CreatedAt.Format(time.DateTime), s.URL)
	}
	return tw.Flush()
}

// browserClose reattaches to a session's page and closes it
func browserClose(cmd *cobra.Command, args []string) error {
	bc := getBrowserConfig(cfg)
	mgr := browser.NewSessionManager(bc)
	if err := mgr.Restore(); err != nil {
		return fmt.Errorf("failed to read session store: %w", err)
	}
	id := args[0]
	if _, ok := mgr.GetSession(id); !ok {
		return fmt.Errorf("%w: %s", browser.ErrUnknownSession, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Without a browser the record is only dropped from the store.
	if bc.DebuggerURL != "" {
		if _, err := mgr.Page(ctx, id); err != nil {
			logger.Warn("failed to reattach page", zap.String("session", id), zap.Error(err))
		}
		defer mgr.Shutdown(context.Background())
	}
	if err := mgr.CloseSession(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Closed %s\n", id)
	return nil
}
