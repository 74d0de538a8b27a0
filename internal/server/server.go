// Package server exposes the command executor over HTTP. Requests are
// serialized through a single worker goroutine that owns the tree.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"axquery/internal/command"
	"axquery/internal/logging"
	"axquery/internal/metrics"
	"axquery/internal/protocol"
)

const maxRequestBytes = 1 << 20

// Config holds server configuration.
type Config struct {
	Addr            string
	QueueSize       int
	ShutdownTimeout time.Duration

	// Fixture reloading; only used with a FixtureRoot.
	WatchFixture bool
	Debounce     time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8765",
		QueueSize:       64,
		ShutdownTimeout: 5 * time.Second,
		Debounce:        200 * time.Millisecond,
	}
}

// Server serves POST /v1/command, GET /metrics and GET /healthz.
type Server struct {
	cfg     Config
	exec    *command.Executor
	worker  *Worker
	metrics *metrics.Recorder
	fixture *FixtureRoot
}

// New creates a server. rec may be nil.
func New(cfg Config, exec *command.Executor, rec *metrics.Recorder) *Server {
	return &Server{
		cfg:     cfg,
		exec:    exec,
		worker:  NewWorker(cfg.QueueSize),
		metrics: rec,
	}
}

// WithFixture enables reloads of root when cfg.WatchFixture is set. root must
// be the provider the executor was built with.
func (s *Server) WithFixture(root *FixtureRoot) *Server {
	s.fixture = root
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/command", s.handleCommand)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Run listens on cfg.Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the worker, the optional fixture watcher and the HTTP server on
// ln. It returns after a graceful shutdown once ctx is done, or on the first
// component error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var fw *FixtureWatcher
	if s.fixture != nil && s.cfg.WatchFixture {
		var err error
		fw, err = NewFixtureWatcher(s.fixture.Path(), s.cfg.Debounce, func() { s.reload(gctx) })
		if err != nil {
			ln.Close()
			return err
		}
	}

	g.Go(func() error {
		return s.worker.Run(gctx)
	})
	if fw != nil {
		g.Go(func() error {
			return fw.Run(gctx)
		})
	}

	g.Go(func() error {
		logging.Server("listening on %s", ln.Addr())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		logging.Server("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// reload swaps the fixture on the worker so no command sees a half-built tree.
func (s *Server) reload(ctx context.Context) {
	var err error
	if doErr := s.worker.Do(ctx, func() { err = s.fixture.Reload() }); doErr != nil {
		err = doErr
	}
	if err != nil {
		logging.FixtureWarn("reload %s: %v", s.fixture.Path(), err)
	}
	s.metrics.FixtureReload(err == nil)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	cmd, err := protocol.Decode(body)
	if err != nil {
		logging.Get(logging.CategoryServer).Warn("bad request from %s: %v", r.RemoteAddr, err)
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse(r.Header.Get("X-Request-ID"), err))
		return
	}
	if cmd.ID == "" {
		cmd.ID = r.Header.Get("X-Request-ID")
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	reqLog := logging.WithRequestID(logging.CategoryServer, cmd.ID).WithField("kind", cmd.Kind)

	var res command.Result
	err = s.worker.Do(r.Context(), func() {
		res = s.exec.Execute(r.Context(), cmd)
	})
	switch {
	case errors.Is(err, ErrBusy):
		s.metrics.Rejected()
		reqLog.Warn("rejected: queue full (%d pending)", s.worker.Pending())
		writeJSON(w, http.StatusServiceUnavailable, protocol.ErrorResponse(cmd.ID, err))
		return
	case err != nil:
		reqLog.Warn("not executed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, protocol.ErrorResponse(cmd.ID, err))
		return
	}

	reqLog.Debug("done success=%v", res.Success)
	writeJSON(w, http.StatusOK, protocol.FromResult(res))
}

func writeJSON(w http.ResponseWriter, status int, resp protocol.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := protocol.Encode(w, resp); err != nil {
		logging.ServerError("encode response: %v", err)
	}
}
