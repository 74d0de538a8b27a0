package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"axquery/internal/axnode"
	"axquery/internal/command"
	"axquery/internal/metrics"
	"axquery/internal/protocol"
)

const fixtureV1 = `
role: window
attributes: {title: Main}
children:
  - role: button
    attributes: {name: Save}
    actions: [press]
`

const fixtureV2 = `
role: window
attributes: {title: Main}
children:
  - role: button
    attributes: {name: Publish}
    actions: [press]
`

type harness struct {
	base   string
	client *http.Client
	root   *FixtureRoot
	path   string
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, cfg Config) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureV1), 0644))

	root, err := NewFixtureRoot(path)
	require.NoError(t, err)
	rec := metrics.New()
	srv := New(cfg, command.NewExecutor(root, command.WithMetrics(rec)), rec).WithFixture(root)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		base:   "http://" + ln.Addr().String(),
		client: &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second},
		root:   root,
		path:   path,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { h.done <- srv.Serve(ctx, ln) }()
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func (h *harness) post(t *testing.T, body string) (int, protocol.Response) {
	t.Helper()
	resp, err := h.client.Post(h.base+"/v1/command", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out protocol.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := h.client.Get(h.base + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestServe_CommandRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startServer(t, Config{QueueSize: 4, ShutdownTimeout: time.Second})

	status, resp := h.post(t, `{"id": "r1", "command": "find", "locator": {"criteria": [{"attribute": "name", "value": "Save"}]}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "r1", resp.ID)
	require.True(t, resp.Success)
	assert.Equal(t, "Save", resp.Node.ComputedName)

	status, resp = h.post(t, `{"command": "find", "locator": {"criteria": [{"attribute": "name", "value": "Open"}]}}`)
	assert.Equal(t, http.StatusOK, status, "command failures are still 200")
	assert.NotEmpty(t, resp.ID, "server assigns an id")
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)

	status, resp = h.post(t, `{"command": `)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_command", resp.Error.Code)

	status, body := h.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)

	status, body = h.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `axq_commands_total{kind="find",outcome="ok"} 1`)
	assert.Contains(t, body, `axq_commands_total{kind="find",outcome="not_found"} 1`)

	status, _ = h.get(t, "/v1/command")
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	h.stop(t)
}

func TestServe_BatchOverHTTP(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startServer(t, Config{QueueSize: 4})

	status, resp := h.post(t, `{"command": "batch", "commands": [
		{"id": "a", "command": "act", "action": "press", "locator": {"criteria": [{"attribute": "name", "value": "Save"}]}},
		{"id": "b", "command": "describe"}
	]}`)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.OverallSuccess)
	assert.True(t, *resp.OverallSuccess)
	require.Len(t, resp.Batch, 2)
	assert.Contains(t, resp.Batch[1].Text, `button "Save"`)

	h.stop(t)
	assert.Len(t, h.root.Tree().Performed(), 1)
}

func TestServe_FixtureReload(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := startServer(t, Config{QueueSize: 4, WatchFixture: true, Debounce: 30 * time.Millisecond})

	find := `{"command": "find", "locator": {"criteria": [{"attribute": "name", "value": "Publish"}]}}`
	_, resp := h.post(t, find)
	require.False(t, resp.Success)

	require.NoError(t, os.WriteFile(h.path, []byte(fixtureV2), 0644))
	require.Eventually(t, func() bool {
		_, resp := h.post(t, find)
		return resp.Success
	}, 5*time.Second, 50*time.Millisecond)

	h.stop(t)
	assert.GreaterOrEqual(t, h.root.Generation(), 2)
}

func TestServe_WatchMissingFixture(t *testing.T) {
	root := &FixtureRoot{path: filepath.Join(t.TempDir(), "gone.yaml")}
	srv := New(Config{WatchFixture: true}, command.NewExecutor(root), nil).WithFixture(root)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorContains(t, srv.Serve(context.Background(), ln), "watch fixture")
}

func TestHandler_BusyQueue(t *testing.T) {
	root, err := NewFixtureRoot(writeFixture(t, fixtureV1))
	require.NoError(t, err)
	rec := metrics.New()
	srv := New(Config{QueueSize: 1}, command.NewExecutor(root), rec)

	// No worker is running, so one queued job fills the queue.
	srv.worker.jobs <- job{run: func() {}, done: make(chan struct{})}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/command", strings.NewReader(`{"command": "describe"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "queue full")
}

func TestFixtureRoot_ReloadKeepsTreeOnError(t *testing.T) {
	path := writeFixture(t, fixtureV1)
	root, err := NewFixtureRoot(path)
	require.NoError(t, err)
	before := root.Tree()

	require.NoError(t, os.WriteFile(path, []byte("children: [ref: nowhere"), 0644))
	assert.Error(t, root.Reload())
	assert.Same(t, before, root.Tree())
	assert.Equal(t, 1, root.Generation())

	require.NoError(t, os.WriteFile(path, []byte(fixtureV2), 0644))
	require.NoError(t, root.Reload())
	assert.Equal(t, 2, root.Generation())

	n, err := root.Root(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "window", axnode.Role(n))
}

func writeFixture(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}
