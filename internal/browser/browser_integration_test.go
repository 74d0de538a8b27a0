//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axquery/internal/axnode"
	"axquery/internal/browser"
	"axquery/internal/command"
	"axquery/internal/locator"
)

const interactivePage = `<html>
<head><title>Counter</title></head>
<body>
  <h1 id="count">Clicked 0</h1>
  <button id="btn1" onclick="n++; document.getElementById('count').textContent = 'Clicked ' + n">Click Me</button>
  <label for="inp1">Search</label><input id="inp1" type="text">
  <script>var n = 0;</script>
</body>
</html>`

func startSession(t *testing.T) (*browser.SessionManager, *browser.Session, context.Context) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, interactivePage)
	}))
	t.Cleanup(ts.Close)

	cfg := browser.DefaultConfig()
	cfg.NavigationTimeoutMs = 10000
	cfg.SessionStore = filepath.Join(t.TempDir(), "sessions.json")

	sm := browser.NewSessionManager(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	t.Cleanup(func() {
		if err := sm.Shutdown(context.Background()); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	})

	require.NoError(t, sm.Start(ctx), "Failed to start browser")
	session, err := sm.CreateSession(ctx, ts.URL)
	require.NoError(t, err, "Failed to create session")
	require.Equal(t, "Counter", session.Title)
	return sm, session, ctx
}

func TestSessionManager_Snapshot_Integration(t *testing.T) {
	sm, session, ctx := startSession(t)

	tree, err := sm.Snapshot(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Counter", axnode.ComputedName(tree.Root()))
	assert.Contains(t, tree.Summary(), "1 button")
}

func TestSessionManager_Commands_Integration(t *testing.T) {
	sm, session, ctx := startSession(t)
	ex := command.NewExecutor(sm.RootProvider(session.ID))

	res := ex.Execute(ctx, command.Command{
		ID:      "press",
		Kind:    command.KindAct,
		Action:  axnode.ActionPress,
		Locator: locator.New(locator.Exact("role", "button"), locator.Exact("name", "Click Me")),
	})
	require.True(t, res.Success, "%+v", res.Error)

	require.Eventually(t, func() bool {
		res := ex.Execute(ctx, command.Command{
			Kind:    command.KindFind,
			Locator: locator.New(locator.Exact("role", "heading"), locator.Exact("name", "Clicked 1")),
		})
		return res.Success
	}, 5*time.Second, 100*time.Millisecond)

	res = ex.Execute(ctx, command.Command{
		ID:        "type",
		Kind:      command.KindSet,
		Attribute: axnode.AttrValue,
		Value:     "hello",
		Locator:   locator.New(locator.Exact("role", "textbox"), locator.Exact("name", "Search")),
	})
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, "hello", res.Node.Attributes[axnode.AttrValue])
}

func TestSessionManager_AttachAndNavigate_Integration(t *testing.T) {
	sm, session, ctx := startSession(t)

	attached, err := sm.Attach(ctx, session.TargetID)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, attached.ID)
	assert.Equal(t, "attached", attached.Status)
	assert.Contains(t, attached.URL, session.URL)

	require.NoError(t, sm.Navigate(ctx, attached.ID, "about:blank"))
	s, ok := sm.GetSession(attached.ID)
	require.True(t, ok)
	assert.Equal(t, "about:blank", s.URL)
}
