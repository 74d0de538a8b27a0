package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()
	r.Traversal(12, 3)
	r.Traversal(8, 0)
	r.Command("find", "ok", 5*time.Millisecond)
	r.Command("find", "not_found", time.Millisecond)
	r.Command("find", "ok", time.Millisecond)

	assert.Equal(t, 20.0, testutil.ToFloat64(r.nodesVisited))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.branchesPruned))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.commandsTotal.WithLabelValues("find", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commandsTotal.WithLabelValues("find", "not_found")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Traversal(1, 1)
		r.Command("collect", "ok", time.Second)
		r.Batch(3)
		r.Rejected()
		r.FixtureReload(false)
	})
	assert.Nil(t, r.Registry())

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestRecorder_ServerCounters(t *testing.T) {
	r := New()
	r.Rejected()
	r.FixtureReload(true)
	r.FixtureReload(true)
	r.FixtureReload(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejected))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.fixtureReloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fixtureReloads.WithLabelValues("error")))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.Batch(4)
	r.Command("batch", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "axq_batch_items_count 1")
	assert.Contains(t, string(body), `axq_commands_total{kind="batch",outcome="ok"} 1`)
}
