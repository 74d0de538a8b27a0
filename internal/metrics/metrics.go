// Package metrics exposes Prometheus counters for traversals and commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns one registry. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	nodesVisited    prometheus.Counter
	branchesPruned  prometheus.Counter
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	batchItems      prometheus.Histogram
	rejected        prometheus.Counter
	fixtureReloads  *prometheus.CounterVec
}

// New creates a recorder with its own registry, plus Go runtime collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		nodesVisited: f.NewCounter(prometheus.CounterOpts{
			Name: "axq_nodes_visited_total",
			Help: "Total accessibility nodes visited by traversals",
		}),
		branchesPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "axq_branches_pruned_total",
			Help: "Total subtrees skipped by the depth bound",
		}),
		commandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "axq_commands_total",
			Help: "Commands executed by kind and outcome",
		}, []string{"kind", "outcome"}),
		commandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "axq_command_duration_seconds",
			Help:    "Command duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"kind"}),
		batchItems: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "axq_batch_items",
			Help:    "Number of sub-commands per batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "axq_requests_rejected_total",
			Help: "HTTP requests turned away because the command queue was full",
		}),
		fixtureReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "axq_fixture_reloads_total",
			Help: "Fixture reloads triggered by the file watcher",
		}, []string{"result"}),
	}
}

// Traversal adds one walk's counters.
func (r *Recorder) Traversal(visited, pruned int) {
	if r == nil {
		return
	}
	r.nodesVisited.Add(float64(visited))
	r.branchesPruned.Add(float64(pruned))
}

// Command records a finished command. outcome is "ok" or an error code.
func (r *Recorder) Command(kind, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.commandsTotal.WithLabelValues(kind, outcome).Inc()
	r.commandDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Batch records the size of a batch.
func (r *Recorder) Batch(items int) {
	if r == nil {
		return
	}
	r.batchItems.Observe(float64(items))
}

// Rejected counts a request refused by a full queue.
func (r *Recorder) Rejected() {
	if r == nil {
		return
	}
	r.rejected.Inc()
}

// FixtureReload records a watcher-triggered reload.
func (r *Recorder) FixtureReload(ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.fixtureReloads.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
