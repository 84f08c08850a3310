// Package metrics exposes bridge counters and histograms in Prometheus
// format. A Metrics value owns its registry so several servers (and tests)
// can run side by side.
package metrics

import (
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the bridge's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ToolCalls      *prometheus.CounterVec
	ToolDuration   *prometheus.HistogramVec
	AgentRoundTrip *prometheus.HistogramVec
	AgentReconnect prometheus.Counter
	TreeNodes      prometheus.Gauge
	TreeBuild      prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uibridge_tool_calls_total",
				Help: "Controller tool calls by result kind.",
			},
			[]string{"tool", "result"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uibridge_tool_duration_seconds",
				Help:    "Controller tool call latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		AgentRoundTrip: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uibridge_agent_roundtrip_seconds",
				Help:    "Agent channel request/response latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		AgentReconnect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uibridge_agent_reconnects_total",
			Help: "Connections established to the in-process agent.",
		}),
		TreeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uibridge_tree_nodes",
			Help: "Node count of the most recent tree build.",
		}),
		TreeBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uibridge_tree_build_seconds",
			Help:    "Accessibility tree build latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(
		m.ToolCalls, m.ToolDuration,
		m.AgentRoundTrip, m.AgentReconnect,
		m.TreeNodes, m.TreeBuild,
	)
	return m
}

// ObserveTool records one tool call. result is "ok" or an error kind.
func (m *Metrics) ObserveTool(tool, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, result).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveRoundTrip records one agent request.
func (m *Metrics) ObserveRoundTrip(msgType string, d time.Duration) {
	if m == nil {
		return
	}
	m.AgentRoundTrip.WithLabelValues(msgType).Observe(d.Seconds())
}

// Reconnected counts one new agent connection.
func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}
	m.AgentReconnect.Inc()
}

// ObserveTree records one tree build.
func (m *Metrics) ObserveTree(nodes int, d time.Duration) {
	if m == nil {
		return
	}
	m.TreeNodes.Set(float64(nodes))
	m.TreeBuild.Observe(d.Seconds())
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WritePrometheus writes the registry in the Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
