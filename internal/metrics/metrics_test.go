package metrics

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTool(t *testing.T) {
	m := New()
	m.ObserveTool("click_element", "ok", 10*time.Millisecond)
	m.ObserveTool("click_element", "not_found", time.Millisecond)
	m.ObserveTool("click_element", "ok", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("click_element", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("click_element", "not_found")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTool("x", "ok", time.Second)
	m.ObserveRoundTrip("ping", time.Second)
	m.Reconnected()
	m.ObserveTree(10, time.Second)
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.Reconnected()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.AgentReconnect))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AgentReconnect))
}

func TestWritePrometheus(t *testing.T) {
	m := New()
	m.ObserveTree(42, 20*time.Millisecond)
	m.ObserveRoundTrip("ping", time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "uibridge_tree_nodes 42")
	assert.Contains(t, out, `uibridge_agent_roundtrip_seconds_count{type="ping"} 1`)
}

func TestHandler(t *testing.T) {
	m := New()
	m.Reconnected()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "uibridge_agent_reconnects_total 1")
}
