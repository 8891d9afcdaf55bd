package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveQuery("both", "partial")
	m.ObserveAgent("audit", "success", "", 10*time.Millisecond)
	m.ObserveExtraction("fallback", "llm_error")
	m.ObserveExtraction("fallback", "llm_error")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("both", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentRunsTotal.WithLabelValues("audit", "success", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("fallback", "llm_error")))
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("analytics", "success")
		m.ObserveAgent("analytics", "failed", "upstream_auth", time.Second)
		m.ObserveExtraction("llm", "")
		m.ObserveRetry("upstream_quota")
		m.ObserveFinding("https", "critical")
	})
}
