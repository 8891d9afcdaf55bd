package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	QueriesTotal       *prometheus.CounterVec
	AgentRunsTotal     *prometheus.CounterVec
	AgentDuration      *prometheus.HistogramVec
	ExtractionsTotal   *prometheus.CounterVec
	UpstreamRetries    *prometheus.CounterVec
	AuditFindingsTotal *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteinsight_queries_total",
				Help: "Total number of routed queries",
			},
			[]string{"intent", "status"},
		),
		AgentRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteinsight_agent_runs_total",
				Help: "Total number of agent invocations by outcome",
			},
			[]string{"agent", "status", "error_kind"},
		),
		AgentDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteinsight_agent_duration_seconds",
				Help:    "Duration of agent invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		ExtractionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteinsight_extractions_total",
				Help: "Structured query extractions by source and fallback reason",
			},
			[]string{"source", "reason"},
		),
		UpstreamRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteinsight_upstream_retries_total",
				Help: "Retried analytics backend calls by error kind",
			},
			[]string{"error_kind"},
		),
		AuditFindingsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteinsight_audit_findings_total",
				Help: "Audit findings emitted by check and severity",
			},
			[]string{"check", "severity"},
		),
	}
}

func (m *Metrics) ObserveQuery(intent, status string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(intent, status).Inc()
}

func (m *Metrics) ObserveAgent(agent, status, errorKind string, d time.Duration) {
	if m == nil {
		return
	}
	m.AgentRunsTotal.WithLabelValues(agent, status, errorKind).Inc()
	m.AgentDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// ObserveExtraction counts one extraction. reason is empty on the LLM path.
func (m *Metrics) ObserveExtraction(source, reason string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) ObserveRetry(errorKind string) {
	if m == nil {
		return
	}
	m.UpstreamRetries.WithLabelValues(errorKind).Inc()
}

func (m *Metrics) ObserveFinding(check, severity string) {
	if m == nil {
		return
	}
	m.AuditFindingsTotal.WithLabelValues(check, severity).Inc()
}
