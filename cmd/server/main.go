// cmd/server/main.go
package main

import (
	"context"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sozercan/siteinsight/internal/allowlist"
	"github.com/sozercan/siteinsight/internal/analytics"
	"github.com/sozercan/siteinsight/internal/audit"
	"github.com/sozercan/siteinsight/internal/config"
	"github.com/sozercan/siteinsight/internal/core"
	"github.com/sozercan/siteinsight/internal/daterange"
	"github.com/sozercan/siteinsight/internal/extractor"
	"github.com/sozercan/siteinsight/internal/ga4"
	"github.com/sozercan/siteinsight/internal/llm"
	"github.com/sozercan/siteinsight/internal/logger"
	"github.com/sozercan/siteinsight/internal/metrics"
	"github.com/sozercan/siteinsight/internal/orchestrator"
	"github.com/sozercan/siteinsight/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = zl.Sync() }()
	lg := logger.NewZapAdapter(zl)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	registry := allowlist.New(cfg.Allowlist.Metrics, cfg.Allowlist.Dimensions, cfg.Allowlist.Checks)
	resolver := daterange.New(cfg.Dates.DefaultDays)

	var provider llm.Provider
	if cfg.OpenAI.APIKey == "" {
		lg.Warn("OpenAI API key not configured, queries use keyword extraction only", nil)
	} else {
		p, err := llm.NewOpenAI(&cfg.OpenAI)
		if err != nil {
			log.Fatalf("failed to create LLM provider: %v", err)
		}
		provider = p
	}

	ext := extractor.New(provider, registry, resolver, lg.With(map[string]interface{}{"component": "extractor"}),
		extractor.WithTimeout(cfg.LLM.Timeout),
		extractor.WithTemperature(cfg.LLM.Temperature),
		extractor.WithMaxTokens(cfg.LLM.MaxTokens),
		extractor.WithMetrics(m),
	)

	analyticsAgent := analytics.New(newBackend(cfg.GA4, lg), ext, registry,
		lg.With(map[string]interface{}{"agent": string(core.AgentAnalytics)}),
		analytics.WithDefaultProperty(cfg.GA4.PropertyID),
		analytics.WithMaxRetries(cfg.GA4.MaxRetries),
		analytics.WithMetrics(m),
	)
	auditAgent := audit.New(loadDataset(cfg.Audit.CSVFile, lg), registry,
		lg.With(map[string]interface{}{"agent": string(core.AgentAudit)}), m)

	orch := orchestrator.New(map[core.AgentName]orchestrator.Agent{
		core.AgentAnalytics: analyticsAgent,
		core.AgentAudit:     auditAgent,
	}, lg.With(map[string]interface{}{"component": "orchestrator"}),
		orchestrator.WithAgentTimeout(cfg.Agents.Timeout),
		orchestrator.WithMetrics(m),
	)

	srv := server.New(*cfg, orch, reg, lg)
	lg.Info("starting server", map[string]interface{}{"host": cfg.Server.Host, "port": cfg.Server.Port})
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// newBackend falls back to demo data when credentials are missing or
// unusable.
func newBackend(cfg config.GA4Config, lg logger.Logger) analytics.Backend {
	if cfg.Endpoint == "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			lg.Warn("GA4 credentials file not found, running in demo mode", map[string]interface{}{"path": cfg.CredentialsFile})
			return ga4.DemoBackend{}
		}
	}
	client, err := ga4.NewClient(context.Background(), cfg)
	if err != nil {
		lg.WithError(err).Warn("GA4 credentials invalid, running in demo mode", nil)
		return ga4.DemoBackend{}
	}
	return client
}

func loadDataset(path string, lg logger.Logger) *audit.Dataset {
	if _, err := os.Stat(path); err != nil {
		lg.Info("Audit CSV not found, using sample data", map[string]interface{}{"path": path})
		return audit.SampleDataset()
	}
	ds, err := audit.LoadCSV(path)
	if err != nil {
		lg.WithError(err).Warn("Failed to load audit CSV, using sample data", nil)
		return audit.SampleDataset()
	}
	lg.Info("Loaded audit dataset", map[string]interface{}{"path": path, "rows": len(ds.Rows)})
	return ds
}
