package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sozercan/siteinsight/apimodels"
	"github.com/sozercan/siteinsight/internal/core"
)

// Fuse merges terminal agent results. Empty data is a success; the response
// is partial when some but not all agents failed, and an error when all did.
func Fuse(q core.Query, cls Classification, results []core.AgentResult) apimodels.FusedResponse {
	resp := apimodels.FusedResponse{
		Query:         q.RawText,
		Intent:        cls.Intent,
		LowConfidence: cls.LowConfidence,
		Agents:        make([]apimodels.AgentReport, 0, len(results)),
	}

	var summaries []string
	failed := 0
	for _, r := range results {
		resp.Agents = append(resp.Agents, apimodels.AgentReport{
			Agent:    r.Agent,
			Status:   r.Status,
			Duration: r.Duration.String(),
		})

		if !r.OK() {
			failed++
			if r.Error != nil {
				resp.Errors = append(resp.Errors, r.Error)
			} else {
				resp.Errors = append(resp.Errors, &core.ErrorDescriptor{Agent: r.Agent, Kind: core.KindUnknown, Message: "agent failed without an error"})
			}
			continue
		}

		if r.Hint != nil {
			resp.Hints = append(resp.Hints, r.Hint)
		}
		switch {
		case r.Analytics != nil:
			resp.Analytics = r.Analytics
			resp.Metadata.BestEffort = r.Analytics.BestEffort
			summaries = append(summaries, r.Analytics.Summary)
		case r.Audit != nil:
			resp.SEO = r.Audit
			summaries = append(summaries, r.Audit.Summary)
		}
	}

	switch {
	case len(results) == 0:
		resp.Status = apimodels.StatusError
		resp.Summary = "No agent was dispatched for this query."
	case failed == len(results):
		resp.Status = apimodels.StatusError
		resp.Summary = fmt.Sprintf("All %d dispatched agents failed: %s.", failed, describeErrors(resp.Errors))
	case failed > 0:
		resp.Status = apimodels.StatusPartial
		resp.Partial = true
		resp.Summary = strings.Join(summaries, " ") + fmt.Sprintf(" Partial result: %s.", describeErrors(resp.Errors))
	default:
		resp.Status = apimodels.StatusSuccess
		resp.Summary = strings.Join(summaries, " ")
	}

	if resp.Analytics != nil && resp.SEO != nil {
		resp.Insights = insights(resp.Analytics, resp.SEO)
	}
	return resp
}

func describeErrors(errs []*core.ErrorDescriptor) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%s failed (%s: %s)", e.Agent, e.Kind, e.Message)
	}
	return strings.Join(parts, "; ")
}

// insights correlates traffic and audit payloads.
func insights(a *core.AnalyticsPayload, s *core.AuditPayload) []string {
	out := []string{"Cross-referencing traffic data with SEO health indicators"}
	if len(a.Rows) > 0 && len(s.ChecksRun) > 0 {
		out = append(out, "Both analytics and SEO data available for comprehensive analysis")
	}

	critical, pages := 0, map[string]struct{}{}
	for _, f := range s.Findings {
		if f.Severity != core.SeverityCritical {
			continue
		}
		critical++
		for _, r := range f.AffectedRows {
			pages[r] = struct{}{}
		}
	}
	if critical > 0 && len(a.Metrics) > 0 {
		metric := a.Metrics[0]
		if total, ok := sumMetric(a.Rows, metric); ok {
			out = append(out, fmt.Sprintf("%d critical SEO findings affect %d pages over a period with %s %s (%s to %s)",
				critical, len(pages), formatNumber(total), metric, a.StartDate, a.EndDate))
		}
	}
	if s.HealthScore < 70 && len(s.ChecksRun) > 0 {
		out = append(out, fmt.Sprintf("SEO health score is %d/100; address critical findings before reading traffic trends as content performance", s.HealthScore))
	}
	return out
}

func sumMetric(rows []core.Row, metric string) (float64, bool) {
	total, seen := 0.0, false
	for _, r := range rows {
		v, err := strconv.ParseFloat(r.Metrics[metric], 64)
		if err != nil {
			continue
		}
		total += v
		seen = true
	}
	return total, seen
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
