package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sozercan/siteinsight/internal/allowlist"
	"github.com/sozercan/siteinsight/internal/core"
	"github.com/sozercan/siteinsight/internal/logger"
	"github.com/sozercan/siteinsight/internal/metrics"
)

// Agent runs SEO checks over a crawl dataset. The dataset is read-only so
// one Agent can serve concurrent requests.
type Agent struct {
	dataset  *Dataset
	registry *allowlist.Registry
	logger   logger.Logger
	metrics  *metrics.Metrics
}

func New(dataset *Dataset, registry *allowlist.Registry, log logger.Logger, m *metrics.Metrics) *Agent {
	if dataset == nil {
		dataset = SampleDataset()
	}
	return &Agent{dataset: dataset, registry: registry, logger: log, metrics: m}
}

// Handle runs the checks pinned on q, else the ones the question asks about.
func (a *Agent) Handle(ctx context.Context, q core.Query) core.AgentResult {
	if len(q.Checks) > 0 {
		return a.Run(ctx, q.Checks)
	}
	return a.Run(ctx, ChecksForQuery(q.RawText))
}

// Run applies the named checks, or every allowlisted check when none are
// given. A check whose column is missing is skipped with an info finding.
func (a *Agent) Run(ctx context.Context, checks []string) core.AgentResult {
	start := time.Now()
	result := a.run(ctx, checks)
	result.Duration = time.Since(start)
	return result
}

func (a *Agent) run(ctx context.Context, names []string) core.AgentResult {
	if len(names) == 0 {
		names = a.registry.CheckNames()
	}
	if err := a.registry.ValidateChecks(names); err != nil {
		var verr *allowlist.ValidationError
		if errors.As(err, &verr) {
			return core.Failed(core.AgentAudit, verr.Descriptor())
		}
		return core.Failed(core.AgentAudit, core.NewDescriptor(core.KindValidation, err.Error()))
	}

	ds := a.dataset
	ids := rowIDs(ds)
	payload := &core.AuditPayload{
		Source:       ds.Source,
		Findings:     []core.Finding{},
		RowsAnalyzed: len(ds.Rows),
	}
	penalties := map[string]int{}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return core.Failed(core.AgentAudit, core.NewDescriptor(core.KindTimeout, "audit did not finish in time", err.Error()))
		}

		c, ok := lookup(name)
		if !ok {
			return core.Failed(core.AgentAudit, core.NewDescriptor(core.KindValidation, "audit check is not implemented", fmt.Sprintf("checks=%q", name)))
		}

		cols, missing := columns(ds, c.requires)
		if missing != "" {
			payload.ChecksSkipped = append(payload.ChecksSkipped, name)
			payload.Findings = append(payload.Findings, core.Finding{
				CheckName:    name,
				Severity:     core.SeverityInfo,
				AffectedRows: []string{},
				Message:      fmt.Sprintf("check skipped: column %q unavailable", missing),
			})
			a.logger.Info("Audit check skipped", map[string]interface{}{
				"check":  name,
				"column": missing,
				"kind":   string(core.KindSchemaGap),
			})
			continue
		}

		payload.ChecksRun = append(payload.ChecksRun, name)
		issues := c.run(ds, cols, ids)
		for _, is := range issues {
			payload.Findings = append(payload.Findings, is.finding)
			for key, points := range is.penalties {
				penalties[key] = points
			}
			a.metrics.ObserveFinding(is.finding.CheckName, string(is.finding.Severity))
		}
		if len(issues) > 0 {
			payload.Recommendations = appendUnique(payload.Recommendations, c.recommendations...)
		}
	}

	penalty := 0
	for _, points := range penalties {
		penalty += points
	}
	payload.HealthScore = 100 - penalty
	if payload.HealthScore < 0 {
		payload.HealthScore = 0
	}

	if len(payload.ChecksRun) == 0 {
		payload.Summary = fmt.Sprintf("No audit checks could run against %s: required columns are unavailable.", ds.Source)
		desc := core.NewDescriptor(core.KindSchemaGap, "every requested audit check was skipped", payload.ChecksSkipped...)
		desc.Agent = core.AgentAudit
		desc.Suggestions = []string{"Export the crawl with Address, Title 1, Meta Description 1 and Status Code columns"}
		return core.AgentResult{Agent: core.AgentAudit, Status: core.StatusEmptyData, Audit: payload, Hint: desc}
	}

	if len(ds.Rows) == 0 {
		payload.Summary = fmt.Sprintf("The audit dataset %s has no rows.", ds.Source)
		desc := core.NewDescriptor(core.KindNoData, "audit dataset is empty")
		desc.Agent = core.AgentAudit
		desc.Suggestions = []string{"Re-run the crawl and export the Internal tab"}
		return core.AgentResult{Agent: core.AgentAudit, Status: core.StatusEmptyData, Audit: payload, Hint: desc}
	}

	payload.Summary = fmt.Sprintf("SEO audit of %d pages: %d checks run, %d findings. SEO Health Score: %d/100.",
		len(ds.Rows), len(payload.ChecksRun), countIssues(payload.Findings), payload.HealthScore)
	return core.AgentResult{Agent: core.AgentAudit, Status: core.StatusSuccess, Audit: payload}
}

// columns resolves the header positions a check needs, or names the first
// one that is missing.
func columns(ds *Dataset, required []column) ([]int, string) {
	cols := make([]int, len(required))
	for i, c := range required {
		if cols[i] = ds.index(c); cols[i] < 0 {
			return nil, string(c)
		}
	}
	return cols, ""
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, have := range list {
			if have == it {
				found = true
				break
			}
		}
		if !found {
			list = append(list, it)
		}
	}
	return list
}

func countIssues(findings []core.Finding) int {
	n := 0
	for _, f := range findings {
		if len(f.AffectedRows) > 0 {
			n++
		}
	}
	return n
}

// keywords that narrow an audit to specific checks
var checkKeywords = []struct {
	check string
	words []string
}{
	{"title_length", []string{"title", "titles"}},
	{"meta_description", []string{"meta", "description", "descriptions"}},
	{"https", []string{"https", "http", "ssl", "secure", "security"}},
	{"status_code", []string{"status", "404", "broken", "error", "errors", "redirect", "redirects"}},
}

// ChecksForQuery picks the checks a question mentions. A question that names
// none gets the full suite, signalled by a nil result.
func ChecksForQuery(text string) []string {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		words[w] = true
	}

	var checks []string
	for _, ck := range checkKeywords {
		for _, w := range ck.words {
			if words[w] {
				checks = append(checks, ck.check)
				break
			}
		}
	}
	return combine(checks)
}

// combine folds a title question that also asks about HTTPS into the
// intersection check.
func combine(checks []string) []string {
	title, https := -1, -1
	for i, c := range checks {
		switch c {
		case "title_length":
			title = i
		case "https":
			https = i
		}
	}
	if title < 0 || https < 0 {
		return checks
	}
	out := []string{"non_https_long_titles"}
	for i, c := range checks {
		if i != title && i != https {
			out = append(out, c)
		}
	}
	return out
}
