package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozercan/siteinsight/internal/allowlist"
	"github.com/sozercan/siteinsight/internal/core"
	"github.com/sozercan/siteinsight/internal/logger"
)

func newAgent(t *testing.T, ds *Dataset) *Agent {
	return New(ds, allowlist.Default(), logger.NewTestLogger(t), nil)
}

func findingsFor(p *core.AuditPayload, check string) []core.Finding {
	var out []core.Finding
	for _, f := range p.Findings {
		if f.CheckName == check {
			out = append(out, f)
		}
	}
	return out
}

func TestRunSampleDataset(t *testing.T) {
	res := newAgent(t, nil).Run(context.Background(), nil)

	require.Equal(t, core.StatusSuccess, res.Status)
	p := res.Audit
	require.NotNil(t, p)
	assert.Equal(t, SampleSource, p.Source)
	assert.Equal(t, 5, p.RowsAnalyzed)
	assert.Equal(t, []string{"title_length", "meta_description", "https", "status_code", "non_https_long_titles"}, p.ChecksRun)
	assert.Empty(t, p.ChecksSkipped)
	// https 20, long titles 10, missing meta 10, error status 15; the
	// intersection check repeats the first two and costs nothing extra
	assert.Equal(t, 45, p.HealthScore)
	assert.Contains(t, p.Recommendations, "Implement HTTPS across all pages")
	assert.Contains(t, p.Recommendations, "Migrate all URLs to HTTPS for better security and SEO")

	https := findingsFor(p, "https")
	require.Len(t, https, 1)
	assert.Equal(t, core.SeverityCritical, https[0].Severity)
	assert.Equal(t, []string{"http://example.com/", "http://example.com/contact", "http://example.com/blog/post-1"}, https[0].AffectedRows)

	titles := findingsFor(p, "title_length")
	require.Len(t, titles, 2)
	assert.Equal(t, core.SeverityWarning, titles[0].Severity)
	assert.Equal(t, []string{"http://example.com/", "http://example.com/blog/post-1"}, titles[0].AffectedRows)
	assert.Equal(t, core.SeverityInfo, titles[1].Severity)
	assert.Equal(t, []string{"https://example.com/about", "https://example.com/services"}, titles[1].AffectedRows)

	meta := findingsFor(p, "meta_description")
	require.Len(t, meta, 1)
	assert.Equal(t, []string{"http://example.com/contact"}, meta[0].AffectedRows)

	status := findingsFor(p, "status_code")
	require.Len(t, status, 1)
	assert.Equal(t, core.SeverityCritical, status[0].Severity)
	assert.Equal(t, []string{"http://example.com/blog/post-1"}, status[0].AffectedRows)

	both := findingsFor(p, "non_https_long_titles")
	require.Len(t, both, 1)
	assert.Equal(t, core.SeverityCritical, both[0].Severity)
	assert.Equal(t, []string{"http://example.com/", "http://example.com/blog/post-1"}, both[0].AffectedRows)
}

func TestRunNonHTTPSLongTitles(t *testing.T) {
	res := newAgent(t, nil).Handle(context.Background(), core.Query{RawText: "Which pages use HTTP and have titles that are too long?"})

	require.Equal(t, core.StatusSuccess, res.Status)
	p := res.Audit
	assert.Equal(t, []string{"non_https_long_titles"}, p.ChecksRun)
	require.Len(t, p.Findings, 1)
	assert.Equal(t, []string{"http://example.com/", "http://example.com/blog/post-1"}, p.Findings[0].AffectedRows)
	assert.Equal(t, 70, p.HealthScore)
	assert.Equal(t, []string{
		"Migrate all URLs to HTTPS for better security and SEO",
		"Optimize page titles to be under 60 characters",
		"Ensure titles are descriptive but concise",
	}, p.Recommendations)
}

func TestRunNonHTTPSLongTitlesNeedsBothColumns(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("Address\nhttp://a.test/\n"))
	require.NoError(t, err)

	res := newAgent(t, ds).Run(context.Background(), []string{"non_https_long_titles"})
	assert.Equal(t, core.StatusEmptyData, res.Status)
	assert.Equal(t, []string{"non_https_long_titles"}, res.Audit.ChecksSkipped)
	assert.Contains(t, res.Audit.Findings[0].Message, "Title")
	assert.Empty(t, res.Audit.Recommendations)
}

func TestRunSkipsCheckWithMissingColumn(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("Title 1,Meta Description 1\n" +
		"A reasonably descriptive page title for tests,Fine\n" +
		",\n"))
	require.NoError(t, err)

	res := newAgent(t, ds).Run(context.Background(), []string{"https", "title_length", "meta_description"})

	require.Equal(t, core.StatusSuccess, res.Status)
	assert.Nil(t, res.Error)
	assert.Equal(t, []string{"https"}, res.Audit.ChecksSkipped)

	skipped := findingsFor(res.Audit, "https")
	require.Len(t, skipped, 1)
	assert.Equal(t, core.SeverityInfo, skipped[0].Severity)
	assert.Contains(t, skipped[0].Message, "skipped")
	assert.Contains(t, skipped[0].Message, "Address")

	// rows without an address are identified by position
	missing := findingsFor(res.Audit, "title_length")
	require.Len(t, missing, 1)
	assert.Equal(t, []string{"row 2"}, missing[0].AffectedRows)
}

func TestRunAllChecksSkippedIsEmptyData(t *testing.T) {
	ds := &Dataset{Source: "crawl.csv", Columns: []string{"Inlinks"}, Rows: [][]string{{"3"}}}
	res := newAgent(t, ds).Run(context.Background(), nil)

	assert.Equal(t, core.StatusEmptyData, res.Status)
	assert.Len(t, res.Audit.ChecksSkipped, 5)
	assert.Len(t, res.Audit.Findings, 5)
	require.NotNil(t, res.Hint)
	assert.Equal(t, core.KindSchemaGap, res.Hint.Kind)
}

func TestRunRejectsUnknownCheck(t *testing.T) {
	res := newAgent(t, nil).Run(context.Background(), []string{"https", "keyword_density"})

	assert.Equal(t, core.StatusFailed, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, core.KindValidation, res.Error.Kind)
	assert.Equal(t, core.AgentAudit, res.Error.Agent)
	assert.Equal(t, []string{`checks="keyword_density"`}, res.Error.Details)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newAgent(t, nil).Run(ctx, nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, core.KindTimeout, res.Error.Kind)
}

func TestStatusCodeSeverities(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("URL,Status\n" +
		"https://a.test/,200\n" +
		"https://a.test/old,301\n" +
		"https://a.test/gone,410.0\n" +
		"https://a.test/boom,503\n" +
		"https://a.test/odd,blocked\n"))
	require.NoError(t, err)

	res := newAgent(t, ds).Run(context.Background(), []string{"status_code"})
	findings := findingsFor(res.Audit, "status_code")
	require.Len(t, findings, 3)

	assert.Equal(t, core.SeverityCritical, findings[0].Severity)
	assert.Equal(t, []string{"https://a.test/gone", "https://a.test/boom"}, findings[0].AffectedRows)
	assert.Equal(t, core.SeverityWarning, findings[1].Severity)
	assert.Equal(t, []string{"https://a.test/old"}, findings[1].AffectedRows)
	assert.Equal(t, core.SeverityInfo, findings[2].Severity)
	// errors and redirects share one status penalty
	assert.Equal(t, 85, res.Audit.HealthScore)
}

func TestRedirectsCostHealth(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("Address,Status Code\nhttps://a.test/,200\nhttps://a.test/old,301\n"))
	require.NoError(t, err)

	res := newAgent(t, ds).Run(context.Background(), []string{"status_code"})
	require.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, 85, res.Audit.HealthScore)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.csv")
	body := "\ufeffAddress,Title 1,Status Code\nhttps://a.test/,Home,200\nhttps://a.test/x,\"Quoted, title\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, 0, ds.index(colAddress))
	assert.Len(t, ds.Rows, 2)
	assert.Equal(t, "", ds.cell(1, ds.index(colStatus)))

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestChecksForQuery(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Which pages use HTTP and have long titles?", []string{"non_https_long_titles"}},
		{"long titles, http pages and broken links", []string{"non_https_long_titles", "status_code"}},
		{"pages with long titles", []string{"title_length"}},
		{"Find missing meta descriptions", []string{"meta_description"}},
		{"any broken links or 404s?", []string{"status_code"}},
		{"run an SEO audit", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ChecksForQuery(tt.text))
		})
	}
}

func TestHandleUsesQueryChecks(t *testing.T) {
	res := newAgent(t, nil).Handle(context.Background(), core.Query{RawText: "Show pages without HTTPS"})
	require.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, []string{"https"}, res.Audit.ChecksRun)
	assert.Equal(t, 80, res.Audit.HealthScore)
}
