package audit

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sozercan/siteinsight/internal/core"
)

const (
	maxTitleLength = 60
	minTitleLength = 30
	maxMetaLength  = 160
)

// issue is a finding plus the health score penalties it carries. Penalties
// are keyed so overlapping checks only cost the score once per problem.
type issue struct {
	finding   core.Finding
	penalties map[string]int
}

const (
	penaltyPlainHTTP    = "plain_http"
	penaltyMissingTitle = "missing_title"
	penaltyLongTitle    = "long_title"
	penaltyMissingMeta  = "missing_meta"
	penaltyStatus       = "status"
)

var penaltyPoints = map[string]int{
	penaltyPlainHTTP:    20,
	penaltyMissingTitle: 15,
	penaltyLongTitle:    10,
	penaltyMissingMeta:  10,
	penaltyStatus:       15,
}

type check struct {
	name            string
	requires        []column
	recommendations []string
	run             func(d *Dataset, cols []int, ids []string) []issue
}

var catalog = []check{
	{
		name:     "title_length",
		requires: []column{colTitle},
		recommendations: []string{
			"Ensure all pages have unique, descriptive titles",
			fmt.Sprintf("Keep titles between %d-%d characters", minTitleLength, maxTitleLength),
			"Include target keywords naturally in titles",
		},
		run: checkTitles,
	},
	{
		name:     "meta_description",
		requires: []column{colMeta},
		recommendations: []string{
			fmt.Sprintf("Keep meta descriptions under %d characters", maxMetaLength),
			"Write compelling, action-oriented descriptions",
			"Make each meta description unique and relevant to page content",
		},
		run: checkMeta,
	},
	{
		name:     "https",
		requires: []column{colAddress},
		recommendations: []string{
			"Implement HTTPS across all pages",
			"Redirect all HTTP URLs to HTTPS versions",
			"Update internal links to use HTTPS",
		},
		run: checkHTTPS,
	},
	{
		name:     "status_code",
		requires: []column{colStatus},
		recommendations: []string{
			"Fix or redirect pages returning error status codes",
			"Point internal links at the final URL instead of a redirect",
		},
		run: checkStatus,
	},
	{
		name:     "non_https_long_titles",
		requires: []column{colAddress, colTitle},
		recommendations: []string{
			"Migrate all URLs to HTTPS for better security and SEO",
			fmt.Sprintf("Optimize page titles to be under %d characters", maxTitleLength),
			"Ensure titles are descriptive but concise",
		},
		run: checkNonHTTPSLongTitles,
	},
}

func lookup(name string) (check, bool) {
	for _, c := range catalog {
		if c.name == name {
			return c, true
		}
	}
	return check{}, false
}

// rowIDs returns the address of each row, or "row N" (1-based) where the
// address is unknown.
func rowIDs(d *Dataset) []string {
	addr := d.index(colAddress)
	ids := make([]string, len(d.Rows))
	for i := range d.Rows {
		if v := d.cell(i, addr); v != "" {
			ids[i] = v
		} else {
			ids[i] = fmt.Sprintf("row %d", i+1)
		}
	}
	return ids
}

// group collects row ids into a single finding, dropping empty groups.
type group struct {
	severity core.Severity
	message  string
	penalty  string
	rows     []string
}

func flush(name string, groups ...*group) []issue {
	var out []issue
	for _, g := range groups {
		if len(g.rows) == 0 {
			continue
		}
		is := issue{finding: core.Finding{
			CheckName:    name,
			Severity:     g.severity,
			AffectedRows: g.rows,
			Message:      fmt.Sprintf("%d %s", len(g.rows), g.message),
		}}
		if g.penalty != "" {
			is.penalties = map[string]int{g.penalty: penaltyPoints[g.penalty]}
		}
		out = append(out, is)
	}
	return out
}

func checkTitles(d *Dataset, cols []int, ids []string) []issue {
	col := cols[0]
	missing := &group{severity: core.SeverityWarning, message: "pages missing a title", penalty: penaltyMissingTitle}
	long := &group{severity: core.SeverityWarning, message: fmt.Sprintf("pages have titles over %d characters", maxTitleLength), penalty: penaltyLongTitle}
	short := &group{severity: core.SeverityInfo, message: fmt.Sprintf("pages have titles under %d characters", minTitleLength)}

	for i := range d.Rows {
		title := d.cell(i, col)
		n := utf8.RuneCountInString(title)
		switch {
		case n == 0:
			missing.rows = append(missing.rows, ids[i])
		case n > maxTitleLength:
			long.rows = append(long.rows, ids[i])
		case n < minTitleLength:
			short.rows = append(short.rows, ids[i])
		}
	}
	return flush("title_length", missing, long, short)
}

func checkMeta(d *Dataset, cols []int, ids []string) []issue {
	col := cols[0]
	missing := &group{severity: core.SeverityWarning, message: "pages missing a meta description", penalty: penaltyMissingMeta}
	long := &group{severity: core.SeverityInfo, message: fmt.Sprintf("pages have meta descriptions over %d characters", maxMetaLength)}

	for i := range d.Rows {
		n := utf8.RuneCountInString(d.cell(i, col))
		switch {
		case n == 0:
			missing.rows = append(missing.rows, ids[i])
		case n > maxMetaLength:
			long.rows = append(long.rows, ids[i])
		}
	}
	return flush("meta_description", missing, long)
}

func checkHTTPS(d *Dataset, cols []int, ids []string) []issue {
	col := cols[0]
	plain := &group{severity: core.SeverityCritical, message: "pages not using HTTPS", penalty: penaltyPlainHTTP}
	for i := range d.Rows {
		if isPlainHTTP(d.cell(i, col)) {
			plain.rows = append(plain.rows, ids[i])
		}
	}
	return flush("https", plain)
}

func checkStatus(d *Dataset, cols []int, ids []string) []issue {
	col := cols[0]
	errs := &group{severity: core.SeverityCritical, message: "pages returning error status codes", penalty: penaltyStatus}
	redirects := &group{severity: core.SeverityWarning, message: "pages returning redirects", penalty: penaltyStatus}
	unknown := &group{severity: core.SeverityInfo, message: "pages with an unrecognized status code"}

	for i := range d.Rows {
		raw := d.cell(i, col)
		if raw == "" {
			continue
		}
		code, err := parseStatus(raw)
		switch {
		case err != nil, code < 100:
			unknown.rows = append(unknown.rows, ids[i])
		case code >= 400:
			errs.rows = append(errs.rows, ids[i])
		case code >= 300:
			redirects.rows = append(redirects.rows, ids[i])
		}
	}
	return flush("status_code", errs, redirects, unknown)
}

// checkNonHTTPSLongTitles reports pages that are both served over plain HTTP
// and carry an overlong title.
func checkNonHTTPSLongTitles(d *Dataset, cols []int, ids []string) []issue {
	addr, title := cols[0], cols[1]
	both := &group{
		severity: core.SeverityCritical,
		message:  fmt.Sprintf("pages are not using HTTPS and have titles over %d characters", maxTitleLength),
	}
	for i := range d.Rows {
		if isPlainHTTP(d.cell(i, addr)) && utf8.RuneCountInString(d.cell(i, title)) > maxTitleLength {
			both.rows = append(both.rows, ids[i])
		}
	}
	out := flush("non_https_long_titles", both)
	for i := range out {
		out[i].penalties = map[string]int{
			penaltyPlainHTTP: penaltyPoints[penaltyPlainHTTP],
			penaltyLongTitle: penaltyPoints[penaltyLongTitle],
		}
	}
	return out
}

func isPlainHTTP(addr string) bool {
	return strings.HasPrefix(strings.ToLower(addr), "http://")
}

// parseStatus accepts "404" and spreadsheet-style "404.0".
func parseStatus(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
