package allowlist

import (
	"sort"
)

// Entry maps an identifier to a description that we expose to the LLM.
type Entry struct {
	Name        string
	Description string
}

var defaultMetrics = []Entry{
	{Name: "sessions", Description: "number of sessions that began on the site"},
	{Name: "totalUsers", Description: "number of distinct users"},
	{Name: "screenPageViews", Description: "number of page or screen views"},
	{Name: "activeUsers", Description: "number of engaged users"},
	{Name: "newUsers", Description: "number of first-time users"},
	{Name: "bounceRate", Description: "percentage of sessions that were not engaged"},
	{Name: "averageSessionDuration", Description: "average session length in seconds"},
	{Name: "conversions", Description: "count of conversion events"},
	{Name: "eventCount", Description: "count of events"},
	{Name: "engagementRate", Description: "percentage of engaged sessions"},
}

var defaultDimensions = []Entry{
	{Name: "date", Description: "date of the session, YYYYMMDD"},
	{Name: "pagePath", Description: "page URL path"},
	{Name: "pageTitle", Description: "page title"},
	{Name: "sessionSource", Description: "traffic source, e.g. google"},
	{Name: "sessionMedium", Description: "traffic medium, e.g. organic"},
	{Name: "sessionCampaign", Description: "campaign name"},
	{Name: "country", Description: "user country"},
	{Name: "city", Description: "user city"},
	{Name: "deviceCategory", Description: "desktop, mobile or tablet"},
	{Name: "operatingSystem", Description: "operating system"},
	{Name: "browser", Description: "browser name"},
	{Name: "eventName", Description: "event name"},
	{Name: "landingPage", Description: "first page of the session"},
}

var defaultChecks = []Entry{
	{Name: "title_length", Description: "missing, long and short page titles"},
	{Name: "meta_description", Description: "missing and long meta descriptions"},
	{Name: "https", Description: "pages served over plain HTTP"},
	{Name: "status_code", Description: "redirects and error status codes"},
	{Name: "non_https_long_titles", Description: "plain HTTP pages that also have overlong titles"},
}

// Registry is the fixed set of identifiers allowed into backend queries.
// A Registry is never mutated after construction and is safe to share.
type Registry struct {
	metrics    []Entry
	dimensions []Entry
	checks     []Entry

	metricSet    map[string]struct{}
	dimensionSet map[string]struct{}
	checkSet     map[string]struct{}
}

// Default returns the registry of GA4 identifiers and audit checks the
// service ships with.
func Default() *Registry {
	return newRegistry(defaultMetrics, defaultDimensions, defaultChecks)
}

// New builds a registry from plain identifier lists. Identifiers that are
// also in the default registry keep their description. Empty lists fall
// back to the defaults.
func New(metrics, dimensions, checks []string) *Registry {
	return newRegistry(
		entries(metrics, defaultMetrics),
		entries(dimensions, defaultDimensions),
		entries(checks, defaultChecks),
	)
}

func entries(names []string, defaults []Entry) []Entry {
	if len(names) == 0 {
		return defaults
	}
	known := make(map[string]string, len(defaults))
	for _, e := range defaults {
		known[e.Name] = e.Description
	}
	out := make([]Entry, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, Entry{Name: n, Description: known[n]})
	}
	return out
}

func newRegistry(metrics, dimensions, checks []Entry) *Registry {
	return &Registry{
		metrics:      append([]Entry(nil), metrics...),
		dimensions:   append([]Entry(nil), dimensions...),
		checks:       append([]Entry(nil), checks...),
		metricSet:    toSet(metrics),
		dimensionSet: toSet(dimensions),
		checkSet:     toSet(checks),
	}
}

func toSet(list []Entry) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, e := range list {
		set[e.Name] = struct{}{}
	}
	return set
}

func (r *Registry) IsMetric(name string) bool {
	_, ok := r.metricSet[name]
	return ok
}

func (r *Registry) IsDimension(name string) bool {
	_, ok := r.dimensionSet[name]
	return ok
}

func (r *Registry) IsCheck(name string) bool {
	_, ok := r.checkSet[name]
	return ok
}

// Metrics returns the allowed metric entries in declaration order.
func (r *Registry) Metrics() []Entry { return append([]Entry(nil), r.metrics...) }

// Dimensions returns the allowed dimension entries in declaration order.
func (r *Registry) Dimensions() []Entry { return append([]Entry(nil), r.dimensions...) }

// Checks returns the allowed audit check entries in declaration order.
func (r *Registry) Checks() []Entry { return append([]Entry(nil), r.checks...) }

// MetricNames returns the allowed metric identifiers, sorted.
func (r *Registry) MetricNames() []string { return names(r.metrics) }

// DimensionNames returns the allowed dimension identifiers, sorted.
func (r *Registry) DimensionNames() []string { return names(r.dimensions) }

// CheckNames returns the audit check identifiers in declaration order.
func (r *Registry) CheckNames() []string {
	out := make([]string, len(r.checks))
	for i, e := range r.checks {
		out[i] = e.Name
	}
	return out
}

func names(list []Entry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.Name
	}
	sort.Strings(out)
	return out
}
