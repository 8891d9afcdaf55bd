package extractor

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sozercan/siteinsight/internal/core"
)

const (
	defaultMetric    = "sessions"
	defaultDimension = "date"
)

type synonym struct {
	phrase string
	name   string
}

var metricSynonyms = sortedByLength([]synonym{
	{"new users", "newUsers"},
	{"first time users", "newUsers"},
	{"active users", "activeUsers"},
	{"engaged users", "activeUsers"},
	{"total users", "totalUsers"},
	{"users", "totalUsers"},
	{"visitors", "totalUsers"},
	{"people", "totalUsers"},
	{"sessions", "sessions"},
	{"visits", "sessions"},
	{"traffic", "sessions"},
	{"page views", "screenPageViews"},
	{"pageviews", "screenPageViews"},
	{"views", "screenPageViews"},
	{"bounce rate", "bounceRate"},
	{"bounce", "bounceRate"},
	{"session duration", "averageSessionDuration"},
	{"time on site", "averageSessionDuration"},
	{"engagement rate", "engagementRate"},
	{"engagement", "engagementRate"},
	{"conversions", "conversions"},
	{"conversion", "conversions"},
	{"events", "eventCount"},
	{"event count", "eventCount"},
})

var dimensionSynonyms = sortedByLength([]synonym{
	{"country", "country"},
	{"countries", "country"},
	{"city", "city"},
	{"cities", "city"},
	{"device", "deviceCategory"},
	{"devices", "deviceCategory"},
	{"browser", "browser"},
	{"browsers", "browser"},
	{"operating system", "operatingSystem"},
	{"landing page", "landingPage"},
	{"landing pages", "landingPage"},
	{"page title", "pageTitle"},
	{"page", "pagePath"},
	{"pages", "pagePath"},
	{"source", "sessionSource"},
	{"sources", "sessionSource"},
	{"medium", "sessionMedium"},
	{"channel", "sessionMedium"},
	{"campaign", "sessionCampaign"},
	{"campaigns", "sessionCampaign"},
	{"event name", "eventName"},
	{"daily", "date"},
	{"per day", "date"},
	{"by day", "date"},
})

// filterSynonyms map a phrase to a fixed dimension=value filter.
var filterSynonyms = []struct {
	phrase    string
	dimension string
	value     string
}{
	{"mobile", "deviceCategory", "mobile"},
	{"desktop", "deviceCategory", "desktop"},
	{"tablet", "deviceCategory", "tablet"},
	{"organic", "sessionMedium", "organic"},
}

func sortedByLength(list []synonym) []synonym {
	sort.SliceStable(list, func(i, j int) bool {
		return len(list[i].phrase) > len(list[j].phrase)
	})
	return list
}

// fallback builds a best-effort query from keyword matches in rawText.
func (e *Extractor) fallback(rawText string) core.StructuredQuery {
	text := " " + tokenize(rawText) + " "

	q := core.StructuredQuery{
		Filters:    map[string]string{},
		BestEffort: true,
		Source:     core.SourceFallback,
	}

	// identifiers typed verbatim take precedence over synonyms
	for _, name := range e.registry.MetricNames() {
		if containsWord(text, strings.ToLower(name)) {
			q.AddMetric(name)
		}
	}
	metricNames, text := matchSynonyms(text, metricSynonyms)
	for _, name := range metricNames {
		q.AddMetric(name)
	}
	if len(q.Metrics) == 0 {
		q.AddMetric(defaultMetric)
	}

	dimensionNames, _ := matchSynonyms(text, dimensionSynonyms)
	for _, name := range dimensionNames {
		q.AddDimension(name)
	}
	if len(q.Dimensions) == 0 {
		q.AddDimension(defaultDimension)
	}

	for _, f := range filterSynonyms {
		if containsWord(text, f.phrase) {
			if _, set := q.Filters[f.dimension]; !set {
				q.Filters[f.dimension] = f.value
			}
		}
	}

	q.DateRange = e.resolver.Resolve(rawText)
	return q
}

// matchSynonyms returns the names of the phrases found in text, ordered by
// where they occur, and text with the matched spans blanked. Blanking lets a
// longer phrase ("new users") hide the shorter one it contains ("users").
func matchSynonyms(text string, table []synonym) ([]string, string) {
	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	for _, s := range table {
		needle := " " + s.phrase + " "
		for {
			i := strings.Index(text, needle)
			if i < 0 {
				break
			}
			hits = append(hits, hit{pos: i, name: s.name})
			text = text[:i+1] + strings.Repeat("_", len(s.phrase)) + text[i+1+len(s.phrase):]
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.name)
	}
	return names, text
}

func containsWord(text, word string) bool {
	return strings.Contains(text, " "+word+" ")
}

// tokenize lowercases s and replaces punctuation with single spaces.
func tokenize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
