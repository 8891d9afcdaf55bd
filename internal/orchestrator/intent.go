package orchestrator

import (
	"strings"
	"unicode"

	"github.com/sozercan/siteinsight/internal/core"
)

// Rule routes a query to Intent when any of its keywords appear. Keywords
// match whole words with an optional plural suffix, so "title" matches
// "titles" but "seo" does not match "Seoul".
type Rule struct {
	Intent   core.Intent
	Keywords []string
}

var DefaultRules = []Rule{
	{
		Intent: core.IntentAnalytics,
		Keywords: []string{
			"page view", "pageview", "users", "sessions", "traffic", "views",
			"bounce rate", "conversion", "goal", "event", "audience",
			"acquisition", "behavior", "demographic", "geographic",
			"device", "browser", "source", "medium", "campaign",
			"visitors", "visits", "engagement",
		},
	},
	{
		Intent: core.IntentAudit,
		Keywords: []string{
			"title", "meta", "index", "indexing", "indexed", "http", "https",
			"ssl", "seo", "crawl", "crawled", "crawler",
			"heading", "alt text", "schema", "sitemap", "robot",
			"canonical", "redirect", "broken link", "duplicate",
			"page speed", "mobile friendly", "structured data",
			"status code", "audit",
		},
	},
}

// DefaultAmbiguousTerms describe site performance without naming a backend.
// An audit-only question that uses one and carries a property ID also gets
// analytics data.
var DefaultAmbiguousTerms = []string{"page", "site", "website", "performance", "top", "doing"}

type Classification struct {
	Intent        core.Intent
	LowConfidence bool
	// Matched lists the keywords that fired, in rule order.
	Matched []string
}

type Classifier struct {
	rules     []Rule
	ambiguous []string
}

func NewClassifier(rules []Rule, ambiguous []string) *Classifier {
	return &Classifier{rules: rules, ambiguous: ambiguous}
}

var defaultClassifier = NewClassifier(DefaultRules, DefaultAmbiguousTerms)

// Classify uses the default rule table.
func Classify(q core.Query) Classification {
	return defaultClassifier.Classify(q)
}

// Classify dispatches to every intent whose keywords matched. A query that
// matches nothing goes to analytics with LowConfidence set.
func (c *Classifier) Classify(q core.Query) Classification {
	text := " " + normalize(q.RawText)

	var out Classification
	hit := map[core.Intent]bool{}
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if containsTerm(text, kw) {
				hit[r.Intent] = true
				out.Matched = append(out.Matched, kw)
			}
		}
	}

	switch {
	case hit[core.IntentAnalytics] && hit[core.IntentAudit]:
		out.Intent = core.IntentBoth
	case hit[core.IntentAudit]:
		out.Intent = core.IntentAudit
		if q.PropertyID != "" && c.ambiguousIn(text) {
			out.Intent = core.IntentBoth
		}
	case hit[core.IntentAnalytics]:
		out.Intent = core.IntentAnalytics
	default:
		out.Intent = core.IntentAnalytics
		out.LowConfidence = true
	}
	return out
}

func (c *Classifier) ambiguousIn(text string) bool {
	for _, t := range c.ambiguous {
		if containsTerm(text, t) {
			return true
		}
	}
	return false
}

// containsTerm reports whether term occurs in the space-prefixed text as a
// whole word, allowing an "s" or "es" plural.
func containsTerm(text, term string) bool {
	needle := " " + term
	for i := 0; ; {
		j := strings.Index(text[i:], needle)
		if j < 0 {
			return false
		}
		end := i + j + len(needle)
		rest := text[end:]
		if k := strings.IndexByte(rest, ' '); k >= 0 {
			rest = rest[:k]
		}
		switch rest {
		case "", "s", "es":
			return true
		}
		i = end
	}
}

func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
