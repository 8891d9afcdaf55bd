package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sozercan/siteinsight/internal/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		query    core.Query
		intent   core.Intent
		lowConf  bool
		contains string
	}{
		{"analytics", core.Query{RawText: "Show me users from last week", PropertyID: "123"}, core.IntentAnalytics, false, "users"},
		{"audit", core.Query{RawText: "Which URLs have missing meta descriptions?"}, core.IntentAudit, false, "meta"},
		{"plural keyword", core.Query{RawText: "list long titles"}, core.IntentAudit, false, "title"},
		{"both keywords", core.Query{RawText: "Compare traffic with SEO titles"}, core.IntentBoth, false, "seo"},
		{"audit with property and ambiguous term", core.Query{RawText: "Which pages use plain HTTP?", PropertyID: "123"}, core.IntentBoth, false, "http"},
		{"audit without property stays audit", core.Query{RawText: "Which pages use plain HTTP?"}, core.IntentAudit, false, "http"},
		{"plain https", core.Query{RawText: "list pages without https"}, core.IntentAudit, false, "https"},
		{"keyword inside a longer word", core.Query{RawText: "How many users came from Seoul last week?"}, core.IntentAnalytics, false, "users"},
		{"metadata is not meta", core.Query{RawText: "sessions with metadata events"}, core.IntentAnalytics, false, "sessions"},
		{"no match", core.Query{RawText: "hello there"}, core.IntentAnalytics, true, ""},
		{"empty", core.Query{}, core.IntentAnalytics, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query)
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.lowConf, got.LowConfidence)
			if tt.contains != "" {
				assert.Contains(t, got.Matched, tt.contains)
			} else {
				assert.Empty(t, got.Matched)
			}
		})
	}
}

func TestContainsTerm(t *testing.T) {
	text := " " + normalize("Seoul users, broken links and indexes")
	assert.False(t, containsTerm(text, "seo"))
	assert.True(t, containsTerm(text, "users"))
	assert.True(t, containsTerm(text, "broken link"))
	assert.True(t, containsTerm(text, "index"))
	assert.False(t, containsTerm(text, "link and"))
	assert.False(t, containsTerm(text, "use"))
}

func TestClassifierUsesCustomRules(t *testing.T) {
	c := NewClassifier([]Rule{{Intent: core.IntentAudit, Keywords: []string{"lighthouse"}}}, nil)

	assert.Equal(t, core.IntentAudit, c.Classify(core.Query{RawText: "Lighthouse report please", PropertyID: "1"}).Intent)
	got := c.Classify(core.Query{RawText: "users"})
	assert.Equal(t, core.IntentAnalytics, got.Intent)
	assert.True(t, got.LowConfidence)
}

func TestIntentAgents(t *testing.T) {
	assert.Equal(t, []core.AgentName{core.AgentAnalytics}, core.IntentAnalytics.Agents())
	assert.Equal(t, []core.AgentName{core.AgentAudit}, core.IntentAudit.Agents())
	assert.Equal(t, []core.AgentName{core.AgentAnalytics, core.AgentAudit}, core.IntentBoth.Agents())
}
