package apimodels

import (
	"github.com/sozercan/siteinsight/internal/core"
)

type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusPartial ResponseStatus = "partial"
	StatusError   ResponseStatus = "error"
)

// FusedResponse merges the results of every agent dispatched for a query.
type FusedResponse struct {
	// Original question text
	Query string `json:"query"`

	Intent        core.Intent    `json:"intent"`
	LowConfidence bool           `json:"lowConfidence,omitempty"`
	Status        ResponseStatus `json:"status"`

	// Human-readable summary across agents
	Summary string `json:"summary"`

	// Set when at least one agent failed and at least one succeeded
	Partial bool `json:"partial"`

	Analytics *core.AnalyticsPayload `json:"analytics,omitempty"`
	SEO       *core.AuditPayload     `json:"seo,omitempty"`

	// Cross-domain observations, only when both payloads are present
	Insights []string `json:"insights,omitempty"`

	// One descriptor per failed agent
	Errors []*core.ErrorDescriptor `json:"errors,omitempty"`

	// Non-error hints such as empty data or skipped checks
	Hints []*core.ErrorDescriptor `json:"hints,omitempty"`

	Agents   []AgentReport    `json:"agents"`
	Metadata ResponseMetadata `json:"metadata"`
}

type AgentReport struct {
	Agent    core.AgentName   `json:"agent"`
	Status   core.AgentStatus `json:"status"`
	Duration string           `json:"duration"`
}

type ResponseMetadata struct {
	// Time taken for routing and fusion
	Duration string `json:"duration"`

	RequestID string `json:"requestId,omitempty"`

	// Tracks how the analytics query was extracted
	BestEffort bool `json:"bestEffort"`
}
