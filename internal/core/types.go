package core

import (
	"time"
)

const DateLayout = "2006-01-02"

// Query is an inbound natural-language question. It is not modified after
// it has been received.
type Query struct {
	RawText     string
	PropertyID  string
	Checks      []string // optional, pins the audit checks to run
	RequestedAt time.Time
}

type Intent string

const (
	IntentAnalytics Intent = "analytics"
	IntentAudit     Intent = "audit"
	IntentBoth      Intent = "both"
)

// Agents returns the agents an intent dispatches to, in a stable order.
func (i Intent) Agents() []AgentName {
	switch i {
	case IntentAudit:
		return []AgentName{AgentAudit}
	case IntentBoth:
		return []AgentName{AgentAnalytics, AgentAudit}
	default:
		return []AgentName{AgentAnalytics}
	}
}

type DateRange struct {
	Start       time.Time `json:"-"`
	End         time.Time `json:"-"`
	DefaultUsed bool      `json:"defaultUsed"`
	// Label is the phrase the range was resolved from
	Label string `json:"label,omitempty"`
}

func (d DateRange) StartDate() string { return d.Start.Format(DateLayout) }
func (d DateRange) EndDate() string   { return d.End.Format(DateLayout) }

// Days is the inclusive length of the range in calendar days, independent
// of DST shifts in the range's location.
func (d DateRange) Days() int {
	return int(civil(d.End).Sub(civil(d.Start)).Hours()/24) + 1
}

func civil(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func (d DateRange) String() string {
	return d.StartDate() + " to " + d.EndDate()
}

// StructuredQuery is the extracted form of an analytics question. Metrics
// and Dimensions behave as sets: no duplicates, first occurrence wins.
type StructuredQuery struct {
	Metrics    []string
	Dimensions []string
	DateRange  DateRange
	Filters    map[string]string

	// BestEffort is set when the deterministic fallback built the query.
	BestEffort bool
	Source     string
}

const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// AddMetric appends m unless already present.
func (q *StructuredQuery) AddMetric(m string) {
	q.Metrics = appendUnique(q.Metrics, m)
}

// AddDimension appends d unless already present.
func (q *StructuredQuery) AddDimension(d string) {
	q.Dimensions = appendUnique(q.Dimensions, d)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Finding is a single audit observation. AffectedRows holds row identifiers
// (URL or "row N") in dataset order.
type Finding struct {
	CheckName    string   `json:"checkName"`
	Severity     Severity `json:"severity"`
	AffectedRows []string `json:"affectedRows"`
	Message      string   `json:"message"`
}

type AgentName string

const (
	AgentAnalytics AgentName = "analytics"
	AgentAudit     AgentName = "audit"
)

type AgentStatus string

const (
	StatusSuccess   AgentStatus = "success"
	StatusEmptyData AgentStatus = "empty_data"
	StatusFailed    AgentStatus = "failed"
)

// Row is one analytics report row keyed by metric/dimension name.
type Row struct {
	Dimensions map[string]string `json:"dimensions"`
	Metrics    map[string]string `json:"metrics"`
}

type AnalyticsPayload struct {
	Summary         string            `json:"summary"`
	PropertyID      string            `json:"propertyId"`
	Metrics         []string          `json:"metrics"`
	Dimensions      []string          `json:"dimensions"`
	Filters         map[string]string `json:"filters,omitempty"`
	StartDate       string            `json:"startDate"`
	EndDate         string            `json:"endDate"`
	Rows            []Row             `json:"rows"`
	TotalRows       int               `json:"totalRows"`
	BestEffort      bool              `json:"bestEffort"`
	DefaultDateUsed bool              `json:"defaultDateUsed"`
}

type AuditPayload struct {
	Summary         string    `json:"summary"`
	Source          string    `json:"source"`
	ChecksRun       []string  `json:"checksRun"`
	ChecksSkipped   []string  `json:"checksSkipped,omitempty"`
	Findings        []Finding `json:"findings"`
	HealthScore     int       `json:"healthScore"`
	RowsAnalyzed    int       `json:"rowsAnalyzed"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// AgentResult is the terminal state of one agent invocation. On success or
// empty data exactly one of Analytics/Audit is set.
type AgentResult struct {
	Agent     AgentName
	Status    AgentStatus
	Analytics *AnalyticsPayload
	Audit     *AuditPayload
	Error     *ErrorDescriptor
	Hint      *ErrorDescriptor
	Duration  time.Duration
}

// OK reports whether the result counts as a non-error outcome.
func (r AgentResult) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusEmptyData
}

// Failed builds a failed result for agent carrying desc.
func Failed(agent AgentName, desc *ErrorDescriptor) AgentResult {
	desc.Agent = agent
	return AgentResult{
		Agent:  agent,
		Status: StatusFailed,
		Error:  desc,
	}
}
