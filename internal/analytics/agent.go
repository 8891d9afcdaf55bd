package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sozercan/siteinsight/internal/allowlist"
	"github.com/sozercan/siteinsight/internal/core"
	"github.com/sozercan/siteinsight/internal/ga4"
	"github.com/sozercan/siteinsight/internal/logger"
	"github.com/sozercan/siteinsight/internal/metrics"
)

const defaultMaxRetries = 2

// Backend executes a validated report request.
type Backend interface {
	RunReport(ctx context.Context, req ga4.ReportRequest) ([]core.Row, error)
}

// Extractor turns raw question text into a structured query.
type Extractor interface {
	Extract(ctx context.Context, rawText string) core.StructuredQuery
}

type Agent struct {
	backend    Backend
	extractor  Extractor
	registry   *allowlist.Registry
	propertyID string
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     logger.Logger
	metrics    *metrics.Metrics
}

type Option func(*Agent)

// WithDefaultProperty sets the property used when a query carries none.
func WithDefaultProperty(id string) Option {
	return func(a *Agent) { a.propertyID = id }
}

func WithMaxRetries(n uint64) Option {
	return func(a *Agent) { a.maxRetries = n }
}

// WithBackOff replaces the retry schedule. The function is called once per
// report so every request starts from a fresh schedule.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(a *Agent) { a.newBackOff = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

func New(backend Backend, extractor Extractor, registry *allowlist.Registry, log logger.Logger, opts ...Option) *Agent {
	a := &Agent{
		backend:    backend,
		extractor:  extractor,
		registry:   registry,
		maxRetries: defaultMaxRetries,
		logger:     log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle extracts a structured query from q and runs it.
func (a *Agent) Handle(ctx context.Context, q core.Query) core.AgentResult {
	sq := a.extractor.Extract(ctx, q.RawText)
	return a.Run(ctx, sq, q.PropertyID)
}

// Run validates sq and executes it against propertyID, or the default
// property when propertyID is empty. Every outcome is reported in the
// returned result.
func (a *Agent) Run(ctx context.Context, sq core.StructuredQuery, propertyID string) core.AgentResult {
	start := time.Now()
	result := a.run(ctx, sq, propertyID)
	result.Duration = time.Since(start)
	return result
}

func (a *Agent) run(ctx context.Context, sq core.StructuredQuery, propertyID string) core.AgentResult {
	valid, err := a.registry.Validate(sq)
	if err != nil {
		var verr *allowlist.ValidationError
		if errors.As(err, &verr) {
			a.logger.Warn("Rejected analytics query", map[string]interface{}{"fields": verr.Error()})
			return core.Failed(core.AgentAnalytics, verr.Descriptor())
		}
		return core.Failed(core.AgentAnalytics, core.NewDescriptor(core.KindValidation, err.Error()))
	}

	if propertyID == "" {
		propertyID = a.propertyID
	}
	if propertyID == "" {
		desc := core.NewDescriptor(core.KindInvalidProperty, "no GA4 property ID was supplied or configured")
		desc.Suggestions = []string{"Pass propertyId with the query", "Set ga4.property_id in the configuration"}
		return core.Failed(core.AgentAnalytics, desc)
	}

	req := ga4.ReportRequest{
		PropertyID: propertyID,
		Metrics:    valid.Metrics,
		Dimensions: valid.Dimensions,
		StartDate:  valid.DateRange.StartDate(),
		EndDate:    valid.DateRange.EndDate(),
		Filters:    valid.Filters,
	}

	rows, err := a.runWithRetry(ctx, req)
	if err != nil {
		desc := describe(err)
		a.logger.WithError(err).Error("Analytics report failed", map[string]interface{}{
			"property_id": propertyID,
			"kind":        string(desc.Kind),
		})
		return core.Failed(core.AgentAnalytics, desc)
	}

	payload := &core.AnalyticsPayload{
		PropertyID:      propertyID,
		Metrics:         valid.Metrics,
		Dimensions:      valid.Dimensions,
		Filters:         valid.Filters,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Rows:            rows,
		TotalRows:       len(rows),
		BestEffort:      valid.BestEffort,
		DefaultDateUsed: valid.DateRange.DefaultUsed,
	}
	if payload.Rows == nil {
		payload.Rows = []core.Row{}
	}

	if len(rows) == 0 {
		payload.Summary = fmt.Sprintf("No data available for the selected period (%s).", valid.DateRange)
		return core.AgentResult{
			Agent:     core.AgentAnalytics,
			Status:    core.StatusEmptyData,
			Analytics: payload,
			Hint:      noDataHint(valid.DateRange),
		}
	}

	payload.Summary = fmt.Sprintf("GA4 analytics report for %s to %s. Retrieved %d rows for %s.",
		req.StartDate, req.EndDate, len(rows), strings.Join(valid.Metrics, ", "))
	return core.AgentResult{
		Agent:     core.AgentAnalytics,
		Status:    core.StatusSuccess,
		Analytics: payload,
	}
}

// runWithRetry retries quota and transport failures up to maxRetries times.
// Auth, property and context failures end the loop immediately.
func (a *Agent) runWithRetry(ctx context.Context, req ga4.ReportRequest) ([]core.Row, error) {
	var rows []core.Row
	attempt := 0

	op := func() error {
		attempt++
		var err error
		rows, err = a.backend.RunReport(ctx, req)
		if err == nil {
			return nil
		}
		kind := kindOf(err)
		if kind != core.KindQuota && kind != core.KindUnknown {
			return backoff.Permanent(err)
		}
		a.logger.Warn("Analytics backend call failed", map[string]interface{}{
			"attempt": attempt,
			"kind":    string(kind),
			"error":   err.Error(),
		})
		a.metrics.ObserveRetry(string(kind))
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(a.newBackOff(), a.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		// a cancelled request must classify as a timeout whatever the last backend error was
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, err
	}
	return rows, nil
}

func kindOf(err error) core.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return core.KindTimeout
	case errors.Is(err, ga4.ErrAuth):
		return core.KindAuth
	case errors.Is(err, ga4.ErrQuota):
		return core.KindQuota
	case errors.Is(err, ga4.ErrInvalidProperty):
		return core.KindInvalidProperty
	default:
		return core.KindUnknown
	}
}

// describe maps a backend error to a descriptor with the remediation the
// operator can take for that kind.
func describe(err error) *core.ErrorDescriptor {
	kind := kindOf(err)
	var desc *core.ErrorDescriptor
	switch kind {
	case core.KindTimeout:
		desc = core.NewDescriptor(kind, "analytics backend did not respond in time", err.Error())
		desc.Suggestions = []string{"Retry the query", "Narrow the date range"}
	case core.KindAuth:
		desc = core.NewDescriptor(kind, "analytics backend rejected the service credentials", err.Error())
		desc.Suggestions = []string{"Check the service account key", "Grant the service account Viewer access to the property"}
	case core.KindQuota:
		desc = core.NewDescriptor(kind, "analytics backend quota exhausted", err.Error())
		desc.Suggestions = []string{"Retry later", "Reduce the number of requested dimensions"}
	case core.KindInvalidProperty:
		desc = core.NewDescriptor(kind, "analytics property is invalid or not accessible", err.Error())
		desc.Suggestions = []string{"Check if the property ID is correct"}
	default:
		desc = core.NewDescriptor(kind, "analytics backend request failed", err.Error())
	}
	return desc
}

func noDataHint(dr core.DateRange) *core.ErrorDescriptor {
	desc := core.NewDescriptor(core.KindNoData, fmt.Sprintf("no data available for %s", dr),
		"No traffic during the selected time period",
		"Data processing delay (GA4 data can be delayed up to 24-48 hours)",
		"Property ID may not have data for the requested metrics",
		"Filters may be too restrictive",
	)
	desc.Agent = core.AgentAnalytics
	desc.Suggestions = []string{
		"Try a different date range (e.g., last 30 days)",
		"Check if the property ID is correct",
		"Verify the website has tracking implemented",
	}
	return desc
}
