package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozercan/siteinsight/internal/allowlist"
	"github.com/sozercan/siteinsight/internal/core"
	"github.com/sozercan/siteinsight/internal/daterange"
	"github.com/sozercan/siteinsight/internal/extractor"
	"github.com/sozercan/siteinsight/internal/ga4"
	"github.com/sozercan/siteinsight/internal/logger"
)

type scriptedBackend struct {
	errs  []error
	rows  []core.Row
	calls int
	last  ga4.ReportRequest
}

func (b *scriptedBackend) RunReport(ctx context.Context, req ga4.ReportRequest) ([]core.Row, error) {
	b.last = req
	b.calls++
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		return nil, err
	}
	return b.rows, nil
}

func fixedNow() time.Time { return time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC) }

func lastWeek() core.StructuredQuery {
	r := &daterange.Resolver{Now: fixedNow}
	return core.StructuredQuery{
		Metrics:    []string{"totalUsers"},
		Dimensions: []string{"date"},
		DateRange:  r.Resolve("last week"),
	}
}

func newAgent(t *testing.T, b Backend, opts ...Option) *Agent {
	opts = append([]Option{WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })}, opts...)
	return New(b, nil, allowlist.Default(), logger.NewTestLogger(t), opts...)
}

func TestRunSuccess(t *testing.T) {
	b := &scriptedBackend{rows: []core.Row{
		{Dimensions: map[string]string{"date": "20240508"}, Metrics: map[string]string{"totalUsers": "12"}},
		{Dimensions: map[string]string{"date": "20240509"}, Metrics: map[string]string{"totalUsers": "30"}},
	}}
	res := newAgent(t, b).Run(context.Background(), lastWeek(), "123")

	require.Equal(t, core.StatusSuccess, res.Status)
	require.NotNil(t, res.Analytics)
	assert.Equal(t, "GA4 analytics report for 2024-05-08 to 2024-05-14. Retrieved 2 rows for totalUsers.", res.Analytics.Summary)
	assert.Equal(t, 2, res.Analytics.TotalRows)
	assert.Equal(t, "123", b.last.PropertyID)
	assert.Equal(t, "2024-05-08", b.last.StartDate)
	assert.Nil(t, res.Error)
}

func TestRunRejectsDisallowedFieldsWithoutCallingBackend(t *testing.T) {
	b := &scriptedBackend{}
	q := lastWeek()
	q.Metrics = append(q.Metrics, "revenuePerUser")
	q.Dimensions = append(q.Dimensions, "userEmail")

	res := newAgent(t, b).Run(context.Background(), q, "123")

	assert.Equal(t, core.StatusFailed, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, core.KindValidation, res.Error.Kind)
	assert.Equal(t, core.AgentAnalytics, res.Error.Agent)
	assert.Contains(t, res.Error.Details, `metrics="revenuePerUser"`)
	assert.Contains(t, res.Error.Details, `dimensions="userEmail"`)
	assert.Zero(t, b.calls)
}

func TestRunUsesDefaultProperty(t *testing.T) {
	b := &scriptedBackend{rows: []core.Row{{}}}
	res := newAgent(t, b, WithDefaultProperty("999")).Run(context.Background(), lastWeek(), "")
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, "999", b.last.PropertyID)

	res = newAgent(t, &scriptedBackend{}).Run(context.Background(), lastWeek(), "")
	require.NotNil(t, res.Error)
	assert.Equal(t, core.KindInvalidProperty, res.Error.Kind)
}

func TestRunEmptyData(t *testing.T) {
	res := newAgent(t, &scriptedBackend{}).Run(context.Background(), lastWeek(), "123")

	assert.Equal(t, core.StatusEmptyData, res.Status)
	assert.True(t, res.OK())
	require.NotNil(t, res.Analytics)
	assert.Empty(t, res.Analytics.Rows)
	assert.NotNil(t, res.Analytics.Rows)
	require.NotNil(t, res.Hint)
	assert.Equal(t, core.KindNoData, res.Hint.Kind)
	assert.Contains(t, res.Hint.Suggestions, "Try a different date range (e.g., last 30 days)")
	assert.Nil(t, res.Error)
}

func TestRunClassifiesBackendErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  core.ErrorKind
		calls int
	}{
		{"auth is permanent", fmt.Errorf("%w: denied", ga4.ErrAuth), core.KindAuth, 1},
		{"property is permanent", fmt.Errorf("%w: 404", ga4.ErrInvalidProperty), core.KindInvalidProperty, 1},
		{"quota is retried", fmt.Errorf("%w: slow down", ga4.ErrQuota), core.KindQuota, 3},
		{"transport is retried", errors.New("connection reset by peer"), core.KindUnknown, 3},
		{"deadline", context.DeadlineExceeded, core.KindTimeout, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &scriptedBackend{errs: []error{tt.err, tt.err, tt.err, tt.err}}
			res := newAgent(t, b, WithMaxRetries(2)).Run(context.Background(), lastWeek(), "123")

			assert.Equal(t, core.StatusFailed, res.Status)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.kind, res.Error.Kind)
			assert.Equal(t, tt.kind.Retryable(), res.Error.Retryable)
			assert.Equal(t, tt.calls, b.calls)
		})
	}
}

func TestRunRecoversAfterTransientFailure(t *testing.T) {
	b := &scriptedBackend{
		errs: []error{fmt.Errorf("%w: slow down", ga4.ErrQuota)},
		rows: []core.Row{{Metrics: map[string]string{"totalUsers": "1"}}},
	}
	res := newAgent(t, b).Run(context.Background(), lastWeek(), "123")
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, 2, b.calls)
}

func TestRunCancelledContextIsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &scriptedBackend{errs: []error{fmt.Errorf("%w: boom", ga4.ErrUnknown)}}

	res := newAgent(t, b).Run(ctx, lastWeek(), "123")
	require.NotNil(t, res.Error)
	assert.Equal(t, core.KindTimeout, res.Error.Kind)
}

func TestHandleLastWeekUsers(t *testing.T) {
	reg := allowlist.Default()
	ex := extractor.New(nil, reg, &daterange.Resolver{Now: fixedNow, DefaultDays: 7}, logger.NewNoOpLogger())
	agent := New(ga4.DemoBackend{}, ex, reg, logger.NewTestLogger(t))

	res := agent.Handle(context.Background(), core.Query{RawText: "Show me users from last week", PropertyID: "123"})

	require.Equal(t, core.StatusSuccess, res.Status)
	p := res.Analytics
	assert.Equal(t, []string{"totalUsers"}, p.Metrics)
	assert.Equal(t, "2024-05-08", p.StartDate)
	assert.Equal(t, "2024-05-14", p.EndDate)
	assert.Len(t, p.Rows, 7)
	assert.True(t, p.BestEffort)
}
