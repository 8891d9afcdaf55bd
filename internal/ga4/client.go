package ga4

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sozercan/siteinsight/internal/config"
	"github.com/sozercan/siteinsight/internal/core"
)

var (
	ErrAuth            = errors.New("ga4 authentication failed")
	ErrQuota           = errors.New("ga4 quota exhausted")
	ErrInvalidProperty = errors.New("ga4 property not found or not accessible")
	ErrUnknown         = errors.New("ga4 request failed")
)

// ReportRequest is a validated report query addressed to one property.
type ReportRequest struct {
	PropertyID string
	Metrics    []string
	Dimensions []string
	StartDate  string
	EndDate    string
	Filters    map[string]string
	Limit      int64
}

// Client runs reports against the GA4 Data API.
type Client struct {
	svc *analyticsdata.Service
}

// NewClient builds a Data API client from cfg. Extra options are appended
// after the ones derived from cfg.
func NewClient(ctx context.Context, cfg config.GA4Config, opts ...option.ClientOption) (*Client, error) {
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := analyticsdata.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GA4 client: %w", err)
	}
	return &Client{svc: svc}, nil
}

func (c *Client) RunReport(ctx context.Context, req ReportRequest) ([]core.Row, error) {
	resp, err := c.svc.Properties.RunReport(propertyName(req.PropertyID), buildRequest(req)).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return mapRows(req, resp), nil
}

func propertyName(id string) string {
	if strings.HasPrefix(id, "properties/") {
		return id
	}
	return "properties/" + id
}

func buildRequest(req ReportRequest) *analyticsdata.RunReportRequest {
	r := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: req.StartDate, EndDate: req.EndDate}},
		Limit:      req.Limit,
	}
	for _, d := range req.Dimensions {
		r.Dimensions = append(r.Dimensions, &analyticsdata.Dimension{Name: d})
	}
	for _, m := range req.Metrics {
		r.Metrics = append(r.Metrics, &analyticsdata.Metric{Name: m})
	}

	if len(req.Filters) > 0 {
		keys := make([]string, 0, len(req.Filters))
		for k := range req.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		group := &analyticsdata.FilterExpressionList{}
		for _, k := range keys {
			group.Expressions = append(group.Expressions, &analyticsdata.FilterExpression{
				Filter: &analyticsdata.Filter{
					FieldName: k,
					StringFilter: &analyticsdata.StringFilter{
						Value:     req.Filters[k],
						MatchType: "EXACT",
					},
				},
			})
		}
		r.DimensionFilter = &analyticsdata.FilterExpression{AndGroup: group}
	}
	return r
}

// mapRows keys each value by its header name. Headers missing from the
// response fall back to request order, which the API preserves.
func mapRows(req ReportRequest, resp *analyticsdata.RunReportResponse) []core.Row {
	dimNames := append([]string(nil), req.Dimensions...)
	for i, h := range resp.DimensionHeaders {
		if i < len(dimNames) && h != nil && h.Name != "" {
			dimNames[i] = h.Name
		}
	}
	metricNames := append([]string(nil), req.Metrics...)
	for i, h := range resp.MetricHeaders {
		if i < len(metricNames) && h != nil && h.Name != "" {
			metricNames[i] = h.Name
		}
	}

	rows := make([]core.Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		row := core.Row{
			Dimensions: make(map[string]string, len(dimNames)),
			Metrics:    make(map[string]string, len(metricNames)),
		}
		for i, v := range r.DimensionValues {
			if i < len(dimNames) && v != nil {
				row.Dimensions[dimNames[i]] = v.Value
			}
		}
		for i, v := range r.MetricValues {
			if i < len(metricNames) && v != nil {
				row.Metrics[metricNames[i]] = v.Value
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// classify maps API failures onto the package sentinels. Context errors are
// returned unchanged so callers can tell a deadline from an API failure.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	msg := gerr.Message
	if msg == "" {
		msg = http.StatusText(gerr.Code)
	}

	switch gerr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuth, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrQuota, msg)
	case http.StatusBadRequest, http.StatusNotFound:
		if strings.Contains(strings.ToLower(msg), "property") {
			return fmt.Errorf("%w: %s", ErrInvalidProperty, msg)
		}
	}
	return fmt.Errorf("%w: %d %s", ErrUnknown, gerr.Code, msg)
}
