package ga4

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/sozercan/siteinsight/internal/core"
)

const maxDemoDays = 366

var demoPaths = []string{"/", "/about", "/contact", "/products", "/blog"}

var demoRanges = map[string][2]int{
	"sessions":        {50, 500},
	"totalUsers":      {40, 400},
	"screenPageViews": {100, 800},
	"activeUsers":     {30, 350},
	"newUsers":        {10, 200},
}

// DemoBackend serves deterministic sample rows, one per day of the range.
// It stands in for the Data API when no credentials are configured.
type DemoBackend struct{}

func (DemoBackend) RunReport(ctx context.Context, req ReportRequest) ([]core.Row, error) {
	start, err := time.Parse(core.DateLayout, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: bad start date %q", ErrUnknown, req.StartDate)
	}
	end, err := time.Parse(core.DateLayout, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: bad end date %q", ErrUnknown, req.EndDate)
	}

	var rows []core.Row
	for i, day := 0, start; !day.After(end) && i < maxDemoDays; i, day = i+1, day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row := core.Row{
			Dimensions: make(map[string]string, len(req.Dimensions)),
			Metrics:    make(map[string]string, len(req.Metrics)),
		}
		for _, d := range req.Dimensions {
			switch {
			case req.Filters[d] != "":
				row.Dimensions[d] = req.Filters[d]
			case d == "date":
				row.Dimensions[d] = day.Format("20060102")
			case d == "pagePath":
				row.Dimensions[d] = demoPaths[i%len(demoPaths)]
			default:
				row.Dimensions[d] = "demo_value"
			}
		}
		for _, m := range req.Metrics {
			row.Metrics[m] = demoValue(m, day)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func demoValue(metric string, day time.Time) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(metric + day.Format(core.DateLayout)))
	n := int(h.Sum32() % 1000)

	switch metric {
	case "bounceRate", "engagementRate":
		return fmt.Sprintf("%.4f", 0.2+float64(n)/2000)
	case "averageSessionDuration":
		return fmt.Sprintf("%.2f", 30+float64(n)/5)
	}

	bounds, ok := demoRanges[metric]
	if !ok {
		bounds = [2]int{10, 100}
	}
	return fmt.Sprintf("%d", bounds[0]+n%(bounds[1]-bounds[0]+1))
}
