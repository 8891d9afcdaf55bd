package daterange

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sozercan/siteinsight/internal/core"
)

const DefaultDays = 7

var (
	relativePattern = regexp.MustCompile(`\b(?:last|past|previous|trailing)\s+(\d+)\s*(day|week|month|year)s?\b`)
	isoDatePattern  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// fixed phrases and the number of trailing days they cover
var namedWindows = []struct {
	phrase string
	days   int
}{
	{"last week", 7},
	{"past week", 7},
	{"last 2 weeks", 14},
	{"two weeks", 14},
	{"fortnight", 14},
	{"last month", 30},
	{"past month", 30},
	{"last quarter", 90},
	{"past quarter", 90},
	{"last year", 365},
	{"past year", 365},
}

// Resolver turns date phrases into concrete ranges. The zero value uses the
// wall clock and a 7 day default window.
type Resolver struct {
	Now         func() time.Time
	DefaultDays int
}

func New(defaultDays int) *Resolver {
	return &Resolver{Now: time.Now, DefaultDays: defaultDays}
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Resolver) defaultDays() int {
	if r.DefaultDays <= 0 {
		return DefaultDays
	}
	return r.DefaultDays
}

// Resolve converts phrase into a range that always ends before today.
// Unrecognized phrases resolve to the default trailing window with
// DefaultUsed set.
func (r *Resolver) Resolve(phrase string) core.DateRange {
	today := truncate(r.now())
	yesterday := today.AddDate(0, 0, -1)
	label := normalize(phrase)

	if dr, ok := absolute(label, yesterday); ok {
		dr.Label = phrase
		return dr
	}

	if m := relativePattern.FindStringSubmatch(label); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return trailing(yesterday, n*unitDays(m[2]), phrase)
		}
	}

	for _, w := range namedWindows {
		if strings.Contains(label, w.phrase) {
			return trailing(yesterday, w.days, phrase)
		}
	}

	switch {
	case strings.Contains(label, "yesterday"), strings.Contains(label, "today"):
		return core.DateRange{Start: yesterday, End: yesterday, Label: phrase}
	case strings.Contains(label, "this week"):
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		start := today.AddDate(0, 0, -offset)
		return bounded(start, yesterday, phrase)
	case strings.Contains(label, "this month"):
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return bounded(start, yesterday, phrase)
	case strings.Contains(label, "this year"):
		start := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location())
		return bounded(start, yesterday, phrase)
	}

	dr := trailing(yesterday, r.defaultDays(), phrase)
	dr.DefaultUsed = true
	return dr
}

// Default returns the default trailing window without parsing anything.
func (r *Resolver) Default() core.DateRange {
	return r.Resolve("")
}

// Recognizes reports whether phrase contains a date expression the resolver
// understands.
func (r *Resolver) Recognizes(phrase string) bool {
	return !r.Resolve(phrase).DefaultUsed
}

func absolute(label string, yesterday time.Time) (core.DateRange, bool) {
	matches := isoDatePattern.FindAllString(label, 2)
	if len(matches) == 0 {
		return core.DateRange{}, false
	}
	var dates []time.Time
	for _, s := range matches {
		d, err := time.ParseInLocation(core.DateLayout, s, yesterday.Location())
		if err != nil {
			return core.DateRange{}, false
		}
		dates = append(dates, d)
	}
	start, end := dates[0], dates[0]
	if len(dates) == 2 {
		end = dates[1]
	}
	if start.After(end) {
		start, end = end, start
	}
	if end.After(yesterday) {
		end = yesterday
	}
	if start.After(end) {
		start = end
	}
	return core.DateRange{Start: start, End: end}, true
}

func trailing(yesterday time.Time, days int, label string) core.DateRange {
	return core.DateRange{
		Start: yesterday.AddDate(0, 0, -(days - 1)),
		End:   yesterday,
		Label: label,
	}
}

// bounded handles periods that start today, such as "this month" on the 1st.
func bounded(start, yesterday time.Time, label string) core.DateRange {
	if start.After(yesterday) {
		start = yesterday
	}
	return core.DateRange{Start: start, End: yesterday, Label: label}
}

func unitDays(unit string) int {
	switch unit {
	case "week":
		return 7
	case "month":
		return 30
	case "year":
		return 365
	default:
		return 1
	}
}

func normalize(phrase string) string {
	s := strings.ToLower(strings.TrimSpace(phrase))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
