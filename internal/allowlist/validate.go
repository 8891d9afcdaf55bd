package allowlist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sozercan/siteinsight/internal/core"
)

// FieldError names one offending field and the value that was rejected.
type FieldError struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (f FieldError) String() string {
	if f.Value == "" {
		return f.Field
	}
	return fmt.Sprintf("%s=%q", f.Field, f.Value)
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "query validation failed: " + strings.Join(parts, ", ")
}

// Values returns the rejected values for the given field.
func (e *ValidationError) Values(field string) []string {
	var out []string
	for _, f := range e.Fields {
		if f.Field == field {
			out = append(out, f.Value)
		}
	}
	return out
}

// Descriptor converts the error into a validation descriptor.
func (e *ValidationError) Descriptor() *core.ErrorDescriptor {
	details := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		details[i] = f.String()
	}
	return core.NewDescriptor(core.KindValidation, "query contains fields outside the allowlist", details...)
}

// Validate checks every metric, dimension and filter key of q against the
// registry. The query is returned unchanged when it is valid.
func (r *Registry) Validate(q core.StructuredQuery) (core.StructuredQuery, error) {
	var fields []FieldError

	if len(q.Metrics) == 0 {
		fields = append(fields, FieldError{Field: "metrics"})
	}
	for _, m := range q.Metrics {
		if !r.IsMetric(m) {
			fields = append(fields, FieldError{Field: "metrics", Value: m})
		}
	}
	for _, d := range q.Dimensions {
		if !r.IsDimension(d) {
			fields = append(fields, FieldError{Field: "dimensions", Value: d})
		}
	}

	// sorted so the error is deterministic
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !r.IsDimension(k) {
			fields = append(fields, FieldError{Field: "filters", Value: k})
		}
	}

	if q.DateRange.Start.After(q.DateRange.End) {
		fields = append(fields, FieldError{Field: "date_range", Value: q.DateRange.String()})
	}

	if len(fields) > 0 {
		return q, &ValidationError{Fields: fields}
	}
	return q, nil
}

// ValidateChecks rejects audit check names outside the registry.
func (r *Registry) ValidateChecks(checks []string) error {
	var fields []FieldError
	for _, c := range checks {
		if !r.IsCheck(c) {
			fields = append(fields, FieldError{Field: "checks", Value: c})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
