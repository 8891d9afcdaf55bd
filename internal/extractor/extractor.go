package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sozercan/siteinsight/internal/allowlist"
	"github.com/sozercan/siteinsight/internal/core"
	"github.com/sozercan/siteinsight/internal/daterange"
	"github.com/sozercan/siteinsight/internal/llm"
	"github.com/sozercan/siteinsight/internal/logger"
	"github.com/sozercan/siteinsight/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// fallback reasons, used as log fields and metric labels
const (
	reasonUnavailable = "llm_unavailable"
	reasonTimeout     = "llm_timeout"
	reasonError       = "llm_error"
	reasonParse       = "parsing_failure"
)

var errNoMetrics = errors.New("no metrics in model output")

// Extractor turns free text into a StructuredQuery. The LLM is optional; a
// nil provider sends every request through the keyword fallback.
type Extractor struct {
	provider    llm.Provider
	registry    *allowlist.Registry
	resolver    *daterange.Resolver
	logger      logger.Logger
	metrics     *metrics.Metrics
	timeout     time.Duration
	temperature float64
	maxTokens   int64
}

type Option func(*Extractor)

func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithTemperature(t float64) Option {
	return func(e *Extractor) { e.temperature = t }
}

func WithMaxTokens(n int64) Option {
	return func(e *Extractor) { e.maxTokens = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

func New(provider llm.Provider, registry *allowlist.Registry, resolver *daterange.Resolver, log logger.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		provider:    provider,
		registry:    registry,
		resolver:    resolver,
		logger:      log,
		timeout:     defaultTimeout,
		temperature: 0.1,
		maxTokens:   500,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract never fails: when the model is unavailable or its answer cannot
// be parsed, the keyword fallback produces a best-effort query instead.
// The result is not checked against the allowlist.
func (e *Extractor) Extract(ctx context.Context, rawText string) core.StructuredQuery {
	if e.provider == nil {
		return e.recover(rawText, reasonUnavailable, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.provider.Analyze(callCtx,
		[]string{systemPrompt(e.registry)},
		[]string{rawText},
		llm.WithTools(toolDefinition(e.registry)),
		llm.WithTemperature(e.temperature),
		llm.WithMaxTokens(e.maxTokens),
	)
	if err != nil {
		reason := reasonError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = reasonTimeout
		}
		return e.recover(rawText, reason, err)
	}

	args, err := parseResponse(resp)
	if err != nil {
		return e.recover(rawText, reasonParse, err)
	}

	q := e.fromArgs(rawText, args)
	e.metrics.ObserveExtraction(core.SourceLLM, "")
	e.logger.Debug("Extracted structured query", map[string]interface{}{
		"metrics":    q.Metrics,
		"dimensions": q.Dimensions,
		"date_range": q.DateRange.String(),
		"tokens":     resp.Usage.TotalTokens,
	})
	return q
}

func (e *Extractor) recover(rawText, reason string, cause error) core.StructuredQuery {
	fields := map[string]interface{}{
		"reason": reason,
		"kind":   string(core.KindParsingFailure),
	}
	log := e.logger
	if cause != nil {
		log = log.WithError(cause)
	}
	log.Warn("LLM extraction unavailable, using keyword fallback", fields)
	e.metrics.ObserveExtraction(core.SourceFallback, reason)
	return e.fallback(rawText)
}

func (e *Extractor) fromArgs(rawText string, args extractionArgs) core.StructuredQuery {
	q := core.StructuredQuery{
		Filters: map[string]string{},
		Source:  core.SourceLLM,
	}
	for _, m := range args.Metrics {
		q.AddMetric(m)
	}
	for _, d := range args.Dimensions {
		q.AddDimension(d)
	}
	for k, v := range args.Filters {
		if k = strings.TrimSpace(k); k != "" {
			q.Filters[k] = strings.TrimSpace(v)
		}
	}

	// the model sometimes drops the date phrase; the question may still carry one
	if e.resolver.Recognizes(args.DateRange) {
		q.DateRange = e.resolver.Resolve(args.DateRange)
	} else {
		q.DateRange = e.resolver.Resolve(rawText)
	}
	return q
}

// parseResponse accepts either a tool call or a JSON message body.
func parseResponse(resp *llm.Response) (extractionArgs, error) {
	var args extractionArgs

	raw := ""
	switch {
	case resp == nil:
		return args, fmt.Errorf("empty model response")
	case resp.FunctionCall != nil:
		if resp.FunctionCall.Name != toolName {
			return args, fmt.Errorf("unexpected tool call %q", resp.FunctionCall.Name)
		}
		raw = resp.FunctionCall.Arguments
	default:
		raw = stripFences(resp.Content)
	}

	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return args, fmt.Errorf("failed to parse model output: %w", err)
	}
	args.Metrics = nonBlank(args.Metrics)
	args.Dimensions = nonBlank(args.Dimensions)
	if len(args.Metrics) == 0 {
		return args, errNoMetrics
	}
	return args, nil
}

func nonBlank(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
