package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sozercan/siteinsight/apimodels"
	"github.com/sozercan/siteinsight/internal/core"
	"github.com/sozercan/siteinsight/internal/logger"
	"github.com/sozercan/siteinsight/internal/metrics"
)

const DefaultAgentTimeout = 20 * time.Second

var tracer = otel.Tracer("siteinsight-orchestrator")

// Agent handles one query for a single backend and always reaches a
// terminal result.
type Agent interface {
	Handle(ctx context.Context, q core.Query) core.AgentResult
}

type Orchestrator struct {
	agents     map[core.AgentName]Agent
	classifier *Classifier
	timeout    time.Duration
	logger     logger.Logger
	metrics    *metrics.Metrics
}

type Option func(*Orchestrator)

func WithAgentTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithClassifier(c *Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func New(agents map[core.AgentName]Agent, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agents:     agents,
		classifier: defaultClassifier,
		timeout:    DefaultAgentTimeout,
		logger:     log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Route classifies q, runs the matching agents concurrently and fuses
// their results once every agent has finished or timed out.
func (o *Orchestrator) Route(ctx context.Context, q core.Query) apimodels.FusedResponse {
	start := time.Now()
	if q.RequestedAt.IsZero() {
		q.RequestedAt = start
	}

	cls := o.classifier.Classify(q)

	ctx, span := tracer.Start(ctx, "orchestrator.route",
		trace.WithAttributes(
			attribute.String("siteinsight.intent", string(cls.Intent)),
			attribute.Bool("siteinsight.low_confidence", cls.LowConfidence),
		),
	)
	defer span.End()

	o.logger.Info("Classified query intent", map[string]interface{}{
		"intent":         string(cls.Intent),
		"low_confidence": cls.LowConfidence,
		"matched":        cls.Matched,
	})

	results := o.Dispatch(ctx, q, cls.Intent)
	resp := Fuse(q, cls, results)
	resp.Metadata.Duration = time.Since(start).String()

	span.SetAttributes(attribute.String("siteinsight.status", string(resp.Status)))
	if resp.Status == apimodels.StatusError {
		span.SetStatus(codes.Error, resp.Summary)
	}
	o.metrics.ObserveQuery(string(cls.Intent), string(resp.Status))
	return resp
}

// Dispatch runs the agents for intent concurrently. Results are returned in
// intent order regardless of completion order.
func (o *Orchestrator) Dispatch(ctx context.Context, q core.Query, intent core.Intent) []core.AgentResult {
	names := intent.Agents()
	results := make([]core.AgentResult, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = o.runAgent(ctx, name, q)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runAgent bounds one agent by the per-agent timeout. An agent that ignores
// cancellation is abandoned so it cannot hold up the other.
func (o *Orchestrator) runAgent(ctx context.Context, name core.AgentName, q core.Query) core.AgentResult {
	ctx, span := tracer.Start(ctx, "agent."+string(name))
	defer span.End()

	start := time.Now()
	agent, ok := o.agents[name]
	if !ok {
		res := core.Failed(name, core.NewDescriptor(core.KindUnknown, fmt.Sprintf("%s agent is not configured", name)))
		o.record(span, res, time.Since(start))
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan core.AgentResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- core.Failed(name, core.NewDescriptor(core.KindUnknown, fmt.Sprintf("%s agent panicked: %v", name, r)))
			}
		}()
		done <- agent.Handle(ctx, q)
	}()

	var res core.AgentResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = core.Failed(name, core.NewDescriptor(core.KindTimeout,
			fmt.Sprintf("%s agent did not finish within %s", name, o.timeout), ctx.Err().Error()))
	}

	res.Agent = name
	if res.Error != nil {
		res.Error.Agent = name
	}
	if res.Hint != nil {
		res.Hint.Agent = name
	}
	res.Duration = time.Since(start)
	o.record(span, res, res.Duration)
	return res
}

func (o *Orchestrator) record(span trace.Span, res core.AgentResult, d time.Duration) {
	kind := ""
	fields := map[string]interface{}{
		"agent":       string(res.Agent),
		"status":      string(res.Status),
		"duration_ms": d.Milliseconds(),
	}
	if res.Error != nil {
		kind = string(res.Error.Kind)
		fields["kind"] = kind
		fields["error"] = res.Error.Message
		span.SetStatus(codes.Error, res.Error.Message)
	}
	span.SetAttributes(attribute.String("siteinsight.agent_status", string(res.Status)))

	if res.OK() {
		o.logger.Info("Agent finished", fields)
	} else {
		o.logger.Warn("Agent failed", fields)
	}
	o.metrics.ObserveAgent(string(res.Agent), string(res.Status), kind, d)
}
