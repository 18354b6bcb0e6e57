// Package engine computes trust scores. A reasoning collaborator is tried
// first; any failure degrades to the deterministic weighted formula with a
// source tag naming the reason.
package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"verihire/internal/platform/metrics"
	"verihire/internal/providers"
	"verihire/internal/trustscore/models"
	"verihire/pkg/platform/circuit"
)

var tracer = otel.Tracer("verihire/trustscore/engine")

// Reasoner is the primary scoring collaborator.
type Reasoner interface {
	Configured() bool
	Complete(ctx context.Context, system, user string) (string, error)
}

type Engine struct {
	reasoner Reasoner
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithBreaker replaces the default breaker guarding the reasoner.
func WithBreaker(b *circuit.Breaker) Option {
	return func(e *Engine) {
		e.breaker = b
	}
}

// New builds an engine. A nil reasoner always scores with the fallback.
func New(reasoner Reasoner, opts ...Option) *Engine {
	e := &Engine{
		reasoner: reasoner,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breaker == nil {
		e.breaker = circuit.New("reasoning")
	}
	return e
}

// Calculate always returns a score in [0,100].
func (e *Engine) Calculate(ctx context.Context, data models.CandidateData) models.Result {
	ctx, span := tracer.Start(ctx, "trustscore.calculate")
	defer span.End()

	result := e.calculate(ctx, data)
	span.SetAttributes(
		attribute.String("trustscore.source", string(result.Source)),
		attribute.Int("trustscore.score", result.Score),
	)
	return result
}

func (e *Engine) calculate(ctx context.Context, data models.CandidateData) models.Result {
	if data.TotalRequests == 0 {
		return Fallback(data, models.SourceNoRequests)
	}
	if e.reasoner == nil || !e.reasoner.Configured() {
		return Fallback(data, models.SourceUnconfigured)
	}
	if !e.breaker.Allow() {
		return Fallback(data, models.SourceCircuitOpen)
	}

	prompt, err := BuildPrompt(data)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to render scoring prompt", "error", err)
		return Fallback(data, models.SourceUpstreamError)
	}

	content, err := e.reasoner.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		e.recordFailure()
		source := sourceFor(err)
		e.logger.WarnContext(ctx, "reasoning collaborator failed, using fallback score",
			"candidate_id", data.CandidateID,
			"source", source,
			"error", err,
		)
		return Fallback(data, source)
	}

	result, shape := ParseResponse(content)
	if shape == Unparsable {
		e.recordFailure()
		e.logger.WarnContext(ctx, "reasoning response unparsable, using fallback score",
			"candidate_id", data.CandidateID,
			"source", models.SourceUnparsable,
		)
		return Fallback(data, models.SourceUnparsable)
	}
	e.recordSuccess()
	e.logger.DebugContext(ctx, "reasoning response accepted", "shape", shape.String())
	return result
}

func (e *Engine) recordFailure() {
	_, change := e.breaker.RecordFailure()
	if change.Opened {
		e.metrics.IncCircuitChange(e.breaker.Name(), circuit.StateOpen.String())
		e.logger.Warn("reasoning circuit opened", "breaker", e.breaker.Name())
	}
}

func (e *Engine) recordSuccess() {
	_, change := e.breaker.RecordSuccess()
	if change.Closed {
		e.metrics.IncCircuitChange(e.breaker.Name(), circuit.StateClosed.String())
		e.logger.Info("reasoning circuit closed", "breaker", e.breaker.Name())
	}
}

func sourceFor(err error) models.Source {
	switch providers.CategoryOf(err) {
	case providers.CategoryTimeout:
		return models.SourceTimeout
	case providers.CategoryNotConfigured:
		return models.SourceUnconfigured
	default:
		return models.SourceUpstreamError
	}
}
