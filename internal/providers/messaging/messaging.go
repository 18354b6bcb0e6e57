// Package messaging delivers verification requests out of band.
package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"verihire/internal/platform/metrics"
	"verihire/internal/providers"
)

const providerName = "messaging"

var tracer = otel.Tracer("verihire/providers/messaging")

// Message is one outbound e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message and returns a delivery id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogSender writes messages to the log instead of delivering them. Used when
// no e-mail provider is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	id := "log-" + uuid.NewString()
	s.logger.InfoContext(ctx, "verification e-mail (log sender)",
		"delivery_id", id,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return id, nil
}

// RateLimited paces outbound sends with a token bucket so batch issuance
// cannot exceed the provider's sending quota.
type RateLimited struct {
	next    Sender
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewRateLimited(next Sender, perSecond float64, burst int, timeout time.Duration, m *metrics.Metrics) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst), timeout: timeout, metrics: m}
}

func (s *RateLimited) Send(ctx context.Context, msg Message) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "messaging.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		perr := providers.NewError(providers.CategoryTimeout, providerName, "rate limiter wait", err)
		span.RecordError(perr)
		s.metrics.ObserveCollaborator(providerName, start, perr)
		return "", perr
	}
	id, err := s.next.Send(ctx, msg)
	s.metrics.ObserveCollaborator(providerName, start, err)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("delivery_id", id))
	return id, nil
}
