// Package reasoning calls a chat-completions endpoint used as the primary
// trust-scoring strategy.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"verihire/internal/platform/metrics"
	"verihire/internal/providers"
)

const (
	providerName       = "reasoning"
	defaultTemperature = 0.3
	defaultMaxTokens   = 1500
)

var tracer = otel.Tracer("verihire/providers/reasoning")

// Client is a minimal chat-completions client. A client without an API key
// reports every call as not configured.
type Client struct {
	http    *http.Client
	url     string
	apiKey  string
	model   string
	metrics *metrics.Metrics
}

func NewClient(url, apiKey, model string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		url:     url,
		apiKey:  apiKey,
		model:   model,
		metrics: m,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.url != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Complete sends one system and one user message and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.Configured() {
		return "", providers.NewError(providers.CategoryNotConfigured, providerName, "no api key configured", nil)
	}
	ctx, span := tracer.Start(ctx, "reasoning.complete", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("reasoning.model", c.model))

	start := time.Now()
	content, err := c.complete(ctx, system, user)
	c.metrics.ObserveCollaborator(providerName, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(providers.CategoryOf(err)))
	}
	return content, err
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return "", providers.NewError(providers.CategoryBadData, providerName, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", providers.NewError(providers.CategoryBadData, providerName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", providers.FromTransport(providerName, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", providers.FromTransport(providerName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", providers.FromStatus(providerName, resp.StatusCode, truncate(string(raw), 200))
	}

	var decoded completionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", providers.NewError(providers.CategoryBadData, providerName, "decode response", err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", providers.NewError(providers.CategoryBadData, providerName, "empty completion", nil)
	}
	return decoded.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
