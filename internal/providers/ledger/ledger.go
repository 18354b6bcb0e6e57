// Package ledger mints credential tokens through an external relayer. An
// in-memory ledger stands in when no relayer is configured.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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

const providerName = "ledger"

var tracer = otel.Tracer("verihire/providers/ledger")

// MintRequest describes one credential token.
type MintRequest struct {
	Recipient         string `json:"recipient"`
	CandidateID       string `json:"candidate_id"`
	Hash              string `json:"hash"`
	Score             int    `json:"score"`
	VerificationCount int    `json:"verification_count"`
}

// Receipt identifies a minted token.
type Receipt struct {
	TokenID string `json:"token_id"`
	TxHash  string `json:"tx_hash"`
}

// HTTPLedger posts mint requests to a relayer service.
type HTTPLedger struct {
	http    *http.Client
	baseURL string
	apiKey  string
	metrics *metrics.Metrics
}

func NewHTTP(baseURL, apiKey string, timeout time.Duration, m *metrics.Metrics) *HTTPLedger {
	return &HTTPLedger{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		metrics: m,
	}
}

func (l *HTTPLedger) Mint(ctx context.Context, req MintRequest) (Receipt, error) {
	ctx, span := tracer.Start(ctx, "ledger.mint", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("ledger.candidate_id", req.CandidateID))

	start := time.Now()
	receipt, err := l.mint(ctx, req)
	l.metrics.ObserveCollaborator(providerName, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(providers.CategoryOf(err)))
		return Receipt{}, err
	}
	span.SetAttributes(attribute.String("ledger.token_id", receipt.TokenID))
	return receipt, nil
}

func (l *HTTPLedger) mint(ctx context.Context, req MintRequest) (Receipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Receipt{}, providers.NewError(providers.CategoryBadData, providerName, "encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/mint", bytes.NewReader(body))
	if err != nil {
		return Receipt{}, providers.NewError(providers.CategoryBadData, providerName, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.http.Do(httpReq)
	if err != nil {
		return Receipt{}, providers.FromTransport(providerName, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Receipt{}, providers.FromTransport(providerName, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Receipt{}, providers.FromStatus(providerName, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return Receipt{}, providers.NewError(providers.CategoryBadData, providerName, "decode response", err)
	}
	if receipt.TokenID == "" || receipt.TxHash == "" {
		return Receipt{}, providers.NewError(providers.CategoryBadData, providerName,
			fmt.Sprintf("incomplete receipt %q", string(raw)), nil)
	}
	return receipt, nil
}
