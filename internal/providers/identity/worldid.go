// Package identity verifies prover identity proofs against World ID.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"verihire/internal/platform/metrics"
	"verihire/internal/providers"
	"verihire/internal/verification/models"
)

const providerName = "identity"

var tracer = otel.Tracer("verihire/providers/identity")

// WorldIDVerifier calls the World ID cloud verifier (v2 API).
type WorldIDVerifier struct {
	client  *http.Client
	baseURL string
	appID   string
	action  string
	metrics *metrics.Metrics
}

func NewWorldID(baseURL, appID, action string, timeout time.Duration, m *metrics.Metrics) *WorldIDVerifier {
	return &WorldIDVerifier{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		action:  action,
		metrics: m,
	}
}

type verifyRequest struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
	Action            string `json:"action"`
	Signal            string `json:"signal,omitempty"`
}

type verifyResponse struct {
	Success       bool   `json:"success"`
	NullifierHash string `json:"nullifier_hash"`
	Code          string `json:"code"`
	Detail        string `json:"detail"`
}

// Verify checks proof for the configured action. signal binds the proof to
// one verification request.
func (v *WorldIDVerifier) Verify(ctx context.Context, proof models.IdentityProof, signal string) (models.ProofResult, error) {
	ctx, span := tracer.Start(ctx, "identity.verify", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("identity.action", v.action))

	start := time.Now()
	result, err := v.verify(ctx, proof, signal)
	v.metrics.ObserveCollaborator(providerName, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(providers.CategoryOf(err)))
	}
	return result, err
}

func (v *WorldIDVerifier) verify(ctx context.Context, proof models.IdentityProof, signal string) (models.ProofResult, error) {
	body, err := json.Marshal(verifyRequest{
		NullifierHash:     proof.NullifierHash,
		MerkleRoot:        proof.MerkleRoot,
		Proof:             proof.Proof,
		VerificationLevel: proof.VerificationLevel,
		Action:            v.action,
		Signal:            signal,
	})
	if err != nil {
		return models.ProofResult{}, providers.NewError(providers.CategoryBadData, providerName, "encode request", err)
	}

	url := fmt.Sprintf("%s/api/v2/verify/%s", v.baseURL, v.appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.ProofResult{}, providers.NewError(providers.CategoryBadData, providerName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return models.ProofResult{}, providers.FromTransport(providerName, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var decoded verifyResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusGatewayTimeout {
		return models.ProofResult{}, providers.FromStatus(providerName, resp.StatusCode, string(raw))
	}
	if resp.StatusCode != http.StatusOK || !decoded.Success {
		detail := decoded.Code
		if decoded.Detail != "" {
			detail = decoded.Code + ": " + decoded.Detail
		}
		return models.ProofResult{Success: false}, providers.NewError(providers.CategoryRejected, providerName, "proof rejected "+detail, nil)
	}

	nullifier := decoded.NullifierHash
	if nullifier == "" {
		nullifier = proof.NullifierHash
	}
	return models.ProofResult{Success: true, Nullifier: strings.ToLower(nullifier)}, nil
}

// InsecureVerifier accepts every well-formed proof and echoes its nullifier.
// It exists for local development without a World ID app and must never run
// in production; main logs a warning when it is selected.
type InsecureVerifier struct {
	logger *slog.Logger
}

func NewInsecure(logger *slog.Logger) *InsecureVerifier {
	return &InsecureVerifier{logger: logger}
}

func (v *InsecureVerifier) Verify(ctx context.Context, proof models.IdentityProof, _ string) (models.ProofResult, error) {
	nullifier := strings.ToLower(strings.TrimSpace(proof.NullifierHash))
	if nullifier == "" {
		return models.ProofResult{}, providers.NewError(providers.CategoryRejected, providerName, "missing nullifier", nil)
	}
	v.logger.WarnContext(ctx, "identity proof accepted without verification", "verifier", "insecure")
	return models.ProofResult{Success: true, Nullifier: nullifier}, nil
}
