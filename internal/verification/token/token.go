// Package token signs and verifies request tokens: HS256 JWTs that carry one
// verification claim and expire after a fixed validity window.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"verihire/internal/verification/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
)

const claimType = "employment_verification"

// Claims is the JWT payload. ID is the verification id, Subject the candidate.
type Claims struct {
	Type          string `json:"type"`
	CandidateName string `json:"candidate_name,omitempty"`
	Company       string `json:"company"`
	Position      string `json:"position"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	EmployerEmail string `json:"employer_email"`
	jwt.RegisteredClaims
}

// Signer issues and validates request tokens.
type Signer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Signer)

func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSigner(secret, issuer string, ttl time.Duration, opts ...Option) *Signer {
	s := &Signer{key: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL is the validity window given to newly signed tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token for the claim, valid from issuedAt for the signer's TTL.
// The claim's ExpiresAt is ignored and recomputed.
func (s *Signer) Sign(claim models.Claim, issuedAt time.Time) (string, time.Time, error) {
	expiresAt := issuedAt.Add(s.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type:          claimType,
		CandidateName: claim.CandidateName,
		Company:       claim.Company,
		Position:      claim.Position,
		StartDate:     claim.StartDate,
		EndDate:       claim.EndDate,
		EmployerEmail: claim.EmployerEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claim.VerificationID.String(),
			Subject:   claim.CandidateID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, issuer and expiry and returns the embedded claim.
// Expired tokens fail with token_expired, everything else with invalid_token.
func (s *Signer) Parse(raw string) (*models.Claim, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeTokenExpired, "verification link has expired")
		}
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid verification token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Type != claimType {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid verification token")
	}
	verificationID, err := domain.ParseVerificationID(claims.ID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid verification token")
	}
	candidateID, err := domain.ParseCandidateID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid verification token")
	}

	return &models.Claim{
		VerificationID: verificationID,
		CandidateID:    candidateID,
		CandidateName:  claims.CandidateName,
		Company:        claims.Company,
		Position:       claims.Position,
		StartDate:      claims.StartDate,
		EndDate:        claims.EndDate,
		EmployerEmail:  claims.EmployerEmail,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

// Inspect decodes a token without verifying it. For operator tooling only.
func Inspect(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Hash is the stored fingerprint of a token. Raw tokens are never persisted.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
