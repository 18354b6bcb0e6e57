package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verihire/internal/verification/models"
	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
)

func sampleClaim() models.Claim {
	return models.Claim{
		VerificationID: domain.NewVerificationID(),
		CandidateID:    "cand-1",
		CandidateName:  "John Doe",
		Company:        "Google",
		Position:       "Software Engineer",
		StartDate:      "2020",
		EndDate:        "2023",
		EmployerEmail:  "hr@google.com",
	}
}

func TestSignAndParse(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issued.Add(time.Hour)
	signer := NewSigner("secret", "verihire", 15*24*time.Hour, WithClock(func() time.Time { return now }))

	claim := sampleClaim()
	raw, expiresAt, err := signer.Sign(claim, issued)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(15*24*time.Hour), expiresAt)

	got, err := signer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, claim.VerificationID, got.VerificationID)
	assert.Equal(t, claim.CandidateID, got.CandidateID)
	assert.Equal(t, "Google", got.Company)
	assert.Equal(t, "Software Engineer", got.Position)
	assert.True(t, got.ExpiresAt.Equal(expiresAt))
}

func TestParseExpired(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issued.Add(16 * 24 * time.Hour)
	signer := NewSigner("secret", "verihire", 15*24*time.Hour, WithClock(func() time.Time { return now }))

	raw, _, err := signer.Sign(sampleClaim(), issued)
	require.NoError(t, err)

	_, err = signer.Parse(raw)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenExpired))
}

func TestParseRejectsTampering(t *testing.T) {
	issued := time.Now()
	signer := NewSigner("secret", "verihire", time.Hour)
	other := NewSigner("other-secret", "verihire", time.Hour)
	foreignIssuer := NewSigner("secret", "someone-else", time.Hour)

	raw, _, err := other.Sign(sampleClaim(), issued)
	require.NoError(t, err)
	_, err = signer.Parse(raw)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken), "wrong key")

	raw, _, err = foreignIssuer.Sign(sampleClaim(), issued)
	require.NoError(t, err)
	_, err = signer.Parse(raw)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken), "wrong issuer")

	_, err = signer.Parse("not-a-jwt")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken), "garbage")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Type: claimType})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = signer.Parse(unsigned)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken), "alg none")
}

func TestInspectAndHash(t *testing.T) {
	signer := NewSigner("secret", "verihire", time.Hour)
	claim := sampleClaim()
	raw, _, err := signer.Sign(claim, time.Now())
	require.NoError(t, err)

	claims, err := Inspect(raw)
	require.NoError(t, err)
	assert.Equal(t, claim.VerificationID.String(), claims.ID)
	assert.Equal(t, "cand-1", claims.Subject)

	assert.Len(t, Hash(raw), 64)
	assert.Equal(t, Hash(raw), Hash(raw))
	assert.NotEqual(t, Hash(raw), Hash(raw+"x"))
}
