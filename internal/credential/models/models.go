package models

import (
	"strings"
	"time"

	"verihire/pkg/domain"
	dErrors "verihire/pkg/domain-errors"
)

// TrustLevel is the badge derived from the score at mint time.
type TrustLevel string

const (
	TrustLevelPlatinum   TrustLevel = "Platinum"
	TrustLevelGold       TrustLevel = "Gold"
	TrustLevelSilver     TrustLevel = "Silver"
	TrustLevelBronze     TrustLevel = "Bronze"
	TrustLevelUnverified TrustLevel = "Unverified"
)

func LevelFor(score int) TrustLevel {
	switch {
	case score >= 90:
		return TrustLevelPlatinum
	case score >= 75:
		return TrustLevelGold
	case score >= 60:
		return TrustLevelSilver
	case score >= 40:
		return TrustLevelBronze
	default:
		return TrustLevelUnverified
	}
}

// yearsPerRole is the flat per-entry experience estimate.
const yearsPerRole = 1.5

func ExperienceYears(entries int) float64 {
	return float64(entries) * yearsPerRole
}

// Status tracks a credential row through issuance. A pending row reserves the
// candidate before the ledger is called; it becomes issued once the receipt
// is stored.
type Status string

const (
	StatusPending Status = "pending"
	StatusIssued  Status = "issued"
)

// Credential is the single minted record of a candidate. There is at most
// one per candidate and it is never replaced.
type Credential struct {
	ID                domain.CredentialID `json:"id"`
	CandidateID       domain.CandidateID  `json:"candidate_id"`
	Hash              string              `json:"hash"`
	Score             int                 `json:"score"`
	VerificationCount int                 `json:"verification_count"`
	TrustLevel        TrustLevel          `json:"trust_level"`
	ExperienceYears   float64             `json:"experience_years"`
	Recipient         string              `json:"recipient"`
	TokenID           string              `json:"token_id"`
	TxHash            string              `json:"tx_hash"`
	Status            Status              `json:"status"`
	IssuedAt          time.Time           `json:"issued_at"`
}

func (c *Credential) Issued() bool {
	return c.Status == StatusIssued
}

const maxRecipientLength = 128

// IssueRequest optionally names the wallet receiving the token.
type IssueRequest struct {
	Recipient string `json:"recipient"`
}

func (r *IssueRequest) Validate() error {
	r.Recipient = strings.TrimSpace(r.Recipient)
	if len(r.Recipient) > maxRecipientLength {
		return dErrors.New(dErrors.CodeValidation, "recipient too long")
	}
	return nil
}
