package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	candidatemodels "verihire/internal/candidate/models"
	verificationmodels "verihire/internal/verification/models"
	"verihire/pkg/domain"
)

type digestEntry struct {
	Company   string `json:"company"`
	Position  string `json:"position"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type digestOutcome struct {
	VerificationID string    `json:"verification_id"`
	Verified       bool      `json:"verified"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// digestInput fixes field order; json.Marshal of a struct is canonical.
type digestInput struct {
	CandidateID string          `json:"candidate_id"`
	WorkHistory []digestEntry   `json:"work_history"`
	Outcomes    []digestOutcome `json:"verified_outcomes"`
	IssuedAt    string          `json:"issued_at"`
}

// Digest is an HMAC-SHA256 over the canonical credential content.
func Digest(key []byte, candidateID domain.CandidateID, history []candidatemodels.WorkHistoryEntry,
	verified []verificationmodels.VerificationOutcome, issuedAt time.Time) (string, error) {
	input := digestInput{
		CandidateID: candidateID.String(),
		WorkHistory: make([]digestEntry, 0, len(history)),
		Outcomes:    make([]digestOutcome, 0, len(verified)),
		IssuedAt:    issuedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, e := range history {
		input.WorkHistory = append(input.WorkHistory, digestEntry{
			Company:   e.Company,
			Position:  e.Position,
			StartDate: e.StartDate,
			EndDate:   e.EndDate,
		})
	}
	for _, o := range verified {
		input.Outcomes = append(input.Outcomes, digestOutcome{
			VerificationID: o.VerificationID.String(),
			Verified:       o.Verified,
			RecordedAt:     o.RecordedAt.UTC(),
		})
	}
	sort.Slice(input.Outcomes, func(i, j int) bool {
		return input.Outcomes[i].VerificationID < input.Outcomes[j].VerificationID
	})

	payload, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
